// Package sessions manages the secure session records of the account, one
// file per recipient device named <recipient>_<device>, written by the
// messaging layer.
package sessions

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/signal-golang/textsecure-accounts/utils"
	log "github.com/sirupsen/logrus"
)

// Store is a directory of session records.
type Store struct {
	mu          sync.Mutex
	sessionsDir string
	archiveDir  string
}

// NewStore creates the session directories below storageDir.
func NewStore(storageDir string) (*Store, error) {
	s := &Store{
		sessionsDir: filepath.Join(storageDir, "sessions"),
		archiveDir:  filepath.Join(storageDir, "sessions", "archived"),
	}
	if err := os.MkdirAll(s.archiveDir, 0700); err != nil {
		return nil, err
	}
	return s, nil
}

// DeviceIDs lists the devices with a session for recipientID.
func (s *Store) DeviceIDs(recipientID string) ([]uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names, err := s.sessionNames(utils.NormalizeRecipientID(recipientID))
	if err != nil {
		return nil, err
	}
	var ids []uint32
	for _, name := range names {
		id, err := strconv.ParseUint(name[strings.LastIndex(name, "_")+1:], 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, uint32(id))
	}
	return ids, nil
}

// ArchiveAllSessions moves every session of recipientID out of use, so that
// the next message negotiates a fresh session.
func (s *Store) ArchiveAllSessions(recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	recipientID = utils.NormalizeRecipientID(recipientID)
	names, err := s.sessionNames(recipientID)
	if err != nil {
		return err
	}
	stamp := strconv.FormatInt(time.Now().UnixNano(), 10)
	for _, name := range names {
		from := filepath.Join(s.sessionsDir, name)
		to := filepath.Join(s.archiveDir, name+"."+stamp)
		if err := os.Rename(from, to); err != nil {
			return errors.Wrapf(err, "archive session %s", name)
		}
	}
	log.Infof("[textsecure] archived %d sessions of %s", len(names), recipientID)
	return nil
}

func (s *Store) sessionNames(recipientID string) ([]string, error) {
	entries, err := ioutil.ReadDir(s.sessionsDir)
	if err != nil {
		return nil, err
	}
	var names []string
	prefix := recipientID + "_"
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		if _, err := strconv.ParseUint(e.Name()[len(prefix):], 10, 32); err != nil {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
