// Copyright (c) 2014 Canonical Ltd.
// Licensed under the GPLv3, see the COPYING file for details.

// Package contacts is the local profile cache and remote identity store,
// kept in a YAML file.
package contacts

import (
	"bytes"
	"io/ioutil"
	"os"
	"sort"
	"sync"

	"github.com/signal-golang/textsecure-accounts/crypto"
	"github.com/signal-golang/textsecure-accounts/utils"
	log "github.com/sirupsen/logrus"

	"gopkg.in/yaml.v2"
)

// Contact contains information about a contact.
type Contact struct {
	UUID                 string
	Tel                  string
	ProfileKey           []byte
	IdentityKey          []byte
	Name                 string
	ProfileNameEncrypted []byte
	AvatarURLPath        string
}

// ID is the key the contact is stored under.
func (c *Contact) ID() string {
	if c.UUID != "" {
		return utils.NormalizeRecipientID(c.UUID)
	}
	return utils.NormalizeRecipientID(c.Tel)
}

type yamlContacts struct {
	Contacts []Contact
}

// Store holds the contacts of one account.
type Store struct {
	mu       sync.Mutex
	filePath string
	contacts map[string]Contact
}

// Open reads the contacts file at fileName. A missing file is an empty store.
func Open(fileName string) (*Store, error) {
	s := &Store{
		filePath: fileName,
		contacts: map[string]Contact{},
	}
	log.Debug("[textsecure] read contacts from ", fileName)
	b, err := ioutil.ReadFile(fileName)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	contactsYaml := &yamlContacts{}
	if err := yaml.Unmarshal(b, contactsYaml); err != nil {
		return nil, err
	}
	for _, c := range contactsYaml.Contacts {
		s.contacts[c.ID()] = c
	}
	return s, nil
}

// Get returns the contact stored under recipientID.
func (s *Store) Get(recipientID string) (Contact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[utils.NormalizeRecipientID(recipientID)]
	return c, ok
}

// Put stores c and writes the file.
func (s *Store) Put(c Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(c)
}

// UpdateProfile stores a fetched profile. The name is decrypted when the
// contact's profile key is known.
func (s *Store) UpdateProfile(recipientID string, profileNameEncrypted []byte, avatarURLPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.contact(recipientID)
	c.ProfileNameEncrypted = profileNameEncrypted
	c.AvatarURLPath = avatarURLPath
	if len(profileNameEncrypted) > 0 && len(c.ProfileKey) > 0 {
		name, err := crypto.DecryptProfileName(c.ProfileKey, profileNameEncrypted)
		if err != nil {
			log.Errorln("[textsecure] failed to decrypt profile name of", recipientID, err)
		} else {
			c.Name = string(name)
		}
	}
	return s.save(c)
}

// SaveRemoteIdentity stores identityKey and reports whether it replaced a
// different key. The first key seen for a contact is not a change. The
// change is reported even when saving failed.
func (s *Store) SaveRemoteIdentity(recipientID string, identityKey []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.contact(recipientID)
	if bytes.Equal(c.IdentityKey, identityKey) {
		return false, nil
	}
	changed := len(c.IdentityKey) > 0
	c.IdentityKey = identityKey
	return changed, s.save(c)
}

// save stores c and writes the file. The previous entry is restored when the
// write fails, so memory never runs ahead of the file.
func (s *Store) save(c Contact) error {
	id := c.ID()
	prev, existed := s.contacts[id]
	s.contacts[id] = c
	if err := s.write(); err != nil {
		if existed {
			s.contacts[id] = prev
		} else {
			delete(s.contacts, id)
		}
		return err
	}
	return nil
}

// contact returns the stored contact or a new one for recipientID.
func (s *Store) contact(recipientID string) Contact {
	id := utils.NormalizeRecipientID(recipientID)
	if c, ok := s.contacts[id]; ok {
		return c
	}
	if utils.IsUUID(id) {
		return Contact{UUID: id}
	}
	return Contact{Tel: id}
}

func (s *Store) write() error {
	c := &yamlContacts{}
	for _, co := range s.contacts {
		c.Contacts = append(c.Contacts, co)
	}
	sort.Slice(c.Contacts, func(i, j int) bool {
		return c.Contacts[i].ID() < c.Contacts[j].ID()
	})
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	log.Debug("[textsecure] write contacts ", len(c.Contacts))
	return ioutil.WriteFile(s.filePath, b, 0600)
}
