package accounts

import (
	"sync"

	"github.com/signal-golang/textsecure-accounts/config"
	"github.com/signal-golang/textsecure-accounts/push"
	"github.com/signal-golang/textsecure-accounts/registration"
	log "github.com/sirupsen/logrus"
)

// ConfigAccountStore keeps the account state in the config file.
type ConfigAccountStore struct {
	mu       sync.Mutex
	fileName string
	cfg      *config.Config
}

// NewConfigAccountStore returns a store that saves cfg to fileName on
// every change.
func NewConfigAccountStore(fileName string, cfg *config.Config) *ConfigAccountStore {
	return &ConfigAccountStore{fileName: fileName, cfg: cfg}
}

func (s *ConfigAccountStore) save() error {
	return WriteConfig(s.fileName, s.cfg)
}

// LocalNumber returns the phone number of the account, or its uuid when no
// number is set. It is empty until registration completed.
func (s *ConfigAccountStore) LocalNumber() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Registered {
		return ""
	}
	if s.cfg.Tel != "" {
		return s.cfg.Tel
	}
	return s.cfg.UUID
}

func (s *ConfigAccountStore) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Name
}

// RegistrationInfo returns the install time registration data, generating
// and saving it on first use.
func (s *ConfigAccountStore) RegistrationInfo() registration.RegistrationInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.Password == "" || len(s.cfg.SignalingKey) == 0 {
		info := registration.NewRegistrationInfo()
		s.cfg.Password = info.Password
		s.cfg.RegistrationID = info.RegistrationID
		s.cfg.SignalingKey = info.SignalingKey
		if err := s.save(); err != nil {
			log.Errorln("[textsecure] failed to save registration info", err)
		}
	}
	return registration.RegistrationInfo{
		Password:       s.cfg.Password,
		RegistrationID: s.cfg.RegistrationID,
		SignalingKey:   s.cfg.SignalingKey,
	}
}

func (s *ConfigAccountStore) SetUUID(uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.UUID = uuid
	return s.save()
}

func (s *ConfigAccountStore) SetFetchesMessages(fetchesMessages bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.FetchesMessages = fetchesMessages
	return s.save()
}

func (s *ConfigAccountStore) LastUploadedPushTokens() push.TokenPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return push.TokenPair{PushToken: s.cfg.PushToken, VoipToken: s.cfg.VoipToken}
}

func (s *ConfigAccountStore) SetLastUploadedPushTokens(tokens push.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.PushToken = tokens.PushToken
	s.cfg.VoipToken = tokens.VoipToken
	s.cfg.FetchesMessages = false
	return s.save()
}

func (s *ConfigAccountStore) DidRegister() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Registered = true
	return s.save()
}

// Registered reports whether registration completed.
func (s *ConfigAccountStore) Registered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Registered
}
