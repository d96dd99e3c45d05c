// Copyright (c) 2014 Canonical Ltd.
// Copyright (c) 2021 Aaron Kimmig
// Licensed under the GPLv3, see the COPYING file for details.

// Package prekeys generates the identity key, signed pre-key and one time
// pre-keys of the account and uploads them to the server.
package prekeys

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/signal-golang/textsecure-accounts/helpers"
	"github.com/signal-golang/textsecure-accounts/transport"
	log "github.com/sirupsen/logrus"
)

const (
	PREKEY_PATH        = "/v2/keys/"
	SIGNED_PREKEY_PATH = "/v2/keys/signed"

	lastResortPreKeyID = 0xFFFFFF
	preKeyBatchSize    = 100
)

// Mode selects which keys RegisterPreKeys uploads.
type Mode int

const (
	// SignedOnly rotates the signed pre-key.
	SignedOnly Mode = iota
	// SignedAndOneTime uploads the identity key, a new signed pre-key and a
	// fresh batch of one time pre-keys.
	SignedAndOneTime
)

func (m Mode) String() string {
	if m == SignedOnly {
		return "signedOnly"
	}
	return "signedAndOneTime"
}

type preKeyEntity struct {
	ID        uint32 `json:"keyId"`
	PublicKey string `json:"publicKey"`
}

type signedPreKeyEntity struct {
	ID        uint32 `json:"keyId"`
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
}

type preKeyState struct {
	IdentityKey   string              `json:"identityKey"`
	PreKeys       []*preKeyEntity     `json:"preKeys"`
	LastResortKey *preKeyEntity       `json:"lastResortKey"`
	SignedPreKey  *signedPreKeyEntity `json:"signedPreKey"`
}

// Manager owns the key files below its directory.
type Manager struct {
	transport transport.Transporter

	identityFile     string
	preKeysDir       string
	signedPreKeysDir string

	mu sync.Mutex
}

func NewManager(t transport.Transporter, storageDir string) *Manager {
	return &Manager{
		transport:        t,
		identityFile:     filepath.Join(storageDir, "identity", "identity_key"),
		preKeysDir:       filepath.Join(storageDir, "prekeys"),
		signedPreKeysDir: filepath.Join(storageDir, "signed_prekeys"),
	}
}

// IdentityKey loads the identity key pair, generating it on first use.
func (m *Manager) IdentityKey() (*KeyPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identityKey()
}

func (m *Manager) identityKey() (*KeyPair, error) {
	b, err := os.ReadFile(m.identityFile)
	if err == nil {
		if len(b) != 32 {
			return nil, errors.Errorf("identity key file has %d bytes", len(b))
		}
		kp := &KeyPair{}
		copy(kp.PrivateKey[:], b)
		return kp, kp.derivePublic()
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	log.Infoln("[textsecure] generating identity key")
	kp, err := NewKeyPair()
	if err != nil {
		return nil, err
	}
	if err := writeKeyFile(m.identityFile, kp.PrivateKey[:]); err != nil {
		return nil, err
	}
	return kp, nil
}

// RegisterPreKeys generates keys for mode and uploads them.
func (m *Manager) RegisterPreKeys(mode Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log.Infoln("[textsecure] registering pre-keys", mode)

	identity, err := m.identityKey()
	if err != nil {
		return errors.Wrap(err, "load identity key")
	}
	signed, err := m.generateSignedPreKey(identity)
	if err != nil {
		return err
	}
	if mode == SignedOnly {
		return m.put(SIGNED_PREKEY_PATH, signed)
	}

	state := &preKeyState{
		IdentityKey:  helpers.Base64EncWithoutPadding(identity.Serialize()),
		SignedPreKey: signed,
	}
	startID := randID()
	for i := 0; i < preKeyBatchSize; i++ {
		// ids wrap below the last resort id
		id := (startID + uint32(i)) % lastResortPreKeyID
		pk, err := m.generatePreKey(id)
		if err != nil {
			return err
		}
		state.PreKeys = append(state.PreKeys, pk)
	}
	state.LastResortKey, err = m.generatePreKey(lastResortPreKeyID)
	if err != nil {
		return err
	}
	return m.put(PREKEY_PATH, state)
}

func (m *Manager) put(url string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	resp, err := m.transport.PutJSON(url, body)
	if err != nil {
		return errors.Wrap(err, "upload pre-keys")
	}
	resp.ReadAll()
	if resp.IsError() {
		return resp
	}
	return nil
}

func (m *Manager) generatePreKey(id uint32) (*preKeyEntity, error) {
	kp, err := NewKeyPair()
	if err != nil {
		return nil, err
	}
	if err := writeKeyFile(idFile(m.preKeysDir, id), kp.PrivateKey[:]); err != nil {
		return nil, err
	}
	return &preKeyEntity{ID: id, PublicKey: EncodeKey(kp.PublicKey[:])}, nil
}

func (m *Manager) generateSignedPreKey(identity *KeyPair) (*signedPreKeyEntity, error) {
	kp, err := NewKeyPair()
	if err != nil {
		return nil, err
	}
	id := randID()
	signature := identity.Sign(kp.Serialize())
	if err := writeKeyFile(idFile(m.signedPreKeysDir, id), kp.PrivateKey[:]); err != nil {
		return nil, err
	}
	log.Debugf("[textsecure] generated signed pre-key %d at %s", id, time.Now().Format(time.RFC3339))
	return &signedPreKeyEntity{
		ID:        id,
		PublicKey: EncodeKey(kp.PublicKey[:]),
		Signature: helpers.Base64EncWithoutPadding(signature),
	}, nil
}

func idFile(dir string, id uint32) string {
	return filepath.Join(dir, strconv.FormatUint(uint64(id), 10))
}

func writeKeyFile(path string, key []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, key, 0600)
}
