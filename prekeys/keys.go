// Copyright (c) 2014 Canonical Ltd.
// Licensed under the GPLv3, see the COPYING file for details.

package prekeys

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/signal-golang/textsecure-accounts/crypto"
	"github.com/signal-golang/textsecure-accounts/helpers"
	"golang.org/x/crypto/curve25519"
)

// djbType is the type byte prefixed to serialized curve25519 public keys.
const djbType = 5

// ErrBadPublicKey is raised when a given public key is not in the
// expected format.
var ErrBadPublicKey = errors.New("public key not formatted correctly")

// KeyPair is a curve25519 key pair.
type KeyPair struct {
	PrivateKey [32]byte
	PublicKey  [32]byte
}

// NewKeyPair generates a random curve25519 key pair.
func NewKeyPair() (*KeyPair, error) {
	kp := &KeyPair{}
	crypto.RandBytes(kp.PrivateKey[:])
	clamp(&kp.PrivateKey)
	return kp, kp.derivePublic()
}

func (kp *KeyPair) derivePublic() error {
	pub, err := curve25519.X25519(kp.PrivateKey[:], curve25519.Basepoint)
	if err != nil {
		return errors.Wrap(err, "derive public key")
	}
	copy(kp.PublicKey[:], pub)
	return nil
}

// Serialize returns the public key with its type byte.
func (kp *KeyPair) Serialize() []byte {
	return append([]byte{djbType}, kp.PublicKey[:]...)
}

// Sign returns the XEdDSA signature of msg, verifiable with the public key.
func (kp *KeyPair) Sign(msg []byte) []byte {
	var random [64]byte
	crypto.RandBytes(random[:])
	return xeddsaSign(kp.PrivateKey, msg, random)[:]
}

// VerifySignature checks an XEdDSA signature against a curve25519 public
// key, raw or serialized with its type byte.
func VerifySignature(publicKey []byte, msg, sig []byte) bool {
	if len(publicKey) == 33 && publicKey[0] == djbType {
		publicKey = publicKey[1:]
	}
	if len(publicKey) != 32 || len(sig) != 64 {
		return false
	}
	var pub [32]byte
	var signature [64]byte
	copy(pub[:], publicKey)
	copy(signature[:], sig)
	return xeddsaVerify(pub, msg, signature)
}

func EncodeKey(key []byte) string {
	return helpers.Base64EncWithoutPadding(append([]byte{djbType}, key[:]...))
}

func DecodeKey(s string) ([]byte, error) {
	b, err := helpers.Base64DecodeNonPadded(s)
	if err != nil {
		return nil, err
	}
	if len(b) != 33 || b[0] != djbType {
		return nil, ErrBadPublicKey
	}
	return b[1:], nil
}

func randID() uint32 {
	var b [4]byte
	crypto.RandBytes(b[:])
	return binary.BigEndian.Uint32(b[:]) & 0xffffff
}
