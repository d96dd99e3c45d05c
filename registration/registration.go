// Package registration describes the local registration of the account.
package registration

import (
	"encoding/binary"

	"github.com/signal-golang/textsecure-accounts/crypto"
	"github.com/signal-golang/textsecure-accounts/helpers"
)

// RegistrationInfo holds the data required to be identified by and
// to communicate with the push server.
// The data is generated once at install time and stored locally.
type RegistrationInfo struct {
	Password       string
	RegistrationID uint32
	SignalingKey   []byte
}

// NewRegistrationInfo generates the install time registration data.
func NewRegistrationInfo() RegistrationInfo {
	return RegistrationInfo{
		Password:       generatePassword(),
		RegistrationID: generateRegistrationID(),
		SignalingKey:   generateSignalingKey(),
	}
}

// Generate a random 16 byte string used for HTTP Basic Authentication to the server
func generatePassword() string {
	b := make([]byte, 16)
	crypto.RandBytes(b[:])
	return helpers.Base64EncWithoutPadding(b)
}

// Generate a random 14 bit integer
func generateRegistrationID() uint32 {
	var b [4]byte
	crypto.RandBytes(b[:])
	return binary.BigEndian.Uint32(b[:]) & 0x3fff
}

// Generate a 256 bit AES and a 160 bit HMAC-SHA1 key
// to be used to secure the communication with the server
func generateSignalingKey() []byte {
	b := make([]byte, 52)
	crypto.RandBytes(b[:])
	//set signaling key version
	b[0] = 1
	return b
}

// State is the progress of a registration.
type State int

const (
	Unregistered State = iota
	Verifying
	SyncingPushTokens
	ManualFetchFallback
	Registered
)

func (s State) String() string {
	switch s {
	case Verifying:
		return "verifying"
	case SyncingPushTokens:
		return "syncing push tokens"
	case ManualFetchFallback:
		return "falling back to manual fetch"
	case Registered:
		return "registered"
	default:
		return "unregistered"
	}
}
