// Package fingerprint computes the numeric safety number two parties compare
// to verify each other's identity keys.
package fingerprint

import (
	"bytes"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"hash"
	"strings"

	"github.com/pkg/errors"
)

const (
	ITERATIONS          int   = 5200
	FINGERPRINT_VERSION int16 = 0

	djbType = 0x05
)

// ErrBadKeyLength is returned for an identity key that is neither a raw nor a
// serialized curve25519 public key.
var ErrBadKeyLength = errors.New("identity key must be 32 or 33 bytes")

// SafetyNumber returns the 60 digit safety number of the local and remote
// identities in blocks of five digits. Both sides compute the same blocks.
func SafetyNumber(local string, localKey []byte, remote string, remoteKey []byte) ([]string, error) {
	lk, err := serialize(localKey)
	if err != nil {
		return nil, errors.Wrap(err, "local identity")
	}
	rk, err := serialize(remoteKey)
	if err != nil {
		return nil, errors.Wrap(err, "remote identity")
	}
	lFingerprint := getFingerprint(ITERATIONS, []byte(local), lk)
	rFingerprint := getFingerprint(ITERATIONS, []byte(remote), rk)
	return CreateFingerprintNumbers(lFingerprint, rFingerprint), nil
}

func serialize(key []byte) ([]byte, error) {
	switch len(key) {
	case 32:
		return append([]byte{djbType}, key...), nil
	case 33:
		return key, nil
	}
	return nil, ErrBadKeyLength
}

func getFingerprint(iterations int, stableIdentifier []byte, publicKey []byte) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, FINGERPRINT_VERSION)
	startData := append(buf.Bytes(), publicKey...)
	startData = append(startData, stableIdentifier...)

	return repeatedHashing(startData, publicKey, iterations)
}

func repeatedHashing(startData []byte, key []byte, iterations int) []byte {
	digest := sha512.New()
	hash := startData
	for i := 0; i < iterations; i++ {
		digest.Write(hash)
		hash = finalDigest(digest, key)
	}
	return hash
}

// finalDigest writes data, returns the sum and resets digest.
func finalDigest(digest hash.Hash, data []byte) []byte {
	digest.Write(data)
	result := digest.Sum(nil)
	digest.Reset()
	return result
}

// CreateFingerprintNumbers orders the two display halves so that both
// parties see the same number.
func CreateFingerprintNumbers(localFingerprint []byte, remoteFingerprint []byte) []string {
	local := getFingerprintNumbersFor(localFingerprint)
	remote := getFingerprintNumbersFor(remoteFingerprint)
	if strings.Join(local, "") <= strings.Join(remote, "") {
		return append(local, remote...)
	}
	return append(remote, local...)
}

func getFingerprintNumbersFor(fingerprint []byte) []string {
	chunks := make([]string, 0, 6)
	for offset := 0; offset < 30; offset += 5 {
		chunks = append(chunks, getEncodedChunk(fingerprint, offset))
	}
	return chunks
}

func getEncodedChunk(hash []byte, offset int) string {
	chunk := byteArray5ToLong(hash, offset) % 100000
	return fmt.Sprintf("%05d", chunk)
}

func byteArray5ToLong(b []byte, offset int) uint64 {
	return (uint64(b[offset]) << 32) |
		(uint64(b[offset+1]) << 24) |
		(uint64(b[offset+2]) << 16) |
		(uint64(b[offset+3]) << 8) |
		uint64(b[offset+4])
}
