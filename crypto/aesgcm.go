package crypto

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/pkg/errors"
)

const (
	TAG_LENGTH_BYTES   = 16
	NONCE_LENGTH_BYTES = 12

	// ProfileNamePaddedLength is the plaintext length of an encrypted profile name.
	ProfileNamePaddedLength = 26
)

// ErrProfileNameTooLong is returned when a name does not fit the padding.
var ErrProfileNameTooLong = errors.New("profile name too long")

// AesgcmDecrypt ...
func AesgcmDecrypt(key, nonce, data, mac []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aesgcm, err := cipher.NewGCMWithTagSize(block, TAG_LENGTH_BYTES)
	if err != nil {
		return nil, err
	}
	ciphertext := append(data, mac...)

	return aesgcm.Open(nil, nonce, ciphertext, nil)
}

//AesgcmEncrypt ...
func AesgcmEncrypt(key, nonce, input []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return aesgcm.Seal(nil, nonce, input, nil), nil
}

// EncryptProfileName zero pads name to paddedLength and seals it under the
// profile key. The random nonce is prepended to the ciphertext.
func EncryptProfileName(profileKey, name []byte, paddedLength int) ([]byte, error) {
	if len(name) > paddedLength {
		return nil, ErrProfileNameTooLong
	}
	padded := append(append([]byte{}, name...), make([]byte, paddedLength-len(name))...)
	nonce := make([]byte, NONCE_LENGTH_BYTES)
	RandBytes(nonce)
	ciphertext, err := AesgcmEncrypt(profileKey, nonce, padded)
	if err != nil {
		return nil, err
	}
	return append(nonce, ciphertext...), nil
}

// DecryptProfileName opens a nonce prefixed profile name and trims the zero padding.
func DecryptProfileName(profileKey, nonceAndCiphertext []byte) ([]byte, error) {
	if len(nonceAndCiphertext) < NONCE_LENGTH_BYTES+TAG_LENGTH_BYTES+1 {
		return nil, errors.Errorf("encrypted profile name too short: %d bytes", len(nonceAndCiphertext))
	}
	nonce := nonceAndCiphertext[:NONCE_LENGTH_BYTES]
	ciphertext := nonceAndCiphertext[NONCE_LENGTH_BYTES:]
	padded, err := AesgcmDecrypt(profileKey, nonce, ciphertext, []byte{})
	if err != nil {
		return nil, errors.Wrap(err, "decrypt profile name")
	}
	plaintextLength := 0
	for i := len(padded) - 1; i >= 0; i-- {
		if padded[i] != byte(0) {
			plaintextLength = i + 1
			break
		}
	}
	return padded[:plaintextLength], nil
}
