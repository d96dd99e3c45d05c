package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileNameCipher(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	sealed, err := EncryptProfileName(key, []byte("Alice"), ProfileNamePaddedLength)
	require.NoError(t, err)
	assert.Len(t, sealed, NONCE_LENGTH_BYTES+ProfileNamePaddedLength+TAG_LENGTH_BYTES)

	name, err := DecryptProfileName(key, sealed)
	require.NoError(t, err)
	assert.Equal(t, "Alice", string(name))
}

func TestProfileNameTooLong(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	_, err := EncryptProfileName(key, bytes.Repeat([]byte("a"), 27), ProfileNamePaddedLength)
	assert.Equal(t, ErrProfileNameTooLong, err)
}

func TestDecryptProfileNameRejectsShortInput(t *testing.T) {
	_, err := DecryptProfileName(bytes.Repeat([]byte{0x01}, 32), []byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestDecryptProfileNameWrongKey(t *testing.T) {
	sealed, err := EncryptProfileName(bytes.Repeat([]byte{0x01}, 32), []byte("Bob"), ProfileNamePaddedLength)
	require.NoError(t, err)
	_, err = DecryptProfileName(bytes.Repeat([]byte{0x02}, 32), sealed)
	assert.Error(t, err)
}
