package fingerprint

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	aliceKey = bytes.Repeat([]byte{0x11}, 32)
	bobKey   = bytes.Repeat([]byte{0x22}, 32)
)

func TestSafetyNumberIsSymmetric(t *testing.T) {
	a, err := SafetyNumber("+4915", aliceKey, "+4916", bobKey)
	require.NoError(t, err)
	b, err := SafetyNumber("+4916", bobKey, "+4915", aliceKey)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	require.Len(t, a, 12)
	for _, block := range a {
		assert.Len(t, block, 5)
		assert.Empty(t, strings.Trim(block, "0123456789"))
	}
}

func TestSafetyNumberAcceptsSerializedKeys(t *testing.T) {
	a, err := SafetyNumber("+4915", aliceKey, "+4916", bobKey)
	require.NoError(t, err)
	b, err := SafetyNumber("+4915", append([]byte{djbType}, aliceKey...), "+4916", bobKey)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSafetyNumberChangesWithKey(t *testing.T) {
	a, err := SafetyNumber("+4915", aliceKey, "+4916", bobKey)
	require.NoError(t, err)
	b, err := SafetyNumber("+4915", aliceKey, "+4916", bytes.Repeat([]byte{0x33}, 32))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSafetyNumberRejectsBadKeys(t *testing.T) {
	_, err := SafetyNumber("+4915", []byte{1, 2, 3}, "+4916", bobKey)
	assert.Error(t, err)
	_, err = SafetyNumber("+4915", aliceKey, "+4916", nil)
	assert.Error(t, err)
}

func TestGetEncodedChunk(t *testing.T) {
	assert.Equal(t, "00000", getEncodedChunk(make([]byte, 5), 0))
	// 0x01_0000_0000 = 4294967296
	assert.Equal(t, "67296", getEncodedChunk([]byte{1, 0, 0, 0, 0}, 0))
}
