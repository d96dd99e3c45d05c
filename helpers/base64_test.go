package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase64WithoutPadding(t *testing.T) {
	s := Base64EncWithoutPadding([]byte{1, 2, 3, 4})
	assert.Equal(t, "AQIDBA", s)

	b, err := Base64DecodeNonPadded(s)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, b)

	b, err = Base64DecodeNonPadded("AQIDBA==")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, b)

	_, err = Base64DecodeNonPadded("#?")
	assert.Error(t, err)
}
