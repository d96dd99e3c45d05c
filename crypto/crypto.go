// Package crypto holds the symmetric primitives used on profile data.
package crypto

import (
	"crypto/rand"
	"io"
)

// RandBytes fills data with bytes from the CSPRNG
func RandBytes(data []byte) {
	if _, err := io.ReadFull(rand.Reader, data); err != nil {
		panic(err)
	}
}
