package utils

import (
	"os"
	"strings"

	uuid "github.com/satori/go.uuid"
)

func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// NormalizeRecipientID returns the canonical form of a uuid recipient id.
// Phone numbers and other ids are returned trimmed but otherwise unchanged.
func NormalizeRecipientID(id string) string {
	id = strings.TrimSpace(id)
	u, err := uuid.FromString(id)
	if err != nil {
		return id
	}
	return u.String()
}

// IsUUID reports whether id parses as a uuid.
func IsUUID(id string) bool {
	_, err := uuid.FromString(id)
	return err == nil
}
