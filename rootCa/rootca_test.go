package rootCa

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCertPoolBuiltIn(t *testing.T) {
	pool := NewCertPool("")
	assert.NotNil(t, pool)
	assert.Len(t, pool.Subjects(), 1)
}

func TestNewCertPoolFromFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "ca.pem")
	assert.NoError(t, os.WriteFile(file, []byte(rootPEM), 0600))
	assert.Len(t, NewCertPool(file).Subjects(), 1)
}
