package profiles

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/signal-golang/textsecure-accounts/contacts"
	"github.com/signal-golang/textsecure-accounts/sessions"
	"github.com/signal-golang/textsecure-accounts/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A contacts file that cannot be written must not leave the sessions of a
// rotated identity in use.
func TestRotatedIdentityArchivesSessionsWhenContactsUnwritable(t *testing.T) {
	dir := t.TempDir()
	contactsDir := filepath.Join(dir, "contacts")
	require.NoError(t, os.MkdirAll(contactsDir, 0700))
	store, err := contacts.Open(filepath.Join(contactsDir, "contacts.yml"))
	require.NoError(t, err)
	_, err = store.SaveRemoteIdentity("+4915", bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)

	sessionStore, err := sessions.NewStore(dir)
	require.NoError(t, err)
	live := filepath.Join(dir, "sessions", "+4915_1")
	require.NoError(t, os.WriteFile(live, []byte("session"), 0600))

	// later writes of the contacts file fail
	require.NoError(t, os.RemoveAll(contactsDir))

	srv := newProfileServer(fmt.Sprintf(`{"identityKey":%q}`, identityKey(2)))
	defer srv.Close()
	tr := transport.NewHTTPTransporter(srv.URL, "", "", "", "", nil)
	f := NewFetcher(tr, store, store, sessionStore, Options{})

	f.UpdateProfile("+4915", 0)
	f.Wait()
	ids, err := sessionStore.DeviceIDs("+4915")
	require.NoError(t, err)
	assert.Empty(t, ids)

	// the key on record is still the old one, so the next fetch reports
	// the change again
	c, ok := store.Get("+4915")
	require.True(t, ok)
	assert.Equal(t, bytes.Repeat([]byte{1}, 32), c.IdentityKey)
	changed, err := store.SaveRemoteIdentity("+4915", bytes.Repeat([]byte{2}, 32))
	assert.Error(t, err)
	assert.True(t, changed)
}
