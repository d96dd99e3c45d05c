package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/signal-golang/textsecure-accounts/config"
	"github.com/signal-golang/textsecure-accounts/push"
	"github.com/signal-golang/textsecure-accounts/registration"
	"github.com/signal-golang/textsecure-accounts/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reply struct {
	status int
	body   string
}

type request struct {
	route string
	body  []byte
}

type fakeServer struct {
	*httptest.Server
	mu       sync.Mutex
	replies  map[string]reply
	requests []request
}

func newFakeServer(replies map[string]reply) *fakeServer {
	fs := &fakeServer{replies: replies}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path
		b, _ := io.ReadAll(r.Body)
		fs.mu.Lock()
		fs.requests = append(fs.requests, request{route, b})
		rep, ok := fs.replies[route]
		fs.mu.Unlock()
		if !ok {
			rep = reply{status: http.StatusNotFound}
		}
		w.WriteHeader(rep.status)
		io.WriteString(w, rep.body)
	}))
	return fs
}

func (fs *fakeServer) routes() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var routes []string
	for _, r := range fs.requests {
		routes = append(routes, r.route)
	}
	return routes
}

func (fs *fakeServer) body(route string) []byte {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, r := range fs.requests {
		if r.route == route {
			return r.body
		}
	}
	return nil
}

type fakeTokens struct {
	pair     push.TokenPair
	err      error
	calls    int
	onCalled func()
}

func (f *fakeTokens) RequestPushTokens(ctx context.Context) (push.TokenPair, error) {
	f.calls++
	if f.onCalled != nil {
		f.onCalled()
	}
	return f.pair, f.err
}

type fixture struct {
	server  *fakeServer
	tokens  *fakeTokens
	cfg     *config.Config
	cfgFile string
	store   *ConfigAccountStore
	manager *AccountManager
}

func newFixture(t *testing.T, replies map[string]reply, tokens *fakeTokens) *fixture {
	fx := &fixture{
		server:  newFakeServer(replies),
		tokens:  tokens,
		cfg:     &config.Config{Tel: "+4915", Name: "me"},
		cfgFile: filepath.Join(t.TempDir(), "config.yml"),
	}
	t.Cleanup(fx.server.Close)
	fx.store = NewConfigAccountStore(fx.cfgFile, fx.cfg)
	info := fx.store.RegistrationInfo()
	tr := transport.NewHTTPTransporter(fx.server.URL, fx.cfg.Tel, info.Password, "test", "", nil)
	fx.manager = NewAccountManager(tr, tokens, fx.store)
	return fx
}

var tokenPair = push.TokenPair{PushToken: "0a0b", VoipToken: "0c"}

func TestRegisterBlankCodeMakesNoNetworkCalls(t *testing.T) {
	fx := newFixture(t, nil, &fakeTokens{pair: tokenPair})

	err := fx.manager.Register(context.Background(), "")
	assert.Equal(t, ErrBlankVerificationCode, err)
	assert.Empty(t, fx.server.routes())
	assert.Equal(t, 0, fx.tokens.calls)
	assert.False(t, fx.store.Registered())
}

func TestRegisterDashOnlyCodeIsBlank(t *testing.T) {
	fx := newFixture(t, nil, &fakeTokens{pair: tokenPair})

	for _, code := range []string{"-", "---"} {
		err := fx.manager.Register(context.Background(), code)
		assert.Equal(t, ErrBlankVerificationCode, err)
	}
	assert.Empty(t, fx.server.routes())
	assert.Equal(t, 0, fx.tokens.calls)
}

func TestRegisterUploadsPushTokens(t *testing.T) {
	tokens := &fakeTokens{pair: tokenPair}
	fx := newFixture(t, map[string]reply{
		"PUT /v1/accounts/code/123456": {200, `{"uuid":"6ba7b810-9dad-11d1-80b4-00c04fd430c8"}`},
		"PUT /v1/accounts/apn/":        {204, ""},
	}, tokens)
	tokens.onCalled = func() {
		// verification completes before any push token work
		assert.Equal(t, []string{"PUT /v1/accounts/code/123456"}, fx.server.routes())
		assert.Equal(t, registration.SyncingPushTokens, fx.manager.State())
	}

	require.NoError(t, fx.manager.Register(context.Background(), "123-456"))
	assert.Equal(t, []string{"PUT /v1/accounts/code/123456", "PUT /v1/accounts/apn/"}, fx.server.routes())

	attrs := AccountAttributes{}
	require.NoError(t, json.Unmarshal(fx.server.body("PUT /v1/accounts/code/123456"), &attrs))
	assert.False(t, attrs.FetchesMessages)
	assert.Equal(t, fx.cfg.RegistrationID, attrs.RegistrationID)
	assert.Equal(t, "me", attrs.Name)

	uploaded := pushTokens{}
	require.NoError(t, json.Unmarshal(fx.server.body("PUT /v1/accounts/apn/"), &uploaded))
	assert.Equal(t, pushTokens{ApnRegistrationID: "0a0b", VoipRegistrationID: "0c"}, uploaded)

	assert.Equal(t, registration.Registered, fx.manager.State())
	saved, err := ReadConfig(fx.cfgFile)
	require.NoError(t, err)
	assert.True(t, saved.Registered)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", saved.UUID)
	assert.Equal(t, "0a0b", saved.PushToken)
	assert.Equal(t, "0c", saved.VoipToken)
	assert.Equal(t, "+4915", fx.store.LocalNumber())
}

func TestRegisterFallsBackToManualFetch(t *testing.T) {
	fx := newFixture(t, map[string]reply{
		"PUT /v1/accounts/code/123456": {200, ""},
		"DELETE /v1/accounts/apn/":     {204, ""},
		"PUT /v1/accounts/attributes/": {204, ""},
	}, &fakeTokens{err: push.PushNotSupportedError{Description: "Push not supported on simulators"}})

	require.NoError(t, fx.manager.Register(context.Background(), "123456"))
	assert.Equal(t, []string{
		"PUT /v1/accounts/code/123456",
		"DELETE /v1/accounts/apn/",
		"PUT /v1/accounts/attributes/",
	}, fx.server.routes())

	attrs := AccountAttributes{}
	require.NoError(t, json.Unmarshal(fx.server.body("PUT /v1/accounts/attributes/"), &attrs))
	assert.True(t, attrs.FetchesMessages)

	assert.True(t, fx.store.Registered())
	assert.True(t, fx.cfg.FetchesMessages)
	assert.Equal(t, registration.Registered, fx.manager.State())
}

func TestRegisterVerificationFailureIsTerminal(t *testing.T) {
	fx := newFixture(t, map[string]reply{
		"PUT /v1/accounts/code/123456": {403, ""},
	}, &fakeTokens{pair: tokenPair})

	err := fx.manager.Register(context.Background(), "123456")
	require.Error(t, err)
	resp, ok := err.(*transport.Response)
	require.True(t, ok)
	assert.Equal(t, 403, resp.Status)
	assert.Equal(t, 0, fx.tokens.calls)
	assert.False(t, fx.store.Registered())
	assert.Equal(t, registration.Unregistered, fx.manager.State())
}

func TestRegisterPushErrorIsTerminal(t *testing.T) {
	fx := newFixture(t, map[string]reply{
		"PUT /v1/accounts/code/123456": {200, ""},
	}, &fakeTokens{err: errors.New("apns unreachable")})

	err := fx.manager.Register(context.Background(), "123456")
	assert.EqualError(t, err, "apns unreachable")
	assert.Equal(t, []string{"PUT /v1/accounts/code/123456"}, fx.server.routes())
	assert.False(t, fx.store.Registered())
}

func TestRegisterFailedUploadIsTerminal(t *testing.T) {
	fx := newFixture(t, map[string]reply{
		"PUT /v1/accounts/code/123456": {200, ""},
		"PUT /v1/accounts/apn/":        {500, ""},
	}, &fakeTokens{pair: tokenPair})

	require.Error(t, fx.manager.Register(context.Background(), "123456"))
	assert.False(t, fx.store.Registered())
	assert.Empty(t, fx.cfg.PushToken)
}

func TestRegisterRegistrationLock(t *testing.T) {
	fx := newFixture(t, map[string]reply{
		"PUT /v1/accounts/code/123456": {423, `{"timeRemaining":3600,"backupCredentials":{"username":"u","password":"p"}}`},
	}, &fakeTokens{pair: tokenPair})

	err := fx.manager.Register(context.Background(), "123456")
	lockErr, ok := err.(*RegistrationLockError)
	require.True(t, ok, "%v", err)
	assert.Equal(t, uint32(3600), lockErr.TimeRemaining)
	require.NotNil(t, lockErr.Credentials)
	assert.Equal(t, "u", lockErr.Credentials.Username)
	assert.Equal(t, 0, fx.tokens.calls)
}

func TestSyncPushTokensJobSkipsUpToDateTokens(t *testing.T) {
	fx := newFixture(t, map[string]reply{
		"PUT /v1/accounts/apn/": {204, ""},
	}, &fakeTokens{pair: tokenPair})

	job := NewSyncPushTokensJob(fx.manager, fx.tokens, fx.store)
	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"PUT /v1/accounts/apn/"}, fx.server.routes())

	job.UploadOnlyIfStale = false
	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, fx.server.routes(), 2)
}

func TestGetTurnServerInfo(t *testing.T) {
	fx := newFixture(t, map[string]reply{
		"GET /v1/accounts/turn": {200, `{"username":"u","password":"p","urls":["turn:a","turn:b"]}`},
	}, &fakeTokens{})

	info, err := fx.manager.GetTurnServerInfo()
	require.NoError(t, err)
	assert.Equal(t, &TurnServerInfo{Username: "u", Password: "p", URLs: []string{"turn:a", "turn:b"}}, info)
}

func TestDecodeTurnServerInfoRejectsUnexpectedShape(t *testing.T) {
	for _, body := range []string{
		``,
		`[]`,
		`{"username":"u","password":"p"}`,
		`{"username":1,"password":"p","urls":[]}`,
		`{"username":"u","password":"p","urls":[1]}`,
	} {
		_, err := decodeTurnServerInfo([]byte(body))
		assert.Equal(t, ErrUnableToProcessServerResponse, err, body)
	}
}
