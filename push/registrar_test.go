package push

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlatform struct {
	mu        sync.Mutex
	registrar *Registrar

	simulator     bool
	refreshDenied bool
	typesDisabled bool

	// delivered synchronously from inside the platform call when set
	standardToken []byte
	standardErr   error
	voipToken     []byte

	settingsCalls int
	remoteCalls   int
	voipCalls     int
	voipKnown     bool
}

func (f *fakePlatform) IsSimulator() bool             { return f.simulator }
func (f *fakePlatform) BackgroundRefreshDenied() bool { return f.refreshDenied }
func (f *fakePlatform) NotificationTypesDisabled() bool {
	return f.typesDisabled
}

func (f *fakePlatform) RegisterUserNotificationSettings() {
	f.mu.Lock()
	f.settingsCalls++
	f.mu.Unlock()
	f.registrar.DidRegisterUserNotificationSettings()
}

func (f *fakePlatform) RegisterForRemoteNotifications() {
	f.mu.Lock()
	f.remoteCalls++
	token, err := f.standardToken, f.standardErr
	f.mu.Unlock()
	if err != nil {
		f.registrar.DidFailToReceiveStandardToken(err)
	} else if token != nil {
		f.registrar.DidReceiveStandardToken(token)
	}
}

func (f *fakePlatform) RegisterForVoipPush() {
	f.mu.Lock()
	f.voipCalls++
	f.voipKnown = true
	token := f.voipToken
	f.mu.Unlock()
	f.registrar.DidReceiveVoipToken(token)
}

func (f *fakePlatform) PreRegisteredVoipToken() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.voipKnown {
		return f.voipToken
	}
	return nil
}

func (f *fakePlatform) calls() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settingsCalls, f.remoteCalls, f.voipCalls
}

func newTestRegistrar(f *fakePlatform) *Registrar {
	r := NewRegistrar(f, time.Second)
	f.registrar = r
	return r
}

func neverFires(time.Duration) <-chan time.Time {
	return make(chan time.Time)
}

func firesNow(time.Duration) <-chan time.Time {
	c := make(chan time.Time, 1)
	c <- time.Now()
	return c
}

func TestRequestPushTokensHexEncodes(t *testing.T) {
	f := &fakePlatform{
		standardToken: []byte{0xde, 0xad, 0x01},
		voipToken:     []byte{0xbe, 0xef},
	}
	r := newTestRegistrar(f)
	r.after = neverFires

	pair, err := r.RequestPushTokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dead01", pair.PushToken)
	assert.Equal(t, "beef", pair.VoipToken)

	settings, remote, voip := f.calls()
	assert.Equal(t, 1, settings)
	assert.Equal(t, 1, remote)
	assert.Equal(t, 1, voip)
	assert.Nil(t, r.standardToken)
	assert.Nil(t, r.voipToken)
}

func TestNotificationSettingsRegisteredOnce(t *testing.T) {
	f := &fakePlatform{
		standardToken: []byte{0x01},
		voipToken:     []byte{0x02},
	}
	r := newTestRegistrar(f)
	r.after = neverFires

	for i := 0; i < 3; i++ {
		_, err := r.RequestPushTokens(context.Background())
		require.NoError(t, err)
	}
	settings, remote, voip := f.calls()
	assert.Equal(t, 1, settings)
	assert.Equal(t, 3, remote)
	// later requests use the already registered voip token
	assert.Equal(t, 1, voip)
}

func TestSimulatorFailsWithoutRegistration(t *testing.T) {
	f := &fakePlatform{simulator: true}
	r := newTestRegistrar(f)

	_, err := r.RequestPushTokens(context.Background())
	require.Error(t, err)
	assert.True(t, IsPushNotSupported(err))

	_, remote, voip := f.calls()
	assert.Equal(t, 0, remote)
	assert.Equal(t, 0, voip)
}

func TestConcurrentRequestsShareOnePlatformCall(t *testing.T) {
	f := &fakePlatform{voipToken: []byte{0x0b}}
	r := newTestRegistrar(f)
	r.after = neverFires

	type result struct {
		pair TokenPair
		err  error
	}
	results := make(chan result, 2)
	request := func() {
		pair, err := r.RequestPushTokens(context.Background())
		results <- result{pair, err}
	}

	go request()
	assert.Eventually(t, func() bool {
		_, remote, _ := f.calls()
		return remote == 1
	}, time.Second, time.Millisecond)

	go request()
	assert.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.standardToken != nil && r.standardToken.waiting == 2
	}, time.Second, time.Millisecond)

	r.DidReceiveStandardToken([]byte{0x0a})

	for i := 0; i < 2; i++ {
		res := <-results
		require.NoError(t, res.err)
		assert.Equal(t, TokenPair{PushToken: "0a", VoipToken: "0b"}, res.pair)
	}
	_, remote, voip := f.calls()
	assert.Equal(t, 1, remote)
	assert.Equal(t, 1, voip)
}

func TestTimeoutOnSusceptibleDeviceIsPushNotSupported(t *testing.T) {
	f := &fakePlatform{refreshDenied: true, typesDisabled: true}
	r := newTestRegistrar(f)
	r.after = firesNow

	_, err := r.RequestPushTokens(context.Background())
	require.Error(t, err)
	assert.True(t, IsPushNotSupported(err))
	assert.Nil(t, r.standardToken)
}

func TestTimeoutOnHealthyDeviceKeepsWaiting(t *testing.T) {
	f := &fakePlatform{refreshDenied: true, voipToken: []byte{0x02}}
	r := newTestRegistrar(f)
	r.after = firesNow

	go func() {
		assert.Eventually(t, func() bool {
			_, remote, _ := f.calls()
			return remote == 1
		}, time.Second, time.Millisecond)
		time.Sleep(10 * time.Millisecond)
		r.DidReceiveStandardToken([]byte{0x01})
	}()

	pair, err := r.RequestPushTokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "01", pair.PushToken)
	assert.Equal(t, "02", pair.VoipToken)
}

func TestStandardTokenFailurePropagates(t *testing.T) {
	boom := errors.New("boom")
	f := &fakePlatform{standardErr: boom}
	r := newTestRegistrar(f)
	r.after = neverFires

	_, err := r.RequestPushTokens(context.Background())
	assert.Equal(t, boom, err)
	assert.False(t, IsPushNotSupported(err))
	_, _, voip := f.calls()
	assert.Equal(t, 0, voip)
}

func TestCanceledRequestReleasesSlot(t *testing.T) {
	f := &fakePlatform{}
	r := newTestRegistrar(f)
	r.after = neverFires

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		assert.Eventually(t, func() bool {
			_, remote, _ := f.calls()
			return remote == 1
		}, time.Second, time.Millisecond)
		cancel()
	}()
	_, err := r.RequestPushTokens(ctx)
	assert.Equal(t, context.Canceled, err)
	assert.Nil(t, r.standardToken)
}

func TestCanceledCallerDoesNotFailOtherCallers(t *testing.T) {
	f := &fakePlatform{voipToken: []byte{0x0b}}
	r := newTestRegistrar(f)
	r.after = neverFires

	ctx, cancel := context.WithCancel(context.Background())
	canceled := make(chan error, 1)
	go func() {
		_, err := r.RequestPushTokens(ctx)
		canceled <- err
	}()
	assert.Eventually(t, func() bool {
		_, remote, _ := f.calls()
		return remote == 1
	}, time.Second, time.Millisecond)

	patient := make(chan error, 1)
	var pair TokenPair
	go func() {
		var err error
		pair, err = r.RequestPushTokens(context.Background())
		patient <- err
	}()
	assert.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.standardToken != nil && r.standardToken.waiting == 2
	}, time.Second, time.Millisecond)

	cancel()
	assert.Equal(t, context.Canceled, <-canceled)

	// the request is still pending for the remaining caller
	r.mu.Lock()
	pending := r.standardToken
	r.mu.Unlock()
	require.NotNil(t, pending)
	assert.True(t, pending.isPending())

	r.DidReceiveStandardToken([]byte{0x0a})
	require.NoError(t, <-patient)
	assert.Equal(t, TokenPair{PushToken: "0a", VoipToken: "0b"}, pair)
	_, remote, _ := f.calls()
	assert.Equal(t, 1, remote)
}

func TestEmptyTokenIsAssertionError(t *testing.T) {
	f := &fakePlatform{standardToken: []byte{}}
	r := newTestRegistrar(f)
	r.after = neverFires

	_, err := r.RequestPushTokens(context.Background())
	var assertion AssertionError
	require.ErrorAs(t, err, &assertion)
	assert.Nil(t, r.standardToken)
}

func TestLateCallbacksAreDropped(t *testing.T) {
	r := NewRegistrar(&fakePlatform{}, 0)
	assert.Equal(t, DefaultTimeout, r.timeout)
	assert.NotPanics(t, func() {
		r.DidReceiveStandardToken([]byte{0x01})
		r.DidFailToReceiveStandardToken(errors.New("late"))
		r.DidReceiveVoipToken([]byte{0x02})
		r.DidRegisterUserNotificationSettings()
		r.DidInvalidateVoipToken()
	})
}
