// Package push obtains the standard and the voice push tokens from the
// platform notification services and hands them out as one pair.
package push

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/signal-golang/textsecure-accounts/metrics"
	log "github.com/sirupsen/logrus"
)

// DefaultTimeout bounds the wait for the standard push token.
const DefaultTimeout = 10 * time.Second

// TokenPair holds both push tokens, hex encoded for transport.
type TokenPair struct {
	PushToken string
	VoipToken string
}

// Platform is the notification subsystem of the device. Token delivery is
// asynchronous and reported back through the Registrar callbacks.
type Platform interface {
	// IsSimulator reports hardware that never receives push.
	IsSimulator() bool
	// BackgroundRefreshDenied reports whether background refresh is disabled.
	BackgroundRefreshDenied() bool
	// NotificationTypesDisabled reports known settings with every
	// notification type switched off.
	NotificationTypesDisabled() bool
	RegisterUserNotificationSettings()
	RegisterForRemoteNotifications()
	RegisterForVoipPush()
	// PreRegisteredVoipToken returns an already known voice token or nil.
	PreRegisteredVoipToken() []byte
}

// Registrar requests push tokens from the platform. Requests for the same
// token kind are single flight: concurrent callers share one pending result.
type Registrar struct {
	platform Platform
	timeout  time.Duration
	after    func(time.Duration) <-chan time.Time

	mu                    sync.Mutex
	notificationSettings  *promise
	standardToken         *promise
	voipToken             *promise
	voipRegistryRequested bool
}

// NewRegistrar returns a Registrar for platform. A timeout <= 0 uses DefaultTimeout.
func NewRegistrar(platform Platform, timeout time.Duration) *Registrar {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registrar{
		platform: platform,
		timeout:  timeout,
		after:    time.After,
	}
}

// RequestPushTokens waits for notification settings registration, then
// requests the standard token and, once it resolved, the voice token.
func (r *Registrar) RequestPushTokens(ctx context.Context) (TokenPair, error) {
	log.Infoln("[textsecure-push] RequestPushTokens")
	pair, err := r.requestPushTokens(ctx)
	switch {
	case err == nil:
		metrics.PushTokenRequests.WithLabelValues(metrics.OutcomeOK).Inc()
	case IsPushNotSupported(err):
		metrics.PushTokenRequests.WithLabelValues(metrics.OutcomeNotSupported).Inc()
	default:
		metrics.PushTokenRequests.WithLabelValues(metrics.OutcomeError).Inc()
	}
	return pair, err
}

func (r *Registrar) requestPushTokens(ctx context.Context) (TokenPair, error) {
	if _, err := r.registerUserNotificationSettings().wait(ctx); err != nil {
		return TokenPair{}, err
	}
	if r.platform.IsSimulator() {
		return TokenPair{}, PushNotSupportedError{Description: "Push not supported on simulators"}
	}
	pushToken, err := r.registerForStandardPushToken(ctx)
	if err != nil {
		return TokenPair{}, err
	}
	voipToken, err := r.registerForVoipPushToken(ctx)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{PushToken: pushToken, VoipToken: voipToken}, nil
}

// DidRegisterUserNotificationSettings is called by the platform once the
// notification settings are registered. Token requests are ignored by the
// platform before that.
func (r *Registrar) DidRegisterUserNotificationSettings() {
	r.mu.Lock()
	p := r.notificationSettings
	r.mu.Unlock()
	if p == nil {
		log.Errorln("[textsecure-push] notification settings registered without a pending request")
		return
	}
	p.fulfill(nil)
}

// DidReceiveStandardToken delivers the standard push token.
func (r *Registrar) DidReceiveStandardToken(token []byte) {
	r.mu.Lock()
	p := r.standardToken
	r.mu.Unlock()
	if p == nil {
		log.Errorln("[textsecure-push] standard push token received without a pending request")
		return
	}
	if len(token) == 0 {
		p.reject(AssertionError{Description: "empty standard push token"})
		return
	}
	p.fulfill(token)
}

// DidFailToReceiveStandardToken reports a platform failure for the standard token.
func (r *Registrar) DidFailToReceiveStandardToken(err error) {
	r.mu.Lock()
	p := r.standardToken
	r.mu.Unlock()
	if p == nil {
		log.Errorln("[textsecure-push] standard push token failure without a pending request:", err)
		return
	}
	p.reject(err)
}

// DidReceiveVoipToken delivers the voice push token.
func (r *Registrar) DidReceiveVoipToken(token []byte) {
	r.mu.Lock()
	p := r.voipToken
	r.mu.Unlock()
	if p == nil {
		log.Errorln("[textsecure-push] voip push token received without a pending request")
		return
	}
	if len(token) == 0 {
		p.reject(AssertionError{Description: "empty voip push token"})
		return
	}
	p.fulfill(token)
}

// DidInvalidateVoipToken is logged only, the next sync requests a fresh token.
func (r *Registrar) DidInvalidateVoipToken() {
	log.Errorln("[textsecure-push] voip push token invalidated")
}

// registerUserNotificationSettings is a one time gate, later calls share the
// first result.
func (r *Registrar) registerUserNotificationSettings() *promise {
	r.mu.Lock()
	if r.notificationSettings != nil {
		p := r.notificationSettings
		r.mu.Unlock()
		log.Debugln("[textsecure-push] already registered user notification settings")
		return p
	}
	p := newPromise()
	r.notificationSettings = p
	r.mu.Unlock()

	log.Infoln("[textsecure-push] registering user notification settings")
	r.platform.RegisterUserNotificationSettings()
	return p
}

// isSusceptibleToFailedPushRegistration reports devices where the platform
// neither delivers nor fails a token request: background refresh denied and
// all notification types disabled.
func (r *Registrar) isSusceptibleToFailedPushRegistration() bool {
	return r.platform.BackgroundRefreshDenied() && r.platform.NotificationTypesDisabled()
}

// join adds the caller to the pending request in slot, creating it when
// there is none. created reports whether the caller has to ask the platform.
func (r *Registrar) join(slot **promise) (p *promise, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if *slot == nil {
		*slot = newPromise()
		created = true
	}
	p = *slot
	p.waiting++
	return p, created
}

// await waits for the request in slot on behalf of one caller. A canceled
// caller only gives up its own wait; the request is rejected and the slot
// freed when the last caller leaves.
func (r *Registrar) await(ctx context.Context, slot **promise, p *promise) ([]byte, error) {
	select {
	case <-p.done:
		r.mu.Lock()
		p.waiting--
		if *slot == p {
			*slot = nil
		}
		r.mu.Unlock()
		return p.value, p.err
	case <-ctx.Done():
		r.mu.Lock()
		p.waiting--
		if p.waiting == 0 && *slot == p {
			*slot = nil
			p.reject(ctx.Err())
		}
		r.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (r *Registrar) registerForStandardPushToken(ctx context.Context) (string, error) {
	p, created := r.join(&r.standardToken)
	if created {
		go r.watchStandardToken(p)
		r.platform.RegisterForRemoteNotifications()
	} else {
		log.Infoln("[textsecure-push] already pending request for standard push token")
	}

	token, err := r.await(ctx, &r.standardToken, p)
	if err != nil {
		return "", err
	}
	if created {
		if r.isSusceptibleToFailedPushRegistration() {
			log.Errorln("[textsecure-push] device completed push registration although it was susceptible to failure")
		}
		log.Infoln("[textsecure-push] successfully registered for standard push notifications")
	}
	return hex.EncodeToString(token), nil
}

// watchStandardToken bounds the wait on devices that would never answer.
func (r *Registrar) watchStandardToken(p *promise) {
	select {
	case <-p.done:
		return
	case <-r.after(r.timeout):
	}
	if r.isSusceptibleToFailedPushRegistration() {
		// Waiting longer would hang forever on this configuration.
		p.reject(PushNotSupportedError{Description: "Device configuration disallows push notifications"})
		return
	}
	if p.isPending() {
		log.Infoln("[textsecure-push] standard push token is taking a while, still waiting")
	}
}

func (r *Registrar) registerForVoipPushToken(ctx context.Context) (string, error) {
	p, created := r.join(&r.voipToken)
	if created {
		// The voip registry requests a token as soon as it exists, so it is
		// only created once the promise is in place.
		r.mu.Lock()
		requestRegistry := !r.voipRegistryRequested
		r.voipRegistryRequested = true
		r.mu.Unlock()
		if requestRegistry {
			r.platform.RegisterForVoipPush()
		}
		if token := r.platform.PreRegisteredVoipToken(); token != nil {
			log.Infoln("[textsecure-push] using pre-registered voip token")
			p.fulfill(token)
		}
	}

	token, err := r.await(ctx, &r.voipToken, p)
	if err != nil {
		return "", err
	}
	if created {
		log.Infoln("[textsecure-push] successfully registered for voip push notifications")
	}
	return hex.EncodeToString(token), nil
}
