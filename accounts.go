// Copyright (c) 2014 Canonical Ltd.
// Licensed under the GPLv3, see the COPYING file for details.

// Package accounts turns a verification code into a registered account
// that can receive push notifications, or polls for messages when the
// device does not support push.
package accounts

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/signal-golang/textsecure-accounts/metrics"
	"github.com/signal-golang/textsecure-accounts/push"
	"github.com/signal-golang/textsecure-accounts/registration"
	"github.com/signal-golang/textsecure-accounts/transport"
	log "github.com/sirupsen/logrus"
)

// ErrBlankVerificationCode is returned by Register for an empty code.
var ErrBlankVerificationCode = errors.New("verification code is blank")

// PushTokenSource hands out the push tokens of the device.
type PushTokenSource interface {
	RequestPushTokens(ctx context.Context) (push.TokenPair, error)
}

// AccountStore is the persistent state of the local account.
type AccountStore interface {
	LocalNumber() string
	Name() string
	RegistrationInfo() registration.RegistrationInfo
	SetUUID(uuid string) error
	SetFetchesMessages(fetchesMessages bool) error
	LastUploadedPushTokens() push.TokenPair
	SetLastUploadedPushTokens(tokens push.TokenPair) error
	// DidRegister marks the account registered.
	DidRegister() error
}

// AccountManager runs the registration of the local account.
type AccountManager struct {
	transport transport.Transporter
	tokens    PushTokenSource
	store     AccountStore

	mu    sync.Mutex
	state registration.State
}

func NewAccountManager(t transport.Transporter, tokens PushTokenSource, store AccountStore) *AccountManager {
	if t == nil || tokens == nil || store == nil {
		log.Panicf("[textsecure] NewAccountManager: missing dependency")
	}
	return &AccountManager{
		transport: t,
		tokens:    tokens,
		store:     store,
	}
}

// State returns the progress of the current or last registration.
func (am *AccountManager) State() registration.State {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.state
}

func (am *AccountManager) setState(s registration.State) {
	am.mu.Lock()
	am.state = s
	am.mu.Unlock()
	log.Debugln("[textsecure] registration", s)
}

// Register verifies code, ignoring dashes, then registers the push tokens, falling back to
// manual message fetching when push is not supported. The account is marked
// registered only after all steps succeeded.
func (am *AccountManager) Register(ctx context.Context, code string) error {
	code = strings.Replace(code, "-", "", -1)
	if len(code) == 0 {
		metrics.Registrations.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return ErrBlankVerificationCode
	}
	outcome, err := am.register(ctx, code)
	if err != nil {
		am.setState(registration.Unregistered)
		metrics.Registrations.WithLabelValues(metrics.OutcomeError).Inc()
		return err
	}
	am.setState(registration.Registered)
	metrics.Registrations.WithLabelValues(outcome).Inc()
	return nil
}

func (am *AccountManager) register(ctx context.Context, code string) (string, error) {
	log.Debugln("[textsecure] registering with signal server")
	am.setState(registration.Verifying)
	if err := am.verifyCode(code); err != nil {
		return "", err
	}

	am.setState(registration.SyncingPushTokens)
	outcome := metrics.OutcomeOK
	job := NewSyncPushTokensJob(am, am.tokens, am.store)
	job.UploadOnlyIfStale = false
	err := job.Run(ctx)
	if push.IsPushNotSupported(err) {
		// simulators and devices with notifications and background
		// refresh disabled
		log.Infof("[textsecure] Recovered push registration error. Registering for manual message fetcher because push not supported: %s", err)
		am.setState(registration.ManualFetchFallback)
		outcome = metrics.OutcomeManualFetch
		err = am.RegisterForManualMessageFetching()
	}
	if err != nil {
		return "", err
	}

	log.Infoln("[textsecure] completing registration")
	if err := am.store.DidRegister(); err != nil {
		return "", errors.Wrap(err, "save registration")
	}
	return outcome, nil
}
