// Package profiles fetches the public profiles of recipients, throttled per
// recipient, and applies them to the local profile cache and identity store.
package profiles

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/signal-golang/textsecure-accounts/config"
	"github.com/signal-golang/textsecure-accounts/metrics"
	"github.com/signal-golang/textsecure-accounts/transport"
	"github.com/signal-golang/textsecure-accounts/utils"
	log "github.com/sirupsen/logrus"
)

// ProfileCache stores the displayable part of a fetched profile.
type ProfileCache interface {
	UpdateProfile(recipientID string, profileNameEncrypted []byte, avatarURLPath string) error
}

// IdentityStore keeps the identity key on file per recipient.
type IdentityStore interface {
	// SaveRemoteIdentity stores identityKey and reports whether it replaced
	// a different key.
	SaveRemoteIdentity(recipientID string, identityKey []byte) (bool, error)
}

// SessionArchiver archives the secure sessions of a recipient.
type SessionArchiver interface {
	ArchiveAllSessions(recipientID string) error
}

// Options tune a Fetcher. Zero values use the production defaults.
type Options struct {
	// Window is the minimum time between two fetches of one recipient.
	// Zero disables throttling.
	Window time.Duration
	// Retries bounds the retries of a background profile update.
	Retries int
	// Dates defaults to a process local store.
	Dates FetchDateStore
	// IgnoreThrottling makes background updates skip the throttle.
	IgnoreThrottling bool
}

// OptionsFromConfig returns the fetcher options for cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		Window:  cfg.ThrottleWindow(),
		Retries: cfg.ProfileFetchRetries,
	}
	if cfg.Redis != "" {
		opts.Dates = NewRedisFetchDateStore(cfg.Redis)
	}
	return opts
}

// Fetcher is the profile fetch throttler.
type Fetcher struct {
	transport  transport.Transporter
	cache      ProfileCache
	identities IdentityStore
	sessions   SessionArchiver

	window           time.Duration
	retries          int
	ignoreThrottling bool
	now              func() time.Time

	// mu makes the throttle check and the fetch date update one step.
	mu    sync.Mutex
	dates FetchDateStore

	wg sync.WaitGroup
}

// NewFetcher returns a Fetcher. All collaborators are required.
func NewFetcher(t transport.Transporter, cache ProfileCache, identities IdentityStore, sessions SessionArchiver, opts Options) *Fetcher {
	if t == nil || cache == nil || identities == nil || sessions == nil {
		log.Panicf("[textsecure-profiles] NewFetcher: missing dependency")
	}
	if opts.Dates == nil {
		opts.Dates = NewMemoryFetchDateStore()
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Fetcher{
		transport:        t,
		cache:            cache,
		identities:       identities,
		sessions:         sessions,
		window:           opts.Window,
		retries:          opts.Retries,
		ignoreThrottling: opts.IgnoreThrottling,
		now:              time.Now,
		dates:            opts.Dates,
	}
}

// GetProfile fetches and validates the profile of recipientID. Unless
// ignoreThrottling is set it fails with a ThrottledError, without a network
// call, when the recipient was fetched within the throttle window.
func (f *Fetcher) GetProfile(recipientID string, ignoreThrottling bool) (*SignalServiceProfile, error) {
	recipientID = utils.NormalizeRecipientID(recipientID)
	if err := f.checkAndRecordFetch(recipientID, ignoreThrottling); err != nil {
		if IsThrottled(err) {
			metrics.ProfileFetches.WithLabelValues(metrics.OutcomeThrottled).Inc()
		} else {
			metrics.ProfileFetches.WithLabelValues(metrics.OutcomeError).Inc()
		}
		return nil, err
	}

	log.Debugln("[textsecure-profiles] getProfile", recipientID)
	profile, err := f.fetch(recipientID)
	switch _, invalid := AsValidationError(err); {
	case err == nil:
		metrics.ProfileFetches.WithLabelValues(metrics.OutcomeOK).Inc()
	case invalid:
		metrics.ProfileFetches.WithLabelValues(metrics.OutcomeInvalid).Inc()
	default:
		metrics.ProfileFetches.WithLabelValues(metrics.OutcomeError).Inc()
	}
	return profile, err
}

// checkAndRecordFetch records the fetch date before the request is made, so
// that calls arriving while it is outstanding are throttled too.
func (f *Fetcher) checkAndRecordFetch(recipientID string, ignoreThrottling bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	if !ignoreThrottling && f.window > 0 {
		last, ok, err := f.dates.LastFetch(recipientID)
		if err != nil {
			return err
		}
		if ok {
			elapsed := now.Sub(last)
			if elapsed < 0 {
				elapsed = -elapsed
			}
			if elapsed <= f.window {
				return ThrottledError{LastTimeInterval: elapsed}
			}
		}
	}
	return f.dates.SetLastFetch(recipientID, now)
}

func (f *Fetcher) fetch(recipientID string) (*SignalServiceProfile, error) {
	resp, err := f.transport.Get(fmt.Sprintf(PROFILE_PATH, recipientID))
	if err != nil {
		return nil, errors.Wrap(err, "get profile")
	}
	if resp == nil {
		return nil, ErrUnknownNetwork
	}
	if resp.IsError() {
		resp.ReadAll()
		return nil, resp
	}
	body, err := resp.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read profile")
	}
	return decodeProfile(recipientID, body)
}

// UpdateProfile refreshes the cached profile of recipientID in the
// background. Throttled and invalid responses end the update, other errors
// are retried up to remainingRetries times.
func (f *Fetcher) UpdateProfile(recipientID string, remainingRetries int) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.updateProfile(recipientID, remainingRetries)
	}()
}

// Run updates the profiles of all recipients, e.g. the members of a thread.
func (f *Fetcher) Run(recipientIDs []string) {
	for _, id := range recipientIDs {
		f.UpdateProfile(id, f.retries)
	}
}

// Wait blocks until all background updates are finished.
func (f *Fetcher) Wait() {
	f.wg.Wait()
}

func (f *Fetcher) updateProfile(recipientID string, remainingRetries int) {
	ignoreThrottling := f.ignoreThrottling
	for {
		profile, err := f.GetProfile(recipientID, ignoreThrottling)
		if err == nil {
			f.applyProfile(profile)
			return
		}
		if t := (ThrottledError{}); errors.As(err, &t) {
			log.Infof("[textsecure-profiles] skipping updateProfile: %s, lastTimeInterval: %s", recipientID, t.LastTimeInterval)
			return
		}
		if _, ok := AsValidationError(err); ok {
			log.Warnf("[textsecure-profiles] skipping updateProfile retry. Invalid profile for: %s error: %s", recipientID, err)
			return
		}
		if remainingRetries <= 0 {
			log.Errorf("[textsecure-profiles] failed to get profile for %s with error: %s", recipientID, err)
			return
		}
		remainingRetries--
		// The failed attempt recorded its own fetch date.
		ignoreThrottling = true
		log.Debugf("[textsecure-profiles] retrying profile fetch for %s, %d retries left: %s", recipientID, remainingRetries, err)
	}
}

func (f *Fetcher) applyProfile(profile *SignalServiceProfile) {
	f.verifyIdentityUpToDate(profile.RecipientID, profile.IdentityKey)
	err := f.cache.UpdateProfile(profile.RecipientID, profile.ProfileNameEncrypted, profile.AvatarURLPath)
	if err != nil {
		log.Errorf("[textsecure-profiles] failed to cache profile of %s: %s", profile.RecipientID, err)
	}
}

// verifyIdentityUpToDate archives the sessions of a recipient whose identity
// key changed. Sessions must never be reused with a rotated key.
func (f *Fetcher) verifyIdentityUpToDate(recipientID string, latestIdentityKey []byte) {
	changed, err := f.identities.SaveRemoteIdentity(recipientID, append([]byte(nil), latestIdentityKey...))
	if err != nil {
		log.Errorf("[textsecure-profiles] failed to save identity of %s: %s", recipientID, err)
	}
	if !changed {
		return
	}
	log.Infof("[textsecure-profiles] updated identity key with fetched profile for recipient: %s", recipientID)
	if err := f.sessions.ArchiveAllSessions(recipientID); err != nil {
		log.Errorf("[textsecure-profiles] failed to archive sessions of %s: %s", recipientID, err)
	}
}
