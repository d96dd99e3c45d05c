// Package repair fixes accounts that registered without uploading their
// identity key. A previous client bug made it possible for re-registering
// users to register their new account but never upload new pre-keys.
package repair

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/signal-golang/textsecure-accounts/metrics"
	"github.com/signal-golang/textsecure-accounts/prekeys"
	"github.com/signal-golang/textsecure-accounts/profiles"
	log "github.com/sirupsen/logrus"
)

// DefaultRetryInterval is the time between two profile checks.
const DefaultRetryInterval = 5 * time.Minute

type ProfileFetcher interface {
	GetProfile(recipientID string, ignoreThrottling bool) (*profiles.SignalServiceProfile, error)
}

type PreKeyRegistrar interface {
	RegisterPreKeys(mode prekeys.Mode) error
}

// AccountState reports the local account, an empty number means the account
// is not registered.
type AccountState interface {
	LocalNumber() string
}

var (
	sharedMu  sync.Mutex
	sharedJob *CompleteRegistrationFixerJob
)

// CompleteRegistrationFixerJob polls the own profile until it has a valid
// identity key, uploading pre-keys when it does not. Only one job may run
// per process.
type CompleteRegistrationFixerJob struct {
	profiles ProfileFetcher
	prekeys  PreKeyRegistrar
	account  AccountState
	interval time.Duration

	newTicker func(time.Duration) (<-chan time.Time, func())

	completionHandler func()
	completed         sync.Once
	started           bool // guarded by sharedMu
	stop              chan struct{}
	stopOnce          sync.Once
	done              chan struct{}
}

// NewCompleteRegistrationFixerJob returns an idle job. An interval <= 0 uses
// DefaultRetryInterval.
func NewCompleteRegistrationFixerJob(p ProfileFetcher, k PreKeyRegistrar, a AccountState, interval time.Duration) *CompleteRegistrationFixerJob {
	if p == nil || k == nil || a == nil {
		log.Panicf("[textsecure-repair] NewCompleteRegistrationFixerJob: missing dependency")
	}
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	return &CompleteRegistrationFixerJob{
		profiles:  p,
		prekeys:   k,
		account:   a,
		interval:  interval,
		newTicker: newTicker,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func newTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Start arms the timer and runs the first check immediately. The
// completionHandler is called once when the account is fine. Starting a
// second job while one is active, or starting a job twice, panics.
func (j *CompleteRegistrationFixerJob) Start(completionHandler func()) {
	sharedMu.Lock()
	if j.started {
		sharedMu.Unlock()
		log.Panicf("[textsecure-repair] CompleteRegistrationFixerJob instance was already started")
	}
	if sharedJob != nil {
		sharedMu.Unlock()
		log.Panicf("[textsecure-repair] CompleteRegistrationFixerJob should only be started once")
	}
	j.started = true
	sharedJob = j
	sharedMu.Unlock()

	j.completionHandler = completionHandler
	ticks, stopTicker := j.newTicker(j.interval)
	go j.run(ticks, stopTicker)
}

// Stop disarms the timer without completing. It returns once the job's
// goroutine exited, or at once for a job that was never started.
func (j *CompleteRegistrationFixerJob) Stop() {
	sharedMu.Lock()
	started := j.started
	sharedMu.Unlock()
	if !started {
		return
	}
	j.stopOnce.Do(func() { close(j.stop) })
	<-j.done
}

// Done is closed when the job stopped polling.
func (j *CompleteRegistrationFixerJob) Done() <-chan struct{} {
	return j.done
}

func (j *CompleteRegistrationFixerJob) run(ticks <-chan time.Time, stopTicker func()) {
	defer func() {
		stopTicker()
		release(j)
		close(j.done)
	}()
	for {
		if j.tick() {
			return
		}
		select {
		case <-j.stop:
			return
		case <-ticks:
		}
	}
}

func release(j *CompleteRegistrationFixerJob) {
	sharedMu.Lock()
	if sharedJob == j {
		sharedJob = nil
	}
	sharedMu.Unlock()
}

// tick reports whether the job is complete.
func (j *CompleteRegistrationFixerJob) tick() bool {
	metrics.RepairTicks.Inc()
	if err := j.ensureProfileComplete(); err != nil {
		log.Errorf("[textsecure-repair] failed with %s. We'll try again in %s.", err, j.interval)
		return false
	}
	j.completed.Do(func() {
		log.Infoln("[textsecure-repair] complete. Canceling timer.")
		if j.completionHandler != nil {
			j.completionHandler()
		}
	})
	return true
}

func (j *CompleteRegistrationFixerJob) ensureProfileComplete() error {
	localNumber := j.account.LocalNumber()
	if localNumber == "" {
		// not registered, nothing to repair
		return nil
	}

	// the ticker already spaces the checks, a throttled tick would only
	// delay the repair by another interval
	_, err := j.profiles.GetProfile(localNumber, true)
	if err == nil {
		log.Infoln("[textsecure-repair] verified recipient profile is in good shape:", localNumber)
		return nil
	}
	v, ok := profiles.AsValidationError(err)
	if !ok || v.Kind != profiles.InvalidIdentityKey {
		return err
	}

	log.Warnf("[textsecure-repair] detected incomplete profile for %s error: %s", localNumber, v.Description)
	if err := j.prekeys.RegisterPreKeys(prekeys.SignedAndOneTime); err != nil {
		return errors.Wrap(err, "register pre-keys")
	}
	log.Infoln("[textsecure-repair] successfully uploaded pre-keys. Profile should be fixed.")
	return nil
}
