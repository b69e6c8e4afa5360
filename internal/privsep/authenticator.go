package privsep

import (
	"fmt"
	"sync"
	"time"

	"github.com/hnrobert/authsep/internal/logger"
)

// Stats counts what Authenticate did. Useful for tests and diagnostics.
type Stats struct {
	CacheHits         int
	RoundTrips        int
	TransportFailures int
}

// Authenticator is the unprivileged side. It is safe for concurrent use;
// calls are serialized so the worker always sees one request at a time.
type Authenticator struct {
	mu          sync.Mutex
	ch          *Channel
	worker      workerHandle
	cache       *credCache
	clock       Clock
	stopTimeout time.Duration

	// broken is set after a transport failure. The request/response
	// pairing can no longer be trusted, so later misses deny without
	// touching the channel.
	broken  bool
	stopped bool
	stats   Stats
}

func newAuthenticator(ch *Channel, worker workerHandle, opts Options) (*Authenticator, error) {
	salt, err := newSalt()
	if err != nil {
		return nil, fmt.Errorf("privsep: generate cache salt: %w", err)
	}
	return &Authenticator{
		ch:          ch,
		worker:      worker,
		cache:       newCredCache(salt, opts.CacheTimeout),
		clock:       opts.Clock,
		stopTimeout: opts.StopTimeout,
	}, nil
}

// WorkerPID returns the process id of the privileged worker.
func (a *Authenticator) WorkerPID() int {
	return a.worker.Pid()
}

// Authenticate reports whether username and password are valid.
//
// While a previous success for username is cached, the password is compared
// against that cached hash only and the worker is not consulted. Otherwise
// the worker decides; successes are cached, failures are not. Every fault
// resolves to false.
func (a *Authenticator) Authenticate(username, password string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	hash := a.cache.hash(password)
	if live, match := a.cache.lookup(username, hash, a.clock.Now()); live {
		a.stats.CacheHits++
		logger.Debug("credential cache hit for user: %s", username)
		return match
	}

	if a.stopped {
		logger.Warn("authentication for user %s refused: authenticator stopped", username)
		return false
	}
	if a.broken {
		logger.Error("authentication for user %s refused: worker channel is broken", username)
		return false
	}

	ok, err := a.roundTrip(AuthenticateRequest(username, password))
	if err != nil {
		a.broken = true
		a.stats.TransportFailures++
		logger.Error("authentication transport failure for user %s: %v", username, err)
		return false
	}
	if ok {
		a.cache.store(username, hash, a.clock.Now())
	}
	return ok
}

func (a *Authenticator) roundTrip(req Request) (bool, error) {
	a.stats.RoundTrips++
	if err := a.ch.Send(req); err != nil {
		return false, err
	}
	resp, err := a.ch.ReceiveResponse()
	if err != nil {
		return false, err
	}
	return resp.Result, nil
}

// Stop tells the worker to exit, waits for it and releases the channel.
// It returns at once if the worker is already gone, and calling it again is
// a no-op. A worker that ignores the request past the stop timeout is killed;
// if the kill itself fails, Stop gives up after one more timeout and returns
// the kill error.
func (a *Authenticator) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return nil
	}
	a.stopped = true

	select {
	case <-a.worker.Done():
		logger.Debug("worker %d already exited", a.worker.Pid())
		return a.ch.Close()
	default:
	}

	if err := a.ch.Send(StopRequest()); err != nil {
		// The worker is exiting on its own; waiting below still reaps it.
		logger.Debug("stop request not delivered: %v", err)
	}

	timer := time.NewTimer(a.stopTimeout)
	defer timer.Stop()
	select {
	case <-a.worker.Done():
	case <-timer.C:
		logger.Warn("worker %d did not exit within %s, killing it", a.worker.Pid(), a.stopTimeout)
		if err := a.worker.Kill(); err != nil {
			logger.Error("kill worker %d: %v", a.worker.Pid(), err)
			// An unprivileged supervisor cannot signal a root worker, so the
			// exit may never come. Wait one more timeout, then abandon it.
			grace := time.NewTimer(a.stopTimeout)
			defer grace.Stop()
			select {
			case <-a.worker.Done():
			case <-grace.C:
				_ = a.ch.Close()
				return fmt.Errorf("privsep: worker %d still running after failed kill: %w", a.worker.Pid(), err)
			}
		} else {
			<-a.worker.Done()
		}
	}
	if h, ok := a.worker.(*execHandle); ok && h.ExitErr() != nil {
		logger.Warn("worker %d exited: %v", a.worker.Pid(), h.ExitErr())
	}
	return a.ch.Close()
}

// Stats returns a snapshot of the counters.
func (a *Authenticator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}
