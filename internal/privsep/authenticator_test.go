package privsep

import (
	"bufio"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hnrobert/authsep/internal/auth"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingChecker accepts the passwords in accounts and counts every call.
type countingChecker struct {
	accounts map[string]string
	calls    atomic.Int32
}

func (c *countingChecker) Check(username, password string) (bool, error) {
	c.calls.Add(1)
	want, ok := c.accounts[username]
	return ok && want == password, nil
}

// goroutineWorker runs a Worker or any other loop in-process and stands in
// for the worker process.
type goroutineWorker struct {
	done  chan struct{}
	kill  func()
	kills atomic.Int32
}

func (g *goroutineWorker) Pid() int              { return os.Getpid() }
func (g *goroutineWorker) Done() <-chan struct{} { return g.done }
func (g *goroutineWorker) Kill() error {
	g.kills.Add(1)
	g.kill()
	return nil
}

// startWith wires an Authenticator to serve, which owns the worker ends of
// the pipes until it returns.
func startWith(t *testing.T, opts Options, serve func(r *os.File, w *os.File)) (*Authenticator, *goroutineWorker) {
	t.Helper()
	parentR, childW, err := os.Pipe()
	require.NoError(t, err)
	childR, parentW, err := os.Pipe()
	require.NoError(t, err)

	g := &goroutineWorker{done: make(chan struct{})}
	g.kill = func() { closeAll(childR, childW) }
	go func() {
		defer close(g.done)
		defer closeAll(childR, childW)
		serve(childR, childW)
	}()

	a, err := newAuthenticator(NewChannel(parentR, parentW), g, opts.withDefaults())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Stop() })
	return a, g
}

func startInProcess(t *testing.T, checker auth.Checker, opts Options) (*Authenticator, *goroutineWorker) {
	return startWith(t, opts, func(r, w *os.File) {
		_ = (&Worker{Channel: NewChannel(r, w), Checker: checker}).Run()
	})
}

func TestCacheHitSkipsBackend(t *testing.T) {
	checker := &countingChecker{accounts: map[string]string{"alice": "wonderland"}}
	a, _ := startInProcess(t, checker, Options{CacheTimeout: time.Minute, Clock: newFakeClock()})

	assert.True(t, a.Authenticate("alice", "wonderland"))
	assert.True(t, a.Authenticate("alice", "wonderland"))
	assert.True(t, a.Authenticate("alice", "wonderland"))

	assert.EqualValues(t, 1, checker.calls.Load())
	stats := a.Stats()
	assert.Equal(t, 2, stats.CacheHits)
	assert.Equal(t, 1, stats.RoundTrips)
}

func TestCacheExpiry(t *testing.T) {
	clock := newFakeClock()
	checker := &countingChecker{accounts: map[string]string{"alice": "wonderland"}}
	a, _ := startInProcess(t, checker, Options{CacheTimeout: 10 * time.Minute, Clock: clock})

	require.True(t, a.Authenticate("alice", "wonderland"))
	clock.Advance(10*time.Minute - time.Second)
	require.True(t, a.Authenticate("alice", "wonderland"))
	assert.EqualValues(t, 1, checker.calls.Load())

	clock.Advance(time.Second)
	require.True(t, a.Authenticate("alice", "wonderland"))
	assert.EqualValues(t, 2, checker.calls.Load())
}

func TestFailuresAreNotCached(t *testing.T) {
	checker := &countingChecker{accounts: map[string]string{"alice": "wonderland"}}
	a, _ := startInProcess(t, checker, Options{CacheTimeout: time.Hour, Clock: newFakeClock()})

	assert.False(t, a.Authenticate("alice", "guess"))
	assert.False(t, a.Authenticate("alice", "guess"))
	assert.EqualValues(t, 2, checker.calls.Load())
	assert.Zero(t, a.Stats().CacheHits)
}

func TestWrongPasswordDuringCacheWindow(t *testing.T) {
	checker := &countingChecker{accounts: map[string]string{"alice": "wonderland"}}
	a, _ := startInProcess(t, checker, Options{CacheTimeout: time.Hour, Clock: newFakeClock()})

	require.True(t, a.Authenticate("alice", "wonderland"))
	assert.False(t, a.Authenticate("alice", "looking-glass"))
	assert.True(t, a.Authenticate("alice", "wonderland"))
	assert.EqualValues(t, 1, checker.calls.Load())
}

func TestZeroCacheTimeoutAlwaysAsks(t *testing.T) {
	checker := &countingChecker{accounts: map[string]string{"alice": "wonderland"}}
	a, _ := startInProcess(t, checker, Options{CacheTimeout: 0, Clock: newFakeClock()})

	require.True(t, a.Authenticate("alice", "wonderland"))
	require.True(t, a.Authenticate("alice", "wonderland"))
	assert.EqualValues(t, 2, checker.calls.Load())
}

func TestSaltIsolation(t *testing.T) {
	checker := &countingChecker{accounts: map[string]string{"alice": "wonderland"}}
	first, _ := startInProcess(t, checker, Options{})
	second, _ := startInProcess(t, checker, Options{})

	assert.NotEqual(t, first.cache.salt, second.cache.salt)
	assert.NotEqual(t, first.cache.hash("wonderland"), second.cache.hash("wonderland"))

	clock := newFakeClock()
	first.cache.store("alice", first.cache.hash("wonderland"), clock.Now())
	live, match := second.cache.lookup("alice", second.cache.hash("wonderland"), clock.Now())
	assert.False(t, live)
	assert.False(t, match)

	second.cache.store("alice", first.cache.hash("wonderland"), clock.Now())
	live, match = second.cache.lookup("alice", second.cache.hash("wonderland"), clock.Now())
	assert.True(t, live)
	assert.False(t, match)
}

func TestSaltShape(t *testing.T) {
	for i := 0; i < 50; i++ {
		s, err := newSalt()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(s), saltMinLen)
		assert.LessOrEqual(t, len(s), saltMaxLen)
		for _, r := range s {
			assert.Contains(t, saltAlphabet, string(r))
		}
	}
}

func TestGroupGatingThroughChannel(t *testing.T) {
	backend := &countingChecker{accounts: map[string]string{"alice": "wonderland", "bob": "builder"}}
	gate := &auth.GroupGate{
		Backend:       backend,
		RequiredGroup: "operators",
		Groups: groupMap{
			"alice": {"alice", "operators"},
			"bob":   {"bob"},
		},
	}
	a, _ := startInProcess(t, gate, Options{})

	assert.True(t, a.Authenticate("alice", "wonderland"))
	assert.False(t, a.Authenticate("bob", "builder"))
}

type groupMap map[string][]string

func (m groupMap) GroupsForUser(username string) ([]string, error) {
	return m[username], nil
}

func TestMalformedResponseFailsClosed(t *testing.T) {
	a, _ := startWith(t, Options{}, func(r, w *os.File) {
		br := bufio.NewReader(r)
		for {
			line, err := br.ReadString('\n')
			if err != nil || strings.Contains(line, `"stop"`) {
				return
			}
			if _, err := w.WriteString("garbage\n"); err != nil {
				return
			}
		}
	})

	assert.False(t, a.Authenticate("alice", "wonderland"))
	assert.False(t, a.Authenticate("alice", "wonderland"))
	stats := a.Stats()
	assert.Equal(t, 1, stats.TransportFailures)
	assert.Equal(t, 1, stats.RoundTrips)
}

func TestWorkerGoneFailsClosed(t *testing.T) {
	checker := &countingChecker{accounts: map[string]string{"alice": "wonderland"}}
	a, g := startInProcess(t, checker, Options{})

	require.NoError(t, g.Kill())
	<-g.Done()

	assert.False(t, a.Authenticate("alice", "wonderland"))
	assert.Equal(t, 1, a.Stats().TransportFailures)
	assert.Zero(t, checker.calls.Load())
}

func TestStopIsIdempotent(t *testing.T) {
	checker := &countingChecker{accounts: map[string]string{"alice": "wonderland"}}
	a, g := startInProcess(t, checker, Options{})

	require.True(t, a.Authenticate("alice", "wonderland"))
	require.NoError(t, a.Stop())
	select {
	case <-g.Done():
	default:
		t.Fatal("worker still running after Stop")
	}
	require.NoError(t, a.Stop())
	assert.Zero(t, g.kills.Load())
}

func TestStopAfterWorkerExited(t *testing.T) {
	a, g := startInProcess(t, &countingChecker{}, Options{})
	require.NoError(t, g.Kill())
	<-g.Done()

	done := make(chan error, 1)
	go func() { done <- a.Stop() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop hung on an exited worker")
	}
}

func TestStopKillsUnresponsiveWorker(t *testing.T) {
	release := make(chan struct{})
	a, g := startWith(t, Options{StopTimeout: 50 * time.Millisecond}, func(r, w *os.File) {
		<-release
	})
	g.kill = func() { close(release) }

	require.NoError(t, a.Stop())
	assert.EqualValues(t, 1, g.kills.Load())
}

// stuckWorker never exits and refuses to be killed, like a root worker seen
// from a supervisor that already dropped its privileges.
type stuckWorker struct {
	done chan struct{}
}

var errKillDenied = errors.New("operation not permitted")

func (s *stuckWorker) Pid() int              { return 424242 }
func (s *stuckWorker) Done() <-chan struct{} { return s.done }
func (s *stuckWorker) Kill() error           { return errKillDenied }

func TestStopGivesUpWhenKillFails(t *testing.T) {
	parentR, childW, err := os.Pipe()
	require.NoError(t, err)
	childR, parentW, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { closeAll(childR, childW) })

	opts := Options{StopTimeout: 20 * time.Millisecond}.withDefaults()
	a, err := newAuthenticator(NewChannel(parentR, parentW), &stuckWorker{done: make(chan struct{})}, opts)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- a.Stop() }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, errKillDenied)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked on a worker it could not kill")
	}

	assert.NoError(t, a.Stop())
	assert.False(t, a.Authenticate("alice", "wonderland"))
}

func TestCachedAnswersSurviveStop(t *testing.T) {
	checker := &countingChecker{accounts: map[string]string{"alice": "wonderland"}}
	a, _ := startInProcess(t, checker, Options{CacheTimeout: time.Hour, Clock: newFakeClock()})

	require.True(t, a.Authenticate("alice", "wonderland"))
	require.NoError(t, a.Stop())

	assert.True(t, a.Authenticate("alice", "wonderland"))
	assert.False(t, a.Authenticate("bob", "builder"))
	assert.EqualValues(t, 1, checker.calls.Load())
}

func TestConcurrentCallersAlternate(t *testing.T) {
	checker := &countingChecker{accounts: map[string]string{"alice": "wonderland", "bob": "builder"}}
	a, _ := startInProcess(t, checker, Options{})

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, pass := "alice", "wonderland"
			if i%2 == 1 {
				user, pass = "bob", "builder"
			}
			if !a.Authenticate(user, pass) {
				failures.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Zero(t, failures.Load())
	assert.Zero(t, a.Stats().TransportFailures)
}
