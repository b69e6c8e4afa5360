package privsep

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"time"

	"github.com/hnrobert/authsep/internal/auth"
	"github.com/hnrobert/authsep/internal/hostfs"
	"github.com/hnrobert/authsep/internal/logger"
	"github.com/hnrobert/authsep/internal/usermgr"
)

const (
	DefaultCacheTimeout = 600 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

// Environment passed from Start to the worker process.
const (
	envWorker        = "AUTHSEP_WORKER"
	envRequiredGroup = "AUTHSEP_WORKER_REQUIRED_GROUP"
	envBackend       = "AUTHSEP_WORKER_BACKEND"
	envPAMService    = "AUTHSEP_WORKER_PAM_SERVICE"
	envHostRoot      = "AUTHSEP_WORKER_HOST_ROOT"
)

// Inherited descriptors in the worker: ExtraFiles[i] becomes fd 3+i.
const (
	workerReadFD  = 3
	workerWriteFD = 4
)

// WorkerConfig is what the worker process knows about its job.
type WorkerConfig struct {
	RequiredGroup string
	Backend       string
	PAMService    string
	HostRoot      string
}

// Options configure Start. Zero values select the defaults.
type Options struct {
	WorkerConfig

	CacheTimeout time.Duration
	StopTimeout  time.Duration
	Clock        Clock

	// WorkerPath is the binary to re-exec, os.Executable() by default.
	WorkerPath string
	WorkerArgs []string
}

func (o Options) withDefaults() Options {
	if o.CacheTimeout < 0 {
		o.CacheTimeout = 0
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = DefaultStopTimeout
	}
	if o.Clock == nil {
		o.Clock = RealClock()
	}
	if o.HostRoot == "" {
		o.HostRoot = hostfs.Root()
	}
	return o
}

func (c WorkerConfig) environ() []string {
	return []string{
		envWorker + "=1",
		envRequiredGroup + "=" + c.RequiredGroup,
		envBackend + "=" + c.Backend,
		envPAMService + "=" + c.PAMService,
		envHostRoot + "=" + c.HostRoot,
	}
}

// Start launches the privileged worker and returns the supervisor connected
// to it. Call it while still privileged; the caller may drop privileges once
// it returns. Any failure leaves no process or descriptor behind.
func Start(opts Options) (*Authenticator, error) {
	opts = opts.withDefaults()
	warnUnknownGroup(opts.HostRoot, opts.RequiredGroup)

	exe := opts.WorkerPath
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return nil, fmt.Errorf("privsep: locate worker binary: %w", err)
		}
	}

	parentR, childW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("privsep: create pipe: %w", err)
	}
	childR, parentW, err := os.Pipe()
	if err != nil {
		closeAll(parentR, childW)
		return nil, fmt.Errorf("privsep: create pipe: %w", err)
	}

	cmd := exec.Command(exe, opts.WorkerArgs...)
	cmd.ExtraFiles = []*os.File{childR, childW}
	cmd.Env = append(os.Environ(), opts.WorkerConfig.environ()...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = workerSysProcAttr()
	if err := cmd.Start(); err != nil {
		closeAll(parentR, childW, childR, parentW)
		return nil, fmt.Errorf("privsep: start worker: %w", err)
	}
	closeAll(childR, childW)

	handle := watchProcess(cmd)
	a, err := newAuthenticator(NewChannel(parentR, parentW), handle, opts)
	if err != nil {
		closeAll(parentR, parentW)
		_ = handle.Kill()
		<-handle.Done()
		return nil, err
	}
	logger.Info("privileged worker started (pid %d)", handle.Pid())
	return a, nil
}

func warnUnknownGroup(root, group string) {
	if group == "" {
		return
	}
	ok, err := usermgr.Open(root).GroupExists(group)
	if err != nil {
		logger.Warn("could not verify required group %q: %v", group, err)
		return
	}
	if !ok {
		logger.Error("the required group %q was not found", group)
	}
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

// IsWorker reports whether this process was started by Start as a worker.
func IsWorker() bool {
	return os.Getenv(envWorker) == "1"
}

// CheckerFactory builds the authentication backend inside the worker.
type CheckerFactory func(cfg WorkerConfig) (auth.Checker, error)

// RunWorker is the worker process body. It returns the exit code; main
// should pass it straight to os.Exit.
func RunWorker(factory CheckerFactory) int {
	logger.SetPrefix("worker")
	defer logger.Close()

	// Interrupts from the terminal reach the whole process group. Only the
	// supervisor decides when the worker ends.
	signal.Ignore(os.Interrupt)

	cfg := WorkerConfig{
		RequiredGroup: os.Getenv(envRequiredGroup),
		Backend:       os.Getenv(envBackend),
		PAMService:    os.Getenv(envPAMService),
		HostRoot:      os.Getenv(envHostRoot),
	}
	for _, k := range []string{envWorker, envRequiredGroup, envBackend, envPAMService, envHostRoot} {
		_ = os.Unsetenv(k)
	}

	r := os.NewFile(workerReadFD, "privsep-request")
	w := os.NewFile(workerWriteFD, "privsep-response")
	if r == nil || w == nil {
		logger.Error("worker started without its channel descriptors")
		return 1
	}
	ch := NewChannel(r, w)
	defer func() { _ = ch.Close() }()

	if err := hostfs.SetRoot(cfg.HostRoot); err != nil {
		logger.Error("invalid host root %q: %v", cfg.HostRoot, err)
		return 1
	}
	backend, err := factory(cfg)
	if err != nil {
		logger.Error("authentication backend unavailable: %v", err)
		return 1
	}
	worker := &Worker{
		Channel: ch,
		Checker: &auth.GroupGate{Backend: backend, RequiredGroup: cfg.RequiredGroup, Groups: usermgr.OpenDefault()},
	}
	if err := worker.Run(); err != nil {
		if errors.Is(err, ErrPeerGone) {
			logger.Warn("supervisor went away, exiting")
		} else {
			logger.Error("worker loop ended: %v", err)
		}
		return 1
	}
	return 0
}
