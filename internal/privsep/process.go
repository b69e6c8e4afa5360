package privsep

import (
	"os/exec"
	"sync"
)

// workerHandle is the supervisor's view of the worker's lifetime.
type workerHandle interface {
	Pid() int
	// Done is closed once the worker has exited and been reaped.
	Done() <-chan struct{}
	Kill() error
}

type execHandle struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu  sync.Mutex
	err error
}

// watchProcess reaps cmd in the background.
func watchProcess(cmd *exec.Cmd) *execHandle {
	h := &execHandle{cmd: cmd, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		h.mu.Lock()
		h.err = err
		h.mu.Unlock()
		close(h.done)
	}()
	return h
}

func (h *execHandle) Pid() int              { return h.cmd.Process.Pid }
func (h *execHandle) Done() <-chan struct{} { return h.done }
func (h *execHandle) Kill() error           { return h.cmd.Process.Kill() }

// ExitErr is the result of Wait. Only valid after Done is closed.
func (h *execHandle) ExitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}
