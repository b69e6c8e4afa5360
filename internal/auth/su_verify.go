package auth

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
)

const (
	suTimeout = 6 * time.Second
	// su runs as nobody so it always prompts; as root it would not ask.
	suUID = 65534
	suGID = 65534
)

func verifyWithSu(username, password string) (bool, error) {
	// su(1) behind a PTY handles whatever hash formats the host's own
	// libraries support, yescrypt included.
	if strings.TrimSpace(username) == "" || strings.HasPrefix(username, "-") {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), suTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "su", "-s", "/bin/sh", "-c", "true", "--", username)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Credential: &syscall.Credential{Uid: suUID, Gid: suGID, NoSetGroups: true},
	}
	f, err := pty.Start(cmd)
	if err != nil {
		return false, fmt.Errorf("%w: start su: %v", ErrAuthBackend, err)
	}
	defer func() { _ = f.Close() }()

	var (
		mu       sync.Mutex
		prompted bool
	)
	readerDone := make(chan struct{})

	go func() {
		defer close(readerDone)
		var out bytes.Buffer
		br := bufio.NewReader(f)
		buf := make([]byte, 4096)
		for {
			_ = f.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
			n, rerr := br.Read(buf)
			if n > 0 {
				out.Write(buf[:n])
				mu.Lock()
				if !prompted && strings.Contains(strings.ToLower(out.String()), "password") {
					prompted = true
					_, _ = io.WriteString(f, password+"\n")
				}
				mu.Unlock()
			}
			if rerr != nil {
				return
			}
		}
	}()

	err = cmd.Wait()
	_ = f.Close()
	<-readerDone

	if ctx.Err() != nil {
		return false, fmt.Errorf("%w: su timed out", ErrAuthBackend)
	}
	mu.Lock()
	defer mu.Unlock()
	// Success without a password prompt means su did not check anything.
	return err == nil && prompted, nil
}
