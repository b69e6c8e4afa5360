package privsep

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// maxMessageSize bounds a single line. Longer lines are discarded.
const maxMessageSize = 64 * 1024

var (
	// ErrPeerGone is returned once the other process has closed its end or
	// exited. Retrying will not help.
	ErrPeerGone = errors.New("privsep: peer gone")
	// ErrMalformed is returned for a complete line that does not decode.
	ErrMalformed = errors.New("privsep: malformed message")
)

// Channel carries newline-terminated JSON messages over a pair of one-way
// streams. Each Send is a single Write with no buffering in between.
type Channel struct {
	r *bufio.Reader
	w io.Writer

	closeOnce sync.Once
	closers   []io.Closer
	closeErr  error
}

// NewChannel reads from r and writes to w. Close closes whichever of them
// implement io.Closer.
func NewChannel(r io.Reader, w io.Writer) *Channel {
	c := &Channel{r: bufio.NewReaderSize(r, 4096), w: w}
	if rc, ok := r.(io.Closer); ok {
		c.closers = append(c.closers, rc)
	}
	if wc, ok := w.(io.Closer); ok {
		c.closers = append(c.closers, wc)
	}
	return c
}

func (c *Channel) Send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("privsep: encode: %w", err)
	}
	b = append(b, '\n')
	if _, err := c.w.Write(b); err != nil {
		return fmt.Errorf("%w: write: %v", ErrPeerGone, err)
	}
	return nil
}

func (c *Channel) ReceiveRequest() (Request, error) {
	var req Request
	err := c.receive(&req)
	return req, err
}

func (c *Channel) ReceiveResponse() (Response, error) {
	var resp Response
	err := c.receive(&resp)
	return resp, err
}

func (c *Channel) receive(v any) error {
	line, err := c.readLine()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(line, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// readLine blocks until a full line is available. The terminator is not
// included in the result.
func (c *Channel) readLine() ([]byte, error) {
	var (
		line      []byte
		oversized bool
	)
	for {
		chunk, err := c.r.ReadSlice('\n')
		if !oversized {
			if len(line)+len(chunk) > maxMessageSize+1 {
				oversized = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		switch {
		case err == nil:
			if oversized {
				return nil, fmt.Errorf("%w: line exceeds %d bytes", ErrMalformed, maxMessageSize)
			}
			return line[:len(line)-1], nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			// A trailing partial line is dropped along with the peer.
			return nil, ErrPeerGone
		default:
			return nil, fmt.Errorf("%w: read: %v", ErrPeerGone, err)
		}
	}
}

// Close releases both ends. It is safe to call more than once.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		var errs []error
		for _, cl := range c.closers {
			if err := cl.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}
