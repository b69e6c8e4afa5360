package privsep

import (
	"errors"

	"github.com/hnrobert/authsep/internal/auth"
	"github.com/hnrobert/authsep/internal/logger"
)

// Worker is the privileged side of the channel. It answers authenticate
// requests with the Checker until it is told to stop or the supervisor
// disappears.
type Worker struct {
	Channel *Channel
	Checker auth.Checker
}

// Run serves requests until a stop request arrives, which returns nil, or the
// supervisor goes away, which returns an error wrapping ErrPeerGone. Nothing
// a request carries can end the loop.
func (w *Worker) Run() error {
	for {
		req, err := w.Channel.ReceiveRequest()
		if err != nil {
			if errors.Is(err, ErrMalformed) {
				logger.Debug("ignoring malformed request: %v", err)
				continue
			}
			return err
		}

		switch req.Action {
		case ActionStop:
			logger.Debug("stop requested")
			return nil
		case ActionAuthenticate:
		default:
			continue
		}

		resp := Response{Result: w.evaluate(req.Username, req.Password)}
		if err := w.Channel.Send(resp); err != nil {
			return err
		}
	}
}

// evaluate turns every backend fault, panics included, into a denial.
func (w *Worker) evaluate(username, password string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("authentication backend panicked for user: %s: %v", username, r)
			ok = false
		}
	}()
	ok, err := w.Checker.Check(username, password)
	if err != nil {
		logger.Error("authentication backend error for user: %s: %v", username, err)
		return false
	}
	return ok
}
