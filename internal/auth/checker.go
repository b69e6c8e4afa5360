package auth

import (
	"errors"

	"github.com/hnrobert/authsep/internal/logger"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserLocked         = errors.New("user is locked")
	ErrAccountExpired     = errors.New("account has expired")
	ErrUnsupportedHash    = errors.New("unsupported password hash")
	ErrAuthBackend        = errors.New("auth backend error")
)

// Checker verifies a username and password. A non-nil error is a backend
// fault, and callers must treat it as a denial.
type Checker interface {
	Check(username, password string) (bool, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(username, password string) (bool, error)

func (f CheckerFunc) Check(username, password string) (bool, error) {
	return f(username, password)
}

// GroupResolver lists every group a user belongs to, primary included.
type GroupResolver interface {
	GroupsForUser(username string) ([]string, error)
}

// GroupGate requires RequiredGroup membership on top of a successful backend
// check. An empty RequiredGroup disables the gate.
type GroupGate struct {
	Backend       Checker
	RequiredGroup string
	Groups        GroupResolver
}

func (g *GroupGate) Check(username, password string) (bool, error) {
	ok, err := g.Backend.Check(username, password)
	if err != nil {
		return false, err
	}
	if !ok {
		logger.Warn("authentication failed for user: %s reason: bad username or password", username)
		return false, nil
	}
	if g.RequiredGroup == "" {
		return true, nil
	}

	groups, err := g.Groups.GroupsForUser(username)
	if err != nil {
		logger.Error("group membership lookup failed for user: %s: %v", username, err)
		return false, nil
	}
	for _, name := range groups {
		if name == g.RequiredGroup {
			return true, nil
		}
	}
	logger.Warn("authentication failed for user: %s reason: lack of group membership", username)
	return false, nil
}
