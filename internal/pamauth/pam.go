// Package pamauth checks credentials through the host's PAM stack.
//
// It needs cgo and libpam, which is why it lives apart from package auth:
// only the worker binary links it.
package pamauth

import (
	"errors"
	"fmt"

	"github.com/msteinert/pam/v2"

	"github.com/hnrobert/authsep/internal/auth"
	"github.com/hnrobert/authsep/internal/hostfs"
)

const (
	ServiceSSHD  = "sshd"
	ServiceLogin = "login"
)

// SelectService picks the PAM service profile. An explicit name wins;
// otherwise sshd is preferred when the host has a profile for it, so remote
// login policy applies, and login is the fallback.
func SelectService(configured string) string {
	if configured != "" {
		return configured
	}
	if hostfs.Exists(hostfs.PamDirRel + "/" + ServiceSSHD) {
		return ServiceSSHD
	}
	return ServiceLogin
}

// Checker runs pam_authenticate followed by pam_acct_mgmt.
type Checker struct {
	Service string
}

func New(service string) *Checker {
	return &Checker{Service: SelectService(service)}
}

func (c *Checker) Check(username, password string) (bool, error) {
	tx, err := pam.StartFunc(c.Service, username, conversation(username, password))
	if err != nil {
		return false, fmt.Errorf("%w: pam start %s: %v", auth.ErrAuthBackend, c.Service, err)
	}
	defer func() { _ = tx.End() }()

	if err := tx.Authenticate(pam.Silent | pam.DisallowNullAuthtok); err != nil {
		return false, nil
	}
	if err := tx.AcctMgmt(pam.Silent | pam.DisallowNullAuthtok); err != nil {
		return false, nil
	}
	return true, nil
}

var errUnknownStyle = errors.New("unrecognized pam message style")

func conversation(username, password string) func(pam.Style, string) (string, error) {
	return func(s pam.Style, msg string) (string, error) {
		switch s {
		case pam.PromptEchoOff:
			return password, nil
		case pam.PromptEchoOn:
			return username, nil
		case pam.ErrorMsg, pam.TextInfo:
			return "", nil
		}
		return "", errUnknownStyle
	}
}
