package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/GehirnInc/crypt"
	"github.com/GehirnInc/crypt/md5_crypt"
	"github.com/GehirnInc/crypt/sha256_crypt"
	"github.com/GehirnInc/crypt/sha512_crypt"

	"github.com/hnrobert/authsep/internal/usermgr"
)

// ShadowDatabase is the part of usermgr.Database the shadow backend reads.
type ShadowDatabase interface {
	Shadow(username string) (*usermgr.ShadowEntry, error)
}

// ShadowChecker verifies passwords directly against the shadow database. It
// is the backend for hosts without a usable PAM stack.
type ShadowChecker struct {
	DB ShadowDatabase
	// Fallback handles hash formats crypt cannot verify. Nil means su(1).
	Fallback func(username, password string) (bool, error)
	// Now dates the expiry checks. Nil means time.Now.
	Now func() time.Time
}

func NewShadowChecker(db ShadowDatabase) *ShadowChecker {
	return &ShadowChecker{DB: db, Fallback: verifyWithSu}
}

func (c *ShadowChecker) Check(username, password string) (bool, error) {
	err := c.verify(username, password)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUserLocked), errors.Is(err, ErrAccountExpired):
		return false, nil
	default:
		return false, err
	}
}

func (c *ShadowChecker) verify(username, password string) error {
	se, err := c.DB.Shadow(username)
	if err != nil {
		if errors.Is(err, usermgr.ErrUserNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}
	if se.Locked() {
		return ErrUserLocked
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	if se.Expired(now()) {
		return ErrAccountExpired
	}
	ok, err := verifyCrypt(se.Hash, password)
	if err != nil {
		if !errors.Is(err, ErrUnsupportedHash) {
			return err
		}
		fallback := c.Fallback
		if fallback == nil {
			fallback = verifyWithSu
		}
		ok, err = fallback(username, password)
		if err != nil {
			return err
		}
	}
	if !ok {
		return ErrInvalidCredentials
	}
	return nil
}

func verifyCrypt(hash, password string) (bool, error) {
	// $1$ (md5-crypt), $5$ (sha256-crypt), $6$ (sha512-crypt).
	crypters := []crypt.Crypter{sha512_crypt.New(), sha256_crypt.New(), md5_crypt.New()}
	for _, c := range crypters {
		if err := c.Verify(hash, []byte(password)); err == nil {
			return true, nil
		}
	}

	// yescrypt ($y$), scrypt ($7$) and bcrypt ($2*) are not handled by crypt.
	if strings.HasPrefix(hash, "$y$") || strings.HasPrefix(hash, "$7$") || strings.HasPrefix(hash, "$2") {
		return false, ErrUnsupportedHash
	}
	return false, nil
}
