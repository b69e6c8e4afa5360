package auth

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/GehirnInc/crypt/sha512_crypt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hnrobert/authsep/internal/usermgr"
)

type staticGroups map[string][]string

func (s staticGroups) GroupsForUser(username string) ([]string, error) {
	groups, ok := s[username]
	if !ok {
		return nil, fmt.Errorf("%w: %s", usermgr.ErrUserNotFound, username)
	}
	return groups, nil
}

func acceptAll(string, string) (bool, error) { return true, nil }

func TestGroupGate(t *testing.T) {
	groups := staticGroups{
		"alice": {"alice", "sudo"},
		"bob":   {"bob"},
	}
	tests := []struct {
		name     string
		backend  CheckerFunc
		required string
		user     string
		want     bool
		wantErr  bool
	}{
		{name: "no gate", backend: acceptAll, user: "bob", want: true},
		{name: "member", backend: acceptAll, required: "sudo", user: "alice", want: true},
		{name: "not a member", backend: acceptAll, required: "sudo", user: "bob", want: false},
		{name: "lookup failure denies", backend: acceptAll, required: "sudo", user: "deleted", want: false},
		{
			name:     "bad credentials skip lookup",
			backend:  func(string, string) (bool, error) { return false, nil },
			required: "sudo", user: "alice", want: false,
		},
		{
			name:     "backend fault propagates",
			backend:  func(string, string) (bool, error) { return false, ErrAuthBackend },
			required: "sudo", user: "alice", want: false, wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := &GroupGate{Backend: tt.backend, RequiredGroup: tt.required, Groups: groups}
			got, err := gate.Check(tt.user, "pw")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

type shadowMap map[string]string

func (m shadowMap) Shadow(username string) (*usermgr.ShadowEntry, error) {
	hash, ok := m[username]
	if !ok {
		return nil, usermgr.ErrUserNotFound
	}
	return &usermgr.ShadowEntry{Name: username, Hash: hash}, nil
}

func TestShadowChecker(t *testing.T) {
	hash, err := sha512_crypt.New().Generate([]byte("s3cret"), []byte("$6$abcdefgh"))
	require.NoError(t, err)

	fallbackCalls := 0
	c := &ShadowChecker{
		DB: shadowMap{
			"alice":  hash,
			"locked": "!" + hash,
			"yes":    "$y$j9T$abc$def",
		},
		Fallback: func(username, password string) (bool, error) {
			fallbackCalls++
			return password == "yes-pass", nil
		},
	}

	ok, err := c.Check("alice", "s3cret")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Check("alice", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Check("locked", "s3cret")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Check("nobody-here", "s3cret")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Check("yes", "yes-pass")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, fallbackCalls)
}

func TestShadowCheckerBackendFault(t *testing.T) {
	c := &ShadowChecker{DB: shadowFunc(func(string) (*usermgr.ShadowEntry, error) {
		return nil, errors.New("permission denied")
	})}
	ok, err := c.Check("alice", "pw")
	assert.Error(t, err)
	assert.False(t, ok)
}

type shadowFunc func(string) (*usermgr.ShadowEntry, error)

func (f shadowFunc) Shadow(username string) (*usermgr.ShadowEntry, error) { return f(username) }

func TestShadowCheckerRejectsExpiredAccount(t *testing.T) {
	hash, err := sha512_crypt.New().Generate([]byte("s3cret"), []byte("$6$abcdefgh"))
	require.NoError(t, err)

	entries := map[string]*usermgr.ShadowEntry{
		"current":  {Name: "current", Hash: hash, Expire: "20001"},
		"expired":  {Name: "expired", Hash: hash, Expire: "20000"},
		"inactive": {Name: "inactive", Hash: hash, LastChange: "19000", Max: "90", Inactive: "30"},
	}
	c := &ShadowChecker{
		DB: shadowFunc(func(username string) (*usermgr.ShadowEntry, error) {
			if se, ok := entries[username]; ok {
				return se, nil
			}
			return nil, usermgr.ErrUserNotFound
		}),
		Now: func() time.Time { return time.Unix(20000*86400, 0) },
	}

	ok, err := c.Check("current", "s3cret")
	require.NoError(t, err)
	assert.True(t, ok)

	for _, name := range []string{"expired", "inactive"} {
		ok, err := c.Check(name, "s3cret")
		require.NoError(t, err)
		assert.False(t, ok, name)
	}
}
