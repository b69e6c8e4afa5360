package usermgr

import (
	"path/filepath"

	"github.com/hnrobert/authsep/internal/hostfs"
)

// Directory answers the account questions the worker and the supervisor ask.
// Database reads flat files under a host root; NSS asks the system name
// service, which also sees sssd, LDAP and winbind accounts.
type Directory interface {
	User(username string) (*PasswdEntry, error)
	GroupIDsForUser(username string) ([]int, error)
	GroupsForUser(username string) ([]string, error)
	GroupExists(name string) (bool, error)
}

var (
	_ Directory = (*Database)(nil)
	_ Directory = (*NSS)(nil)
)

// Open picks the directory for root. The live host root resolves through
// NSS, the same view PAM authenticates against. Any other root is a mounted
// image whose files are parsed directly.
func Open(root string) Directory {
	if root == "" || filepath.Clean(root) == hostfs.DefaultRoot {
		return NewNSS()
	}
	return NewAt(root)
}

// OpenDefault is Open for the current hostfs root.
func OpenDefault() Directory {
	return Open(hostfs.Root())
}
