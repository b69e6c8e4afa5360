package privsep

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/hnrobert/authsep/internal/usermgr"
)

// DropPrivileges switches the calling process to username: supplementary
// groups first, then the primary group, then the user. It is meant for the
// supervisor after Start; the worker keeps its privileges.
func DropPrivileges(db usermgr.Directory, username string) error {
	pe, err := db.User(username)
	if err != nil {
		return err
	}
	gids, err := db.GroupIDsForUser(username)
	if err != nil {
		return err
	}

	if err := unix.Setgroups(gids); err != nil {
		return fmt.Errorf("privsep: setgroups: %w", err)
	}
	if err := unix.Setresgid(pe.GID, pe.GID, pe.GID); err != nil {
		return fmt.Errorf("privsep: setresgid %d: %w", pe.GID, err)
	}
	if err := unix.Setresuid(pe.UID, pe.UID, pe.UID); err != nil {
		return fmt.Errorf("privsep: setresuid %d: %w", pe.UID, err)
	}
	if unix.Geteuid() != pe.UID || unix.Getegid() != pe.GID {
		return fmt.Errorf("privsep: still running as uid %d gid %d", unix.Geteuid(), unix.Getegid())
	}
	return nil
}
