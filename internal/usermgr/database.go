package usermgr

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/hnrobert/authsep/internal/hostfs"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrGroupNotFound = errors.New("group not found")
)

// Database locates the account files. Every call re-reads them so changes
// made by useradd/groupadd are seen without a restart.
type Database struct {
	PasswdPath string
	ShadowPath string
	GroupPath  string
}

// NewDefault resolves the account files under the hostfs root.
func NewDefault() (*Database, error) {
	passwd, err := hostfs.Path(hostfs.EtcPasswdRel)
	if err != nil {
		return nil, err
	}
	shadow, err := hostfs.Path(hostfs.EtcShadowRel)
	if err != nil {
		return nil, err
	}
	group, err := hostfs.Path(hostfs.EtcGroupRel)
	if err != nil {
		return nil, err
	}
	return &Database{PasswdPath: passwd, ShadowPath: shadow, GroupPath: group}, nil
}

// NewAt locates the account files under root without consulting hostfs.
func NewAt(root string) *Database {
	return &Database{
		PasswdPath: filepath.Join(root, hostfs.EtcPasswdRel),
		ShadowPath: filepath.Join(root, hostfs.EtcShadowRel),
		GroupPath:  filepath.Join(root, hostfs.EtcGroupRel),
	}
}

// User returns the passwd entry for username.
func (d *Database) User(username string) (*PasswdEntry, error) {
	pw, err := LoadPasswd(d.PasswdPath)
	if err != nil {
		return nil, err
	}
	pe := pw.Find(username)
	if pe == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	return pe, nil
}

// GroupIDsForUser returns the primary GID followed by the GIDs of every
// group listing username as a member.
func (d *Database) GroupIDsForUser(username string) ([]int, error) {
	pe, err := d.User(username)
	if err != nil {
		return nil, err
	}
	gr, err := LoadGroup(d.GroupPath)
	if err != nil {
		return nil, err
	}
	gids := []int{pe.GID}
	for _, e := range gr.List() {
		if e.GID != pe.GID && e.HasMember(username) {
			gids = append(gids, e.GID)
		}
	}
	return gids, nil
}

// GroupExists reports whether name is a known group.
func (d *Database) GroupExists(name string) (bool, error) {
	gr, err := LoadGroup(d.GroupPath)
	if err != nil {
		return false, err
	}
	return gr.Find(name) != nil, nil
}

// GroupsForUser returns the sorted names of every group username belongs to:
// the primary group from passwd plus all supplementary memberships. A user
// whose primary GID has no group entry is an error, not an empty set.
func (d *Database) GroupsForUser(username string) ([]string, error) {
	pe, err := d.User(username)
	if err != nil {
		return nil, err
	}
	gr, err := LoadGroup(d.GroupPath)
	if err != nil {
		return nil, err
	}
	primary := gr.FindByGID(pe.GID)
	if primary == nil {
		return nil, fmt.Errorf("%w: gid %d of %s", ErrGroupNotFound, pe.GID, username)
	}

	set := map[string]struct{}{primary.Name: {}}
	for _, name := range gr.MemberOf(username) {
		set[name] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// Shadow returns the shadow entry for username.
func (d *Database) Shadow(username string) (*ShadowEntry, error) {
	sh, err := LoadShadow(d.ShadowPath)
	if err != nil {
		return nil, err
	}
	se := sh.Find(username)
	if se == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	return se, nil
}
