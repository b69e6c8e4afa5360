package usermgr

import (
	"errors"
	"fmt"
	"os/user"
	"sort"
	"strconv"
)

// NSS resolves accounts through os/user. Built with cgo this goes through
// getpwnam_r/getgrouplist and therefore every configured NSS source.
type NSS struct {
	lookupUser    func(name string) (*user.User, error)
	lookupGroup   func(name string) (*user.Group, error)
	lookupGroupID func(gid string) (*user.Group, error)
	groupIDs      func(u *user.User) ([]string, error)
}

func NewNSS() *NSS {
	return &NSS{
		lookupUser:    user.Lookup,
		lookupGroup:   user.LookupGroup,
		lookupGroupID: user.LookupGroupId,
		groupIDs:      (*user.User).GroupIds,
	}
}

func (n *NSS) lookup(username string) (*user.User, error) {
	u, err := n.lookupUser(username)
	if err != nil {
		var unknown user.UnknownUserError
		if errors.As(err, &unknown) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
		}
		return nil, fmt.Errorf("lookup user %s: %w", username, err)
	}
	return u, nil
}

func (n *NSS) User(username string) (*PasswdEntry, error) {
	u, err := n.lookup(username)
	if err != nil {
		return nil, err
	}
	return passwdEntry(u)
}

func passwdEntry(u *user.User) (*PasswdEntry, error) {
	uid, err := atoi(u.Uid, "uid of "+u.Username)
	if err != nil {
		return nil, err
	}
	gid, err := atoi(u.Gid, "gid of "+u.Username)
	if err != nil {
		return nil, err
	}
	return &PasswdEntry{Name: u.Username, UID: uid, GID: gid, Gecos: u.Name, Home: u.HomeDir}, nil
}

// GroupIDsForUser returns the primary GID followed by the supplementary GIDs
// in ascending order.
func (n *NSS) GroupIDsForUser(username string) ([]int, error) {
	u, err := n.lookup(username)
	if err != nil {
		return nil, err
	}
	pe, err := passwdEntry(u)
	if err != nil {
		return nil, err
	}
	ids, err := n.supplementary(u, pe.GID)
	if err != nil {
		return nil, err
	}
	return append([]int{pe.GID}, ids...), nil
}

func (n *NSS) supplementary(u *user.User, primary int) ([]int, error) {
	raw, err := n.groupIDs(u)
	if err != nil {
		return nil, fmt.Errorf("list groups of %s: %w", u.Username, err)
	}
	seen := map[int]bool{primary: true}
	var out []int
	for _, s := range raw {
		gid, err := atoi(s, "group id of "+u.Username)
		if err != nil {
			return nil, err
		}
		if !seen[gid] {
			seen[gid] = true
			out = append(out, gid)
		}
	}
	sort.Ints(out)
	return out, nil
}

// GroupsForUser returns the sorted names of every group username belongs to.
// A primary GID without a group entry is ErrGroupNotFound; supplementary
// GIDs without a name are skipped.
func (n *NSS) GroupsForUser(username string) ([]string, error) {
	u, err := n.lookup(username)
	if err != nil {
		return nil, err
	}
	pe, err := passwdEntry(u)
	if err != nil {
		return nil, err
	}
	primary, err := n.groupName(pe.GID)
	if err != nil {
		return nil, fmt.Errorf("%w (primary group of %s)", err, username)
	}
	ids, err := n.supplementary(u, pe.GID)
	if err != nil {
		return nil, err
	}

	set := map[string]struct{}{primary: {}}
	for _, gid := range ids {
		name, err := n.groupName(gid)
		if errors.Is(err, ErrGroupNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		set[name] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (n *NSS) groupName(gid int) (string, error) {
	g, err := n.lookupGroupID(strconv.Itoa(gid))
	if err != nil {
		var unknown user.UnknownGroupIdError
		if errors.As(err, &unknown) {
			return "", fmt.Errorf("%w: gid %d", ErrGroupNotFound, gid)
		}
		return "", fmt.Errorf("lookup gid %d: %w", gid, err)
	}
	return g.Name, nil
}

func (n *NSS) GroupExists(name string) (bool, error) {
	_, err := n.lookupGroup(name)
	if err != nil {
		var unknown user.UnknownGroupError
		if errors.As(err, &unknown) {
			return false, nil
		}
		return false, fmt.Errorf("lookup group %s: %w", name, err)
	}
	return true, nil
}
