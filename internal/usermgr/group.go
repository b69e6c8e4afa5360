package usermgr

import (
	"sort"
	"strings"
)

type GroupFile struct {
	pf parsedFile[GroupEntry]
}

func LoadGroup(path string) (*GroupFile, error) {
	pf, err := loadFile(path, func(parts []string) (*GroupEntry, error) {
		if len(parts) < 4 {
			return nil, nil
		}
		gid, err := atoi(parts[2], "group.gid")
		if err != nil {
			return nil, err
		}
		members := []string{}
		if parts[3] != "" {
			for _, m := range strings.Split(parts[3], ",") {
				if m = strings.TrimSpace(m); m != "" {
					members = append(members, m)
				}
			}
		}
		return &GroupEntry{Name: parts[0], Passwd: parts[1], GID: gid, Members: members}, nil
	})
	if err != nil {
		return nil, err
	}
	return &GroupFile{pf: pf}, nil
}

func (f *GroupFile) Find(name string) *GroupEntry {
	for _, e := range f.pf.entries() {
		if e.Name == name {
			return e
		}
	}
	return nil
}

func (f *GroupFile) FindByGID(gid int) *GroupEntry {
	for _, e := range f.pf.entries() {
		if e.GID == gid {
			return e
		}
	}
	return nil
}

func (f *GroupFile) List() []GroupEntry {
	out := make([]GroupEntry, 0)
	for _, e := range f.pf.entries() {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GID < out[j].GID })
	return out
}

// MemberOf returns the names of groups listing user as a supplementary member.
func (f *GroupFile) MemberOf(user string) []string {
	var out []string
	for _, e := range f.pf.entries() {
		if e.HasMember(user) {
			out = append(out, e.Name)
		}
	}
	return out
}
