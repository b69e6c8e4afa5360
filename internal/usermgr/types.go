package usermgr

import (
	"strconv"
	"time"
)

type PasswdEntry struct {
	Name   string
	Passwd string
	UID    int
	GID    int
	Gecos  string
	Home   string
	Shell  string
}

type ShadowEntry struct {
	Name       string
	Hash       string
	LastChange string
	Min        string
	Max        string
	Warn       string
	Inactive   string
	Expire     string
	Reserved   string
}

// Locked reports whether the stored hash can never match a password.
func (e *ShadowEntry) Locked() bool {
	return e.Hash == "" || e.Hash[0] == '!' || e.Hash[0] == '*'
}

// Expired reports whether the account may no longer log in on the day of now:
// the expire date has been reached, or the password is past its maximum age
// plus the inactivity period. Empty fields disable the check they feed.
func (e *ShadowEntry) Expired(now time.Time) bool {
	today := int(now.Unix() / 86400)
	if expire, ok := shadowDays(e.Expire); ok && expire > 0 && today >= expire {
		return true
	}
	last, okLast := shadowDays(e.LastChange)
	maxAge, okMax := shadowDays(e.Max)
	inactive, okInactive := shadowDays(e.Inactive)
	if okLast && okMax && okInactive && last > 0 && maxAge >= 0 && inactive >= 0 {
		return today-last > maxAge+inactive
	}
	return false
}

func shadowDays(field string) (int, bool) {
	if field == "" {
		return 0, false
	}
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, false
	}
	return n, true
}

type GroupEntry struct {
	Name    string
	Passwd  string
	GID     int
	Members []string
}

// HasMember reports whether user is listed as a supplementary member.
func (e *GroupEntry) HasMember(user string) bool {
	for _, m := range e.Members {
		if m == user {
			return true
		}
	}
	return false
}
