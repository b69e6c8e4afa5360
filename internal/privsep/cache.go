package privsep

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"math/big"
	"time"
)

const (
	saltAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
	saltMinLen   = 5
	saltMaxLen   = 8
)

// newSalt returns 5 to 8 random printable characters.
func newSalt() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(saltMaxLen-saltMinLen+1))
	if err != nil {
		return "", err
	}
	size := saltMinLen + int(n.Int64())
	max := big.NewInt(int64(len(saltAlphabet)))
	b := make([]byte, size)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = saltAlphabet[idx.Int64()]
	}
	return string(b), nil
}

type cacheEntry struct {
	hash      []byte
	expiresAt time.Time
}

// credCache remembers the salted hash of the last successful password per
// user. Entries are overwritten, never purged; an expired entry is simply
// ignored. Callers serialize access.
type credCache struct {
	salt    string
	ttl     time.Duration
	entries map[string]cacheEntry
}

func newCredCache(salt string, ttl time.Duration) *credCache {
	return &credCache{salt: salt, ttl: ttl, entries: map[string]cacheEntry{}}
}

func (c *credCache) hash(password string) []byte {
	sum := sha512.Sum512([]byte(c.salt + password))
	return sum[:]
}

// lookup reports whether a live entry exists for username and, if so,
// whether hash matches it.
func (c *credCache) lookup(username string, hash []byte, now time.Time) (live, match bool) {
	e, ok := c.entries[username]
	if !ok || !now.Before(e.expiresAt) {
		return false, false
	}
	return true, subtle.ConstantTimeCompare(hash, e.hash) == 1
}

func (c *credCache) store(username string, hash []byte, now time.Time) {
	c.entries[username] = cacheEntry{hash: hash, expiresAt: now.Add(c.ttl)}
}
