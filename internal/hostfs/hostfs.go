package hostfs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultRoot is the root used when nothing else is configured.
const DefaultRoot = "/"

var ErrInvalidPath = errors.New("invalid host path")

var (
	rootMu sync.RWMutex
	root   = DefaultRoot

	globalMu sync.Mutex
	fileMu   = map[string]*sync.Mutex{}
)

// SetRoot changes the directory host paths are resolved against.
func SetRoot(dir string) error {
	if dir == "" {
		dir = DefaultRoot
	}
	if !filepath.IsAbs(dir) {
		return ErrInvalidPath
	}
	rootMu.Lock()
	defer rootMu.Unlock()
	root = filepath.Clean(dir)
	return nil
}

func Root() string {
	rootMu.RLock()
	defer rootMu.RUnlock()
	return root
}

// Path joins the root with a relative path (no leading slash).
// Example with root /host: Path("etc/passwd") -> /host/etc/passwd
func Path(rel string) (string, error) {
	rel = strings.TrimPrefix(rel, "/")
	clean := filepath.Clean(rel)
	if clean == "." || clean == "" {
		return "", ErrInvalidPath
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidPath
	}
	return filepath.Join(Root(), clean), nil
}

// Exists reports whether the relative host path exists as a regular file.
func Exists(rel string) bool {
	p, err := Path(rel)
	if err != nil {
		return false
	}
	st, err := os.Stat(p)
	return err == nil && st.Mode().IsRegular()
}

func muFor(path string) *sync.Mutex {
	globalMu.Lock()
	defer globalMu.Unlock()
	if m := fileMu[path]; m != nil {
		return m
	}
	m := &sync.Mutex{}
	fileMu[path] = m
	return m
}

// ReadFile reads a file while holding its per-path lock, so readers never
// overlap with another writer in this process.
func ReadFile(path string) ([]byte, error) {
	m := muFor(path)
	m.Lock()
	defer m.Unlock()
	return os.ReadFile(path)
}
