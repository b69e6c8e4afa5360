package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Backend string

const (
	BackendPAM    Backend = "pam"
	BackendShadow Backend = "shadow"
)

const (
	defaultCacheTimeout = 600
	defaultStopTimeout  = 10
	envPrefix           = "AUTHSEP_"
)

// DefaultPath is where the daemon looks for its configuration file.
const DefaultPath = "/etc/authsep/config.yml"

// Config is read once at startup; nothing here changes at runtime.
type Config struct {
	// CacheTimeout is the lifetime of a cached successful login, in seconds.
	CacheTimeout int `yaml:"cache_timeout"`
	// RequiredGroup, when set, must be one of the user's groups.
	RequiredGroup string  `yaml:"required_group"`
	Backend       Backend `yaml:"backend"`
	// PAMService overrides the sshd/login auto-detection.
	PAMService string `yaml:"pam_service"`
	HostRoot   string `yaml:"host_root"`
	// RunAs is the account the supervisor switches to after the worker
	// has been started. Empty keeps the current identity.
	RunAs       string `yaml:"run_as"`
	LogDir      string `yaml:"log_dir"`
	StopTimeout int    `yaml:"stop_timeout"`
	Debug       bool   `yaml:"debug"`
}

func Default() Config {
	return Config{
		CacheTimeout: defaultCacheTimeout,
		Backend:      BackendPAM,
		HostRoot:     "/",
		StopTimeout:  defaultStopTimeout,
	}
}

// Load reads path over the defaults, applies AUTHSEP_* environment
// overrides and validates the result. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := decode(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(envPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*dst = n
		return nil
	}

	backend := string(c.Backend)
	str("BACKEND", &backend)
	c.Backend = Backend(backend)
	str("REQUIRED_GROUP", &c.RequiredGroup)
	str("PAM_SERVICE", &c.PAMService)
	str("HOST_ROOT", &c.HostRoot)
	str("RUN_AS", &c.RunAs)
	str("LOG_DIR", &c.LogDir)
	if v, ok := lookup(envPrefix + "DEBUG"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sDEBUG: %w", envPrefix, err)
		}
		c.Debug = b
	}
	if err := num("CACHE_TIMEOUT", &c.CacheTimeout); err != nil {
		return err
	}
	return num("STOP_TIMEOUT", &c.StopTimeout)
}

func (c Config) Validate() error {
	if c.CacheTimeout < 0 {
		return errors.New("cache_timeout must not be negative")
	}
	if c.StopTimeout <= 0 {
		return errors.New("stop_timeout must be positive")
	}
	switch c.Backend {
	case BackendPAM, BackendShadow:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.HostRoot == "" || !filepath.IsAbs(c.HostRoot) {
		return fmt.Errorf("host_root must be an absolute path, got %q", c.HostRoot)
	}
	return nil
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTimeout) * time.Second
}

func (c Config) StopWait() time.Duration {
	return time.Duration(c.StopTimeout) * time.Second
}
