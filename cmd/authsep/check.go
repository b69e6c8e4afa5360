package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/hnrobert/authsep/internal/config"
	"github.com/hnrobert/authsep/internal/hostfs"
	"github.com/hnrobert/authsep/internal/logger"
	"github.com/hnrobert/authsep/internal/privsep"
	"github.com/hnrobert/authsep/internal/usermgr"
)

func runCheck(args []string) error {
	flags := pflag.NewFlagSet("check", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", getenvDefault("AUTHSEP_CONFIG", config.DefaultPath), "configuration file")
	username := flags.StringP("user", "u", "", "user to authenticate (default: first argument)")
	count := flags.IntP("count", "n", 1, "number of times to authenticate, later attempts may hit the cache")
	requiredGroup := flags.String("required-group", "", "group the user must belong to")
	cacheTimeout := flags.Int("cache-timeout", 0, "credential cache lifetime in seconds")
	backend := flags.String("backend", "", "authentication backend: pam or shadow")
	runAs := flags.String("run-as", "", "user to switch to once the worker is running")
	debug := flags.Bool("debug", false, "enable debug logging")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if flags.Changed("required-group") {
		cfg.RequiredGroup = *requiredGroup
	}
	if flags.Changed("cache-timeout") {
		cfg.CacheTimeout = *cacheTimeout
	}
	if flags.Changed("backend") {
		cfg.Backend = config.Backend(*backend)
	}
	if flags.Changed("run-as") {
		cfg.RunAs = *runAs
	}
	if *debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	user := *username
	if user == "" && flags.NArg() > 0 {
		user = flags.Arg(0)
	}
	if user == "" {
		return fmt.Errorf("a user is required (-u or first argument)")
	}
	if *count < 1 {
		return fmt.Errorf("--count must be at least 1")
	}

	if err := logger.Init(cfg.LogDir); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Close()
	logger.SetDebug(cfg.Debug)
	logger.SetPrefix("supervisor")
	if err := hostfs.SetRoot(cfg.HostRoot); err != nil {
		return err
	}

	authn, err := privsep.Start(privsep.Options{
		WorkerConfig: privsep.WorkerConfig{
			RequiredGroup: cfg.RequiredGroup,
			Backend:       string(cfg.Backend),
			PAMService:    cfg.PAMService,
			HostRoot:      cfg.HostRoot,
		},
		CacheTimeout: cfg.CacheTTL(),
		StopTimeout:  cfg.StopWait(),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := authn.Stop(); err != nil {
			logger.Warn("stopping worker: %v", err)
		}
	}()

	if cfg.RunAs != "" {
		if err := privsep.DropPrivileges(usermgr.OpenDefault(), cfg.RunAs); err != nil {
			return err
		}
		logger.Info("supervisor now running as %s", cfg.RunAs)
	}

	password, err := readPassword(os.Stdin, fmt.Sprintf("Password for %s: ", user))
	if err != nil {
		return err
	}

	ok := false
	for i := 0; i < *count; i++ {
		ok = authn.Authenticate(user, password)
		fmt.Printf("attempt %d: %s\n", i+1, verdict(ok))
	}
	stats := authn.Stats()
	logger.Info("cache hits: %d, worker round trips: %d, transport failures: %d",
		stats.CacheHits, stats.RoundTrips, stats.TransportFailures)
	if !ok {
		return errDenied
	}
	return nil
}

func verdict(ok bool) string {
	if ok {
		return "accepted"
	}
	return "denied"
}

// readPassword prompts without echo on a terminal and reads one line
// otherwise, so passwords can also be piped in.
func readPassword(f *os.File, prompt string) (string, error) {
	fd := int(f.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	return readPasswordLine(f)
}

func readPasswordLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
