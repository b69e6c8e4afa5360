package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hnrobert/authsep/internal/auth"
	"github.com/hnrobert/authsep/internal/config"
	"github.com/hnrobert/authsep/internal/pamauth"
	"github.com/hnrobert/authsep/internal/privsep"
	"github.com/hnrobert/authsep/internal/usermgr"
)

var version = "dev"

// errDenied makes the process exit non-zero without an error message.
var errDenied = errors.New("authentication denied")

func main() {
	if privsep.IsWorker() {
		os.Exit(privsep.RunWorker(newChecker))
	}
	if err := run(os.Args[1:]); err != nil {
		if !errors.Is(err, errDenied) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage()
		return fmt.Errorf("subcommand required")
	}
	switch args[0] {
	case "check":
		return runCheck(args[1:])
	case "groups":
		return runGroups(args[1:])
	case "version":
		fmt.Printf("authsep %s\n", version)
		return nil
	case "-h", "--help", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand: %q", args[0])
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: authsep <subcommand> [flags]

Subcommands:
  check     Verify a password through the privileged worker
  groups    Print the groups a user belongs to
  version   Print version information

Run 'authsep <subcommand> --help' for subcommand flags.
`)
}

// newChecker runs inside the worker process.
func newChecker(cfg privsep.WorkerConfig) (auth.Checker, error) {
	switch config.Backend(strings.ToLower(cfg.Backend)) {
	case config.BackendPAM, "":
		return pamauth.New(cfg.PAMService), nil
	case config.BackendShadow:
		db, err := usermgr.NewDefault()
		if err != nil {
			return nil, err
		}
		return auth.NewShadowChecker(db), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
