package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/hnrobert/authsep/internal/hostfs"
	"github.com/hnrobert/authsep/internal/usermgr"
)

func runGroups(args []string) error {
	flags := pflag.NewFlagSet("groups", pflag.ContinueOnError)
	hostRoot := flags.String("host-root", getenvDefault("AUTHSEP_HOST_ROOT", hostfs.DefaultRoot), "host root; / resolves through the system name service")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("usage: authsep groups <user>")
	}
	if err := hostfs.SetRoot(*hostRoot); err != nil {
		return err
	}
	groups, err := usermgr.OpenDefault().GroupsForUser(flags.Arg(0))
	if err != nil {
		return err
	}
	fmt.Println(strings.Join(groups, " "))
	return nil
}
