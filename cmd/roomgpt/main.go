// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/roomgpt/lib/process"
	"github.com/bureau-foundation/roomgpt/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func run(args []string) error {
	subcommand := "run"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		subcommand, args = args[0], args[1:]
	}

	switch subcommand {
	case "run":
		return runBot(args)
	case "login":
		return runLogin(args)
	case "keygen":
		return runKeygen(os.Stdout, os.Stderr)
	case "seal":
		return runSeal(args, os.Stdin, os.Stdout)
	case "version":
		fmt.Println(version.Full())
		return nil
	case "help":
		printUsage(os.Stdout)
		return nil
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("unknown subcommand: %q", subcommand)
	}
}

func printUsage(out io.Writer) {
	fmt.Fprint(out, `Usage: roomgpt <subcommand> [flags]

Subcommands:
  run       Run the bot (default)
  login     Log in to a homeserver and save the session
  keygen    Generate an age identity for sealing the API key
  seal      Encrypt an API key to an age recipient
  version   Print version information

Run 'roomgpt <subcommand> --help' for subcommand flags.
`)
}

// parseFlags parses args into flagSet, printing usage for --help.
// It returns errHelp after printing so callers can exit cleanly.
func parseFlags(flagSet *pflag.FlagSet, args []string) error {
	flagSet.SetOutput(os.Stderr)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return errHelp
		}
		return err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return fmt.Errorf("unexpected argument: %s", extra[0])
	}
	return nil
}

// errHelp signals that usage was printed on request.
var errHelp = errors.New("help requested")

// ignoreHelp maps errHelp to success.
func ignoreHelp(err error) error {
	if errors.Is(err, errHelp) {
		return nil
	}
	return err
}
