// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/roomgpt/lib/config"
	"github.com/bureau-foundation/roomgpt/lib/secret"
	"github.com/bureau-foundation/roomgpt/lib/service"
	"github.com/bureau-foundation/roomgpt/messaging"
)

func runLogin(args []string) error {
	var homeserver, username, passwordFile, stateDir string

	flagSet := pflag.NewFlagSet("login", pflag.ContinueOnError)
	flagSet.StringVar(&homeserver, "homeserver", "", "homeserver URL, e.g. https://matrix.example.org (required)")
	flagSet.StringVar(&username, "username", "", "bot account localpart or user ID (required)")
	flagSet.StringVar(&passwordFile, "password-file", "", "read the password from this file instead of prompting")
	flagSet.StringVar(&stateDir, "state-dir", config.Default().Matrix.StateDir, "directory to write session.json into")
	if err := parseFlags(flagSet, args); err != nil {
		return ignoreHelp(err)
	}
	if homeserver == "" || username == "" {
		flagSet.Usage()
		return errors.New("--homeserver and --username are required")
	}

	password, err := readPassword(passwordFile)
	if err != nil {
		return err
	}
	defer password.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: homeserver,
		Logger:        slog.Default(),
	})
	if err != nil {
		return err
	}
	session, err := client.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("logging in as %s: %w", username, err)
	}
	defer session.Close()

	if err := service.SaveSession(stateDir, session); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Logged in as %s (device %s); session saved to %s\n",
		session.UserID(), session.DeviceID(), filepath.Join(stateDir, service.SessionFileName))
	return nil
}

// readPassword reads the password from path, or from the terminal with
// echo disabled when path is empty.
func readPassword(path string) (*secret.Buffer, error) {
	if path != "" {
		return secret.ReadFile(path)
	}

	stdinFileDescriptor := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFileDescriptor) {
		return nil, errors.New("no terminal available for the password prompt (use --password-file)")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	passwordBytes, err := term.ReadPassword(stdinFileDescriptor)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	defer secret.Zero(passwordBytes)
	if len(passwordBytes) == 0 {
		return nil, errors.New("empty password")
	}
	return secret.NewFromBytes(passwordBytes)
}
