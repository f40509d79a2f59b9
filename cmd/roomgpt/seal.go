// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/roomgpt/lib/sealed"
	"github.com/bureau-foundation/roomgpt/lib/secret"
)

// runKeygen prints a new identity to stderr, with the comment and
// layout of an age-keygen file, and its recipient to stdout.
func runKeygen(stdout, stderr io.Writer) error {
	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		return err
	}
	defer keypair.Close()

	fmt.Fprintf(stderr, "# public key: %s\n", keypair.Recipient)
	fmt.Fprintf(stderr, "%s\n", keypair.Identity.String())
	fmt.Fprintf(stdout, "%s\n", keypair.Recipient)
	return nil
}

// runSeal encrypts an API key, read from --in or stdin, to one or more
// recipients and writes the armored result to stdout.
func runSeal(args []string, stdin io.Reader, stdout io.Writer) error {
	var recipients []string
	var inputPath string

	flagSet := pflag.NewFlagSet("seal", pflag.ContinueOnError)
	flagSet.StringArrayVar(&recipients, "recipient", nil, "age1... recipient (repeatable, required)")
	flagSet.StringVar(&inputPath, "in", "", "read the key from this file instead of stdin")
	if err := parseFlags(flagSet, args); err != nil {
		return ignoreHelp(err)
	}
	if len(recipients) == 0 {
		return errors.New("--recipient is required")
	}

	var plaintext []byte
	var err error
	if inputPath != "" {
		plaintext, err = os.ReadFile(inputPath)
	} else {
		plaintext, err = io.ReadAll(stdin)
	}
	if err != nil {
		return fmt.Errorf("reading key: %w", err)
	}
	defer secret.Zero(plaintext)

	trimmed := bytes.TrimSpace(plaintext)
	if len(trimmed) == 0 {
		return errors.New("no key provided (pipe it to stdin or use --in)")
	}

	ciphertext, err := sealed.Seal(trimmed, recipients)
	if err != nil {
		return err
	}
	_, err = stdout.Write(ciphertext)
	return err
}
