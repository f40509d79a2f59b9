// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/roomgpt/lib/config"
)

func TestRunUnknownSubcommand(t *testing.T) {
	err := run([]string{"dance"})
	if err == nil || !strings.Contains(err.Error(), `"dance"`) {
		t.Fatalf("run(dance) = %v, want unknown subcommand error", err)
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	logger, err := newLogger(config.LoggingConfig{Level: "warn", Format: "json"}, false, &buffer)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "room_id", "!a:x")
	var record map[string]any
	if err := json.Unmarshal(buffer.Bytes(), &record); err != nil {
		t.Fatalf("output is not one JSON record: %v\n%s", err, buffer.String())
	}
	if record["msg"] != "shown" || record["room_id"] != "!a:x" {
		t.Errorf("record = %v", record)
	}

	buffer.Reset()
	logger, err = newLogger(config.LoggingConfig{Level: "error", Format: "text"}, true, &buffer)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	if !logger.Enabled(t.Context(), slog.LevelDebug) {
		t.Error("--verbose did not enable debug logging")
	}
	logger.Debug("details")
	if !strings.Contains(buffer.String(), "msg=details") {
		t.Errorf("text output = %q", buffer.String())
	}

	if _, err := newLogger(config.LoggingConfig{Level: "info", Format: "xml"}, false, &buffer); err == nil {
		t.Error("unknown format accepted")
	}
	if _, err := newLogger(config.LoggingConfig{Level: "loud"}, false, &buffer); err == nil {
		t.Error("unknown level accepted")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	directory := t.TempDir()

	valid := filepath.Join(directory, "valid.yaml")
	if err := os.WriteFile(valid, []byte("matrix:\n  state_dir: "+directory+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(valid)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Privileges.File != filepath.Join(directory, "privileged.jsonc") {
		t.Errorf("privileges file = %q", cfg.Privileges.File)
	}

	invalid := filepath.Join(directory, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("limits:\n  max_prompt_tokens: -1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(invalid); err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("loadConfig(invalid) = %v", err)
	}
}

// keygen runs the keygen subcommand and writes the identity to a file.
func keygen(t *testing.T) (recipient, identityPath string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	if err := runKeygen(&stdout, &stderr); err != nil {
		t.Fatalf("runKeygen: %v", err)
	}
	recipient = strings.TrimSpace(stdout.String())
	if !strings.HasPrefix(recipient, "age1") {
		t.Fatalf("recipient = %q", recipient)
	}
	if !strings.Contains(stderr.String(), "AGE-SECRET-KEY-1") || !strings.Contains(stderr.String(), "# public key: "+recipient) {
		t.Fatalf("identity output = %q", stderr.String())
	}
	identityPath = filepath.Join(t.TempDir(), "identity.txt")
	if err := os.WriteFile(identityPath, stderr.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	return recipient, identityPath
}

func TestSealAndReadAPIKey(t *testing.T) {
	t.Parallel()
	recipient, identityPath := keygen(t)

	var sealedKey bytes.Buffer
	if err := runSeal([]string{"--recipient", recipient}, strings.NewReader("  sk-test-123\n"), &sealedKey); err != nil {
		t.Fatalf("runSeal: %v", err)
	}
	if !strings.HasPrefix(sealedKey.String(), "-----BEGIN AGE ENCRYPTED FILE-----") {
		t.Fatalf("sealed output is not armored: %q", sealedKey.String())
	}
	keyPath := filepath.Join(t.TempDir(), "openai.age")
	if err := os.WriteFile(keyPath, sealedKey.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}

	key, err := readAPIKey(config.OpenAIConfig{APIKeyFile: keyPath, APIKeyIdentity: identityPath})
	if err != nil {
		t.Fatalf("readAPIKey(sealed): %v", err)
	}
	defer key.Close()
	if key.String() != "sk-test-123" {
		t.Errorf("key = %q", key.String())
	}
}

func TestSealFromFile(t *testing.T) {
	t.Parallel()
	recipient, _ := keygen(t)
	inputPath := filepath.Join(t.TempDir(), "key.txt")
	if err := os.WriteFile(inputPath, []byte("sk-from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var output bytes.Buffer
	if err := runSeal([]string{"--recipient", recipient, "--in", inputPath}, strings.NewReader(""), &output); err != nil {
		t.Fatalf("runSeal --in: %v", err)
	}
	if output.Len() == 0 {
		t.Error("no ciphertext written")
	}
}

func TestSealErrors(t *testing.T) {
	t.Parallel()
	recipient, _ := keygen(t)

	tests := []struct {
		name  string
		args  []string
		stdin string
		want  string
	}{
		{"missing recipient", nil, "sk-x", "--recipient"},
		{"empty key", []string{"--recipient", recipient}, " \n", "no key"},
		{"bad recipient", []string{"--recipient", "age1nope"}, "sk-x", "recipient"},
		{"extra argument", []string{"--recipient", recipient, "stray"}, "sk-x", "unexpected argument"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			var output bytes.Buffer
			err := runSeal(test.args, strings.NewReader(test.stdin), &output)
			if err == nil || !strings.Contains(err.Error(), test.want) {
				t.Errorf("runSeal = %v, want error containing %q", err, test.want)
			}
		})
	}
}

func TestReadAPIKeyPlainFile(t *testing.T) {
	t.Parallel()
	keyPath := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(keyPath, []byte("sk-plain\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	key, err := readAPIKey(config.OpenAIConfig{APIKeyFile: keyPath, APIKeyEnv: "UNUSED"})
	if err != nil {
		t.Fatalf("readAPIKey: %v", err)
	}
	defer key.Close()
	if key.String() != "sk-plain" {
		t.Errorf("key = %q", key.String())
	}
}

func TestReadAPIKeyFromEnv(t *testing.T) {
	t.Setenv("ROOMGPT_TEST_KEY", "sk-env")
	key, err := readAPIKey(config.OpenAIConfig{APIKeyEnv: "ROOMGPT_TEST_KEY"})
	if err != nil {
		t.Fatalf("readAPIKey: %v", err)
	}
	defer key.Close()
	if key.String() != "sk-env" {
		t.Errorf("key = %q", key.String())
	}
	if _, set := os.LookupEnv("ROOMGPT_TEST_KEY"); set {
		t.Error("key variable was left in the environment")
	}
}

func TestNewNormalizer(t *testing.T) {
	t.Parallel()
	identity, err := newNormalizer("", nil)
	if err != nil {
		t.Fatalf("newNormalizer(\"\"): %v", err)
	}
	if got := identity.Normalize("软件"); got != "软件" {
		t.Errorf("identity changed text to %q", got)
	}
}
