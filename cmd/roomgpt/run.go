// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/roomgpt/bot"
	"github.com/bureau-foundation/roomgpt/conversation"
	"github.com/bureau-foundation/roomgpt/lib/clock"
	"github.com/bureau-foundation/roomgpt/lib/config"
	"github.com/bureau-foundation/roomgpt/lib/keyqueue"
	"github.com/bureau-foundation/roomgpt/lib/kv"
	"github.com/bureau-foundation/roomgpt/lib/llm"
	llmcontext "github.com/bureau-foundation/roomgpt/lib/llm/context"
	"github.com/bureau-foundation/roomgpt/lib/sealed"
	"github.com/bureau-foundation/roomgpt/lib/secret"
	"github.com/bureau-foundation/roomgpt/lib/service"
	"github.com/bureau-foundation/roomgpt/lib/version"
	"github.com/bureau-foundation/roomgpt/state"
)

// drainMargin is added to the longest call timeout when waiting for
// queued jobs at shutdown.
const drainMargin = 10 * time.Second

func runBot(args []string) error {
	var configPath string
	var verbose bool

	flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "configuration file (default: $ROOMGPT_CONFIG)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	if err := parseFlags(flagSet, args); err != nil {
		return ignoreHelp(err)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging, verbose, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

// loadConfig reads path, or $ROOMGPT_CONFIG when path is empty, and
// validates the result.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. verbose forces debug level.
func newLogger(logging config.LoggingConfig, verbose bool, out io.Writer) (*slog.Logger, error) {
	level, err := logging.SlogLevel()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}
	switch logging.Format {
	case "", "json":
		return slog.New(slog.NewJSONHandler(out, options)), nil
	case "text":
		return slog.New(slog.NewTextHandler(out, options)), nil
	default:
		return nil, fmt.Errorf("logging.format: unknown format %q", logging.Format)
	}
}

// readAPIKey loads the completion API key: a sealed file when an
// identity is configured, a plain file when only the file is, and the
// environment variable otherwise.
func readAPIKey(openai config.OpenAIConfig) (*secret.Buffer, error) {
	switch {
	case openai.APIKeyFile != "" && openai.APIKeyIdentity != "":
		return sealed.OpenFile(openai.APIKeyFile, openai.APIKeyIdentity)
	case openai.APIKeyFile != "":
		return secret.ReadFile(openai.APIKeyFile)
	default:
		return secret.FromEnv(openai.APIKeyEnv)
	}
}

// newNormalizer returns the OpenCC converter for profile, or the
// identity when profile is empty.
func newNormalizer(profile string, logger *slog.Logger) (conversation.Normalizer, error) {
	if profile == "" {
		return conversation.IdentityNormalizer{}, nil
	}
	return conversation.NewOpenCCNormalizer(profile, logger)
}

// serve wires the bot from cfg and runs it until ctx is done, then
// waits for queued jobs.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	apiKey, err := readAPIKey(cfg.OpenAI)
	if err != nil {
		return fmt.Errorf("loading API key: %w", err)
	}
	defer apiKey.Close()

	provider, err := llm.NewOpenAI(llm.OpenAIConfig{
		BaseURL:               cfg.OpenAI.BaseURL,
		APIKey:                apiKey,
		ResponseHeaderTimeout: cfg.OpenAI.ResponseHeaderTimeout,
	})
	if err != nil {
		return err
	}

	encoding, err := llmcontext.OpenEncoding(cfg.Conversation.Encoding)
	if err != nil {
		return err
	}
	estimator := llmcontext.NewEstimator(encoding)

	normalizer, err := newNormalizer(cfg.Conversation.Normalize, logger)
	if err != nil {
		return err
	}

	store, codec, err := kv.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	_, session, err := service.LoadSession(cfg.Matrix.StateDir, logger)
	if err != nil {
		return err
	}
	defer session.Close()
	if _, err := service.ValidateSession(ctx, session); err != nil {
		return err
	}

	limits := cfg.Limits.Session()
	queue := keyqueue.New[string](logger)
	roomBot, err := bot.New(bot.Config{
		Session: session,
		Conversation: conversation.Config{
			Provider:   provider,
			Estimator:  estimator,
			Prices:     cfg.Billing.Prices,
			FeeRate:    cfg.Billing.FeeRate,
			Limits:     limits,
			Replies:    cfg.Conversation.Replies,
			Normalizer: normalizer,
			Logger:     logger,
		},
		Ledger: state.NewLedger(store, codec, state.LedgerConfig{
			FreeCredits: cfg.Billing.FreeCredits,
			DefaultTier: llm.TierBasic,
		}, logger),
		Registry:              state.NewRegistry(store, codec, logger),
		Gate:                  state.NewPrivilegeGate(cfg.Privileges.File, cfg.Privileges.DefaultRoles, logger),
		Queue:                 queue,
		Models:                cfg.Models,
		Settings:              cfg.Bot,
		DefaultPrompt:         cfg.Conversation.DefaultPrompt,
		MaxSystemPromptTokens: cfg.Limits.MaxSystemPromptTokens,
		SyncTimeout:           cfg.Matrix.SyncTimeout,
		Clock:                 clock.Real(),
		Logger:                logger,
	})
	if err != nil {
		return err
	}

	logger.Info("starting roomgpt",
		"version", version.Info(),
		"user_id", session.UserID(),
		"homeserver", session.HomeserverURL(),
		"storage", cfg.Storage.Driver,
		"encoding", cfg.Conversation.Encoding,
	)
	runErr := roomBot.Run(ctx)

	queue.Close()
	drainContext, cancel := context.WithTimeout(context.Background(), limits.Timeout(llm.TierPremium)+drainMargin)
	defer cancel()
	if pending := queue.Keys(); pending > 0 {
		logger.Info("waiting for queued jobs", "rooms", pending)
	}
	if err := queue.Wait(drainContext); err != nil {
		logger.Warn("queued jobs still running at exit", "rooms", queue.Keys())
	}
	logger.Info("stopped")
	return runErr
}
