// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/roomgpt/conversation"
	"github.com/bureau-foundation/roomgpt/lib/kv"
	"github.com/bureau-foundation/roomgpt/lib/llm"
	llmcontext "github.com/bureau-foundation/roomgpt/lib/llm/context"
)

// EnvConfig names the environment variable read by [Load].
const EnvConfig = "ROOMGPT_CONFIG"

// DefaultSystemPrompt is given to every room that has not set its own.
const DefaultSystemPrompt = "You have a great sense of humor and are an independent thinker who likes to chat."

// Config is the master configuration for roomgpt.
type Config struct {
	// Matrix configures the homeserver connection.
	Matrix MatrixConfig `yaml:"matrix"`

	// OpenAI configures the completion API.
	OpenAI OpenAIConfig `yaml:"openai"`

	// Models maps each tier to a model name.
	Models ModelsConfig `yaml:"models"`

	// Limits bounds prompts, history and call duration.
	Limits LimitsConfig `yaml:"limits"`

	// Billing prices completions and seeds new users.
	Billing BillingConfig `yaml:"billing"`

	// Conversation configures prompts, token counting and reply text.
	Conversation ConversationConfig `yaml:"conversation"`

	// Storage selects where users and rooms are persisted.
	Storage kv.Config `yaml:"storage"`

	// Privileges configures the premium-tier role file.
	Privileges PrivilegesConfig `yaml:"privileges"`

	// Bot configures the command surface and administration.
	Bot BotConfig `yaml:"bot"`

	// Logging configures the process logger.
	Logging LoggingConfig `yaml:"logging"`
}

// MatrixConfig configures the homeserver connection. The homeserver
// URL and access token come from the session file written by
// "roomgpt login".
type MatrixConfig struct {
	// StateDir holds session.json and, by default, the data store.
	StateDir string `yaml:"state_dir"`

	// SyncTimeout is the long-poll timeout of each /sync request.
	// Default: 30s
	SyncTimeout time.Duration `yaml:"sync_timeout"`
}

// OpenAIConfig configures the completion API. Exactly one key source
// is used: APIKeyFile when set, otherwise the APIKeyEnv variable.
type OpenAIConfig struct {
	// BaseURL of an OpenAI-compatible API, ending in /v1.
	BaseURL string `yaml:"base_url"`

	// APIKeyEnv names the variable holding the key.
	// Default: OPENAI_API_KEY
	APIKeyEnv string `yaml:"api_key_env"`

	// APIKeyFile holds the key. With APIKeyIdentity set it is an
	// age-encrypted file produced by "roomgpt seal".
	APIKeyFile string `yaml:"api_key_file"`

	// APIKeyIdentity is the age identity file that decrypts APIKeyFile.
	APIKeyIdentity string `yaml:"api_key_identity"`

	// ResponseHeaderTimeout bounds the wait for the API's response
	// headers. Exceeding it is reported as an upstream timeout.
	// Zero means only the call timeout applies.
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout"`
}

// ModelsConfig maps tiers to model names.
type ModelsConfig struct {
	Basic   string `yaml:"basic"`
	Premium string `yaml:"premium"`
}

// Name returns the model name for tier.
func (models ModelsConfig) Name(tier llm.Tier) string {
	if tier == llm.TierPremium {
		return models.Premium
	}
	return models.Basic
}

// LimitsConfig bounds prompts, history and calls.
type LimitsConfig struct {
	MaxPromptTokens       int           `yaml:"max_prompt_tokens"`
	MaxSystemPromptTokens int           `yaml:"max_system_prompt_tokens"`
	MaxGeneratedTokens    int           `yaml:"max_generated_tokens"`
	MaxHistoryMessages    int           `yaml:"max_history_messages"`
	MaxHistoryTokens      int           `yaml:"max_history_tokens"`
	MaxHistoryAge         time.Duration `yaml:"max_history_age"`
	APITimeout            time.Duration `yaml:"api_timeout"`
	PremiumTimeoutFactor  float64       `yaml:"premium_timeout_factor"`
}

// Session converts the limits for conversation.Config.
func (limits LimitsConfig) Session() conversation.Limits {
	return conversation.Limits{
		MaxPromptTokens:      limits.MaxPromptTokens,
		MaxHistoryMessages:   limits.MaxHistoryMessages,
		MaxHistoryTokens:     limits.MaxHistoryTokens,
		MaxHistoryAge:        limits.MaxHistoryAge,
		MaxGeneratedTokens:   limits.MaxGeneratedTokens,
		APITimeout:           limits.APITimeout,
		PremiumTimeoutFactor: limits.PremiumTimeoutFactor,
	}
}

// BillingConfig prices completions.
type BillingConfig struct {
	// FreeCredits is granted to every user on first contact.
	FreeCredits float64 `yaml:"free_credits"`

	// FeeRate is added on top of the API price.
	FeeRate float64 `yaml:"fee_rate"`

	// Prices per 1000 tokens, by model name. Entries in the file are
	// merged over the defaults.
	Prices llm.PriceTable `yaml:"prices"`
}

// ConversationConfig configures sessions.
type ConversationConfig struct {
	// DefaultPrompt is the system prompt of rooms without their own.
	DefaultPrompt string `yaml:"default_prompt"`

	// Encoding names the token vocabulary: cl100k_base, o200k_base or
	// rune_weight.
	Encoding string `yaml:"encoding"`

	// Normalize is an OpenCC profile applied to replies, for example
	// s2twp. Empty disables conversion.
	Normalize string `yaml:"normalize"`

	// Replies override the fixed failure texts.
	Replies conversation.Replies `yaml:"replies"`
}

// PrivilegesConfig configures the premium-tier role file.
type PrivilegesConfig struct {
	// File is a JSON-with-comments document {"roles": [...]}.
	File string `yaml:"file"`

	// DefaultRoles seed File when it does not exist.
	DefaultRoles []string `yaml:"default_roles"`
}

// BotConfig configures commands and administration.
type BotConfig struct {
	// CommandPrefix starts every command message.
	// Default: !gpt
	CommandPrefix string `yaml:"command_prefix"`

	// AdminUser is the Matrix user allowed to grant credits.
	AdminUser string `yaml:"admin_user"`

	// AdminRooms, when non-empty, restricts admin commands to these
	// rooms.
	AdminRooms []string `yaml:"admin_rooms"`

	// AvailableServers, when non-empty, restricts accepted invites to
	// users on these homeservers.
	AvailableServers []string `yaml:"available_servers"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is json or text.
	Format string `yaml:"format"`
}

// SlogLevel parses Level.
func (logging LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logging.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

// Default returns the default configuration. Loading a file only
// overrides the fields it names.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Matrix: MatrixConfig{
			StateDir:    filepath.Join(homeDir, ".local", "state", "roomgpt"),
			SyncTimeout: 30 * time.Second,
		},
		OpenAI: OpenAIConfig{
			BaseURL:   llm.DefaultOpenAIBaseURL,
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Models: ModelsConfig{
			Basic:   "gpt-3.5-turbo",
			Premium: "gpt-4",
		},
		Limits: LimitsConfig{
			MaxPromptTokens:       650,
			MaxSystemPromptTokens: 500,
			MaxGeneratedTokens:    1500,
			MaxHistoryMessages:    12,
			MaxHistoryTokens:      1500,
			MaxHistoryAge:         15 * time.Minute,
			APITimeout:            60 * time.Second,
			PremiumTimeoutFactor:  2,
		},
		Billing: BillingConfig{
			FreeCredits: 0.05,
			FeeRate:     0.1,
			Prices: llm.PriceTable{
				"gpt-3.5-turbo":      {Total: 0.002},
				"gpt-4":              {Prompt: 0.03, Completion: 0.06},
				"gpt-4-1106-preview": {Prompt: 0.01, Completion: 0.03},
			},
		},
		Conversation: ConversationConfig{
			DefaultPrompt: DefaultSystemPrompt,
			Encoding:      llmcontext.EncodingCL100K,
			Normalize:     "s2twp",
		},
		Storage: kv.Config{
			Driver:      kv.DriverFile,
			Path:        "${ROOMGPT_STATE}/data",
			Codec:       "json",
			Compression: kv.CompressionNone,
		},
		Privileges: PrivilegesConfig{
			File:         "${ROOMGPT_STATE}/privileged.jsonc",
			DefaultRoles: []string{"admin"},
		},
		Bot: BotConfig{
			CommandPrefix: "!gpt",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from the ROOMGPT_CONFIG environment
// variable. There is no fallback when it is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvConfig)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your roomgpt.yaml config file, or use --config flag", EnvConfig)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, over the
// defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Matrix.StateDir = expandVars(c.Matrix.StateDir, vars)
	vars["ROOMGPT_STATE"] = c.Matrix.StateDir // Dependent paths below.

	c.OpenAI.APIKeyFile = expandVars(c.OpenAI.APIKeyFile, vars)
	c.OpenAI.APIKeyIdentity = expandVars(c.OpenAI.APIKeyIdentity, vars)
	c.Storage.Path = expandVars(c.Storage.Path, vars)
	c.Storage.URL = expandVars(c.Storage.URL, vars)
	c.Privileges.File = expandVars(c.Privileges.File, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]

		// Provided vars first, then the environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors, reporting all of them.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Matrix.StateDir == "" {
		fail("matrix.state_dir is required")
	}
	if c.Matrix.SyncTimeout <= 0 {
		fail("matrix.sync_timeout must be positive")
	}

	if c.OpenAI.BaseURL == "" {
		fail("openai.base_url is required")
	}
	if c.OpenAI.APIKeyFile == "" && c.OpenAI.APIKeyEnv == "" {
		fail("one of openai.api_key_file or openai.api_key_env is required")
	}
	if c.OpenAI.APIKeyIdentity != "" && c.OpenAI.APIKeyFile == "" {
		fail("openai.api_key_identity requires openai.api_key_file")
	}

	for _, tier := range []llm.Tier{llm.TierBasic, llm.TierPremium} {
		model := c.Models.Name(tier)
		if model == "" {
			fail("models.%s is required", tier)
			continue
		}
		if _, ok := c.Billing.Prices.Cost(model, llm.Usage{}); !ok {
			fail("billing.prices has no entry for models.%s (%s)", tier, model)
		}
	}

	positive := []struct {
		name  string
		value int
	}{
		{"limits.max_prompt_tokens", c.Limits.MaxPromptTokens},
		{"limits.max_system_prompt_tokens", c.Limits.MaxSystemPromptTokens},
		{"limits.max_generated_tokens", c.Limits.MaxGeneratedTokens},
		{"limits.max_history_messages", c.Limits.MaxHistoryMessages},
		{"limits.max_history_tokens", c.Limits.MaxHistoryTokens},
	}
	for _, limit := range positive {
		if limit.value <= 0 {
			fail("%s must be positive", limit.name)
		}
	}
	// A prompt larger than the history budget would be trimmed out of its
	// own request.
	if c.Limits.MaxPromptTokens > 0 && c.Limits.MaxHistoryTokens > 0 &&
		c.Limits.MaxPromptTokens > c.Limits.MaxHistoryTokens {
		fail("limits.max_prompt_tokens (%d) must not exceed limits.max_history_tokens (%d)",
			c.Limits.MaxPromptTokens, c.Limits.MaxHistoryTokens)
	}
	if c.Limits.MaxHistoryAge <= 0 {
		fail("limits.max_history_age must be positive")
	}
	if c.Limits.APITimeout <= 0 {
		fail("limits.api_timeout must be positive")
	}
	if c.Limits.PremiumTimeoutFactor < 1 {
		fail("limits.premium_timeout_factor must be at least 1")
	}

	if c.Billing.FreeCredits < 0 && c.Billing.FreeCredits != -1 {
		fail("billing.free_credits must be non-negative, or -1 for unlimited")
	}
	if c.Billing.FeeRate < 0 {
		fail("billing.fee_rate must be non-negative")
	}

	if strings.TrimSpace(c.Conversation.DefaultPrompt) == "" {
		fail("conversation.default_prompt is required")
	}
	encodings := []string{llmcontext.EncodingCL100K, llmcontext.EncodingO200K, llmcontext.EncodingRuneWeight}
	if !slices.Contains(encodings, c.Conversation.Encoding) {
		fail("conversation.encoding must be one of: %v", encodings)
	}

	drivers := []string{kv.DriverMemory, kv.DriverFile, kv.DriverSQLite, kv.DriverRedis}
	switch {
	case !slices.Contains(drivers, c.Storage.Driver):
		fail("storage.driver must be one of: %v", drivers)
	case (c.Storage.Driver == kv.DriverFile || c.Storage.Driver == kv.DriverSQLite) && c.Storage.Path == "":
		fail("storage.path is required for the %s driver", c.Storage.Driver)
	case c.Storage.Driver == kv.DriverRedis && c.Storage.URL == "":
		fail("storage.url is required for the redis driver")
	}
	if _, err := kv.CodecByName(c.Storage.Codec); err != nil {
		fail("storage.codec: %w", err)
	}
	compressions := []kv.Compression{"", kv.CompressionNone, kv.CompressionZstd, kv.CompressionLZ4}
	if !slices.Contains(compressions, c.Storage.Compression) {
		fail("storage.compression must be none, zstd or lz4")
	}

	if c.Privileges.File == "" {
		fail("privileges.file is required")
	}

	if strings.TrimSpace(c.Bot.CommandPrefix) == "" {
		fail("bot.command_prefix is required")
	}
	if c.Bot.AdminUser != "" && !strings.HasPrefix(c.Bot.AdminUser, "@") {
		fail("bot.admin_user must be a Matrix user ID (@user:server)")
	}

	if _, err := c.Logging.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		fail("logging.format must be json or text")
	}

	return errors.Join(errs...)
}

// SessionFile is the path of the Matrix session written by login.
func (c *Config) SessionFile() string {
	return filepath.Join(c.Matrix.StateDir, "session.json")
}
