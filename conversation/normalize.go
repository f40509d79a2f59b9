// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/longbridgeapp/opencc"
)

// Normalizer rewrites reply text into one orthographic convention
// before it is stored and returned.
type Normalizer interface {
	Normalize(text string) string
}

// IdentityNormalizer returns text unchanged.
type IdentityNormalizer struct{}

func (IdentityNormalizer) Normalize(text string) string { return text }

// OpenCCNormalizer converts Chinese script with an OpenCC profile, for
// example "s2twp" (Simplified to Traditional, Taiwan phrasing).
type OpenCCNormalizer struct {
	mu        sync.Mutex
	converter *opencc.OpenCC
	profile   string
	logger    *slog.Logger
}

// NewOpenCCNormalizer loads the dictionaries of profile.
func NewOpenCCNormalizer(profile string, logger *slog.Logger) (*OpenCCNormalizer, error) {
	converter, err := opencc.New(profile)
	if err != nil {
		return nil, fmt.Errorf("conversation: loading opencc profile %q: %w", profile, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenCCNormalizer{converter: converter, profile: profile, logger: logger}, nil
}

// Normalize converts text. A conversion error is logged and the text
// is returned unchanged.
func (normalizer *OpenCCNormalizer) Normalize(text string) string {
	normalizer.mu.Lock()
	converted, err := normalizer.converter.Convert(text)
	normalizer.mu.Unlock()
	if err != nil {
		normalizer.logger.Warn("script conversion failed",
			"profile", normalizer.profile,
			"error", err,
		)
		return text
	}
	return converted
}
