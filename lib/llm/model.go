// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import "fmt"

// Tier is the model class a user selects. Each tier maps to a concrete
// model name in configuration.
type Tier string

const (
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
)

// ParseTier accepts "basic" or "premium".
func ParseTier(text string) (Tier, error) {
	switch tier := Tier(text); tier {
	case TierBasic, TierPremium:
		return tier, nil
	default:
		return "", fmt.Errorf("llm: unknown model tier %q (want basic or premium)", text)
	}
}

// Valid reports whether tier is one of the known tiers.
func (tier Tier) Valid() bool {
	return tier == TierBasic || tier == TierPremium
}
