// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import "strings"

// Price is a per-1000-token rate. When Total is non-zero it applies to
// input and output alike and the split rates are ignored.
type Price struct {
	Total      float64 `yaml:"total"`
	Prompt     float64 `yaml:"prompt"`
	Completion float64 `yaml:"completion"`
}

// PriceTable maps model identifiers to prices.
type PriceTable map[string]Price

// Cost returns the undiscounted price of usage on model. Lookup is by
// exact name first, then by the longest table key that is a
// dash-delimited prefix of model, so "gpt-4-0613" bills as "gpt-4".
// Unknown models cost 0 and report false.
func (table PriceTable) Cost(model string, usage Usage) (float64, bool) {
	price, ok := table.lookup(model)
	if !ok {
		return 0, false
	}
	if price.Total != 0 {
		return float64(usage.Total()) * price.Total / 1000, true
	}
	return float64(usage.InputTokens)*price.Prompt/1000 +
		float64(usage.OutputTokens)*price.Completion/1000, true
}

func (table PriceTable) lookup(model string) (Price, bool) {
	if price, ok := table[model]; ok {
		return price, true
	}
	best := ""
	for name := range table {
		if len(name) > len(best) && strings.HasPrefix(model, name+"-") {
			best = name
		}
	}
	if best == "" {
		return Price{}, false
	}
	return table[best], true
}
