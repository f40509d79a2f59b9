// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for roomgpt.
//
// Configuration is loaded from a single file specified by either the
// ROOMGPT_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks and no automatic file
// search. Values missing from the file keep the [Default] values,
// which carry the limits, prices and prompt the bot has always used.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${ROOMGPT_STATE} (the configured state directory) and
// ${VAR:-default} patterns are expanded.
//
// Key exports:
//
//   - [Config] -- master struct, one field per YAML section
//   - [Default] -- returns a Config with the built-in defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.Validate] -- reports every problem at once
package config
