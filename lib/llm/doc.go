// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package llm is the completion API boundary.
//
// [Provider] sends one [Request] (model, system prompt, ordered
// history, generation cap, caller identifier) and returns a [Response]
// carrying the generated text and token usage. [OpenAI] implements it
// for any server speaking the Chat Completions wire format.
//
// Failures are not matched by type at call sites. [Classify] maps any
// error from a Provider onto one [ErrorKind], and callers switch over
// the kinds exhaustively.
//
// [PriceTable] turns usage into money and [Tier] names the two model
// classes a user can select.
package llm
