// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package context bounds conversation history by message count and
// estimated token count.
//
// An [Encoding] counts units of a string under a fixed vocabulary:
// [TiktokenEncoding] uses an OpenAI BPE table bundled into the binary,
// [RuneWeightEncoding] is a dependency-free approximation. [Estimator]
// adds the chat framing overhead around every message so that an
// estimate tracks what the completion API bills for the prompt.
//
// [Window] is the sliding bound applied to a channel's history: it
// drops single messages from the oldest end until both the count and
// the token limit hold.
//
// Everything here is pure and deterministic. Estimates are computed
// synchronously on every call.
package context
