// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the one CBOR configuration roomgpt uses for
// stored documents (user records and the channel registry) when the
// store is configured with `codec: cbor`.
//
// Encoding is Core Deterministic (RFC 8949 §4.2): sorted map keys and
// shortest integer forms, so the same record always produces the same
// bytes. Types carry `json` tags only; fxamacker/cbor falls back to
// them, which keeps field names identical across the JSON and CBOR
// codecs.
package codec
