// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed encrypts and decrypts the completion API key at rest
// with filippo.io/age.
//
// Sealed files are ASCII-armored age messages, so they survive being
// pasted into a config repository. Identities (AGE-SECRET-KEY-1...)
// and decrypted plaintext only ever live in [secret.Buffer] memory.
//
//   - [GenerateKeypair] backs `roomgpt keygen`
//   - [Seal] backs `roomgpt seal`
//   - [OpenFile] decrypts openai.api_key_file at startup
package sealed
