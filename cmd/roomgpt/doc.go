// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Roomgpt is a Matrix chat bot that answers room messages with an
// OpenAI-compatible completion API, one conversation per room.
//
// Subcommands:
//
//	roomgpt [run] [--config FILE] [--verbose]
//	roomgpt login --homeserver URL --username NAME [--password-file FILE] [--state-dir DIR]
//	roomgpt keygen
//	roomgpt seal --recipient age1... [--in FILE]
//	roomgpt version
//
// "login" writes session.json into the state directory; "run" reads
// it. The API key comes from an environment variable, a plain file, or
// a file sealed with "roomgpt seal" to the identity made by "roomgpt
// keygen".
package main
