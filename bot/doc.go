// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bot connects rooms on a Matrix homeserver to conversation
// sessions.
//
// A [Bot] long-polls /sync and routes each text message in a joined
// room to one of two kinds of job: a command (messages starting with
// the configured prefix, "!gpt" by default) or a chat turn. Every job
// for a room runs on that room's FIFO in a keyqueue.Queue, so commands
// and chat turns are applied in the order they arrived and no two jobs
// ever touch the same conversation.Session at once. Rooms are
// independent.
//
// Active rooms and their prompts are kept in a state.Registry and
// restored with empty histories on startup. Credits and model tiers
// live in a state.Ledger keyed by Matrix user ID; the premium tier is
// gated by a state.PrivilegeGate over roles derived from the room's
// power levels.
//
// Messages starting with "#" (or the fullwidth "＃") are side
// comments and are never answered. The bot ignores its own messages,
// edits and non-text messages, and it does not answer the backlog
// delivered by the first /sync.
package bot
