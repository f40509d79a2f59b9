// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package state holds the persisted records of the bot: per-user
// credit balances and model tiers ([Ledger]), the rooms that opted in
// with their system prompts ([Registry]), and the roles allowed to
// choose the premium tier ([PrivilegeGate]).
//
// Nothing is cached. Every operation reads the store again, so several
// processes sharing one store see each other's writes.
//
// Reads never fail: a store error is logged and the default value is
// used for that call, so a storage outage degrades customization and
// balances to their defaults instead of stopping replies. Mutations
// log and also return their error so that a command can report it.
package state
