// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used for history
// aging and sync backoff.
//
// Components hold a Clock field instead of calling time.Now or
// time.After directly:
//
//	session := conversation.NewSession(conversation.Config{Clock: clock.Real(), ...})
//
// Tests substitute a FakeClock and move time explicitly:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	fake.Advance(16 * time.Minute)
//
// When a goroutine is about to wait on After, call WaitForTimers
// before Advance so the waiter is registered first.
package clock
