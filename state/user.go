// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/bureau-foundation/roomgpt/lib/kv"
	"github.com/bureau-foundation/roomgpt/lib/llm"
)

// UnlimitedCredits marks a user who is never blocked or debited.
const UnlimitedCredits = -1

// ErrUnknownUser is returned by Credit for a user with no record when
// creation was not requested.
var ErrUnknownUser = errors.New("state: unknown user")

// User is one user's record.
type User struct {
	ID      string   `json:"-"`
	Model   llm.Tier `json:"model"`
	Credits float64  `json:"credits"`

	// fallback marks defaults substituted for a record that could not
	// be read. Such a record is never written back.
	fallback bool
}

// Unlimited reports the unlimited sentinel.
func (user User) Unlimited() bool {
	return user.Credits == UnlimitedCredits
}

// CanSpend reports whether a new completion may start. A zero or
// negative balance blocks, except for unlimited users.
func (user User) CanSpend() bool {
	return user.Unlimited() || user.Credits > 0
}

// LedgerConfig sets the record a first-time user starts with.
type LedgerConfig struct {
	FreeCredits float64
	DefaultTier llm.Tier
}

// Ledger stores User records under "users/<id>".
type Ledger struct {
	store  kv.Store
	codec  kv.Codec
	config LedgerConfig
	logger *slog.Logger
}

// NewLedger returns a ledger over store. An empty DefaultTier means
// basic.
func NewLedger(store kv.Store, codec kv.Codec, config LedgerConfig, logger *slog.Logger) *Ledger {
	if config.DefaultTier == "" {
		config.DefaultTier = llm.TierBasic
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: store, codec: codec, config: config, logger: logger}
}

func userKey(userID string) string {
	return "users/" + userID
}

// settle keeps balance arithmetic off the unlimited sentinel. Only
// SetUnlimited may store exactly UnlimitedCredits.
func settle(credits float64) float64 {
	if credits == UnlimitedCredits {
		return math.Nextafter(UnlimitedCredits, math.Inf(-1))
	}
	return credits
}

func (ledger *Ledger) substitute(userID string) User {
	user := ledger.fresh(userID)
	user.fallback = true
	return user
}

func (ledger *Ledger) fresh(userID string) User {
	return User{ID: userID, Model: ledger.config.DefaultTier, Credits: ledger.config.FreeCredits}
}

func (ledger *Ledger) decode(userID string, data []byte) (User, error) {
	user := ledger.fresh(userID)
	if err := ledger.codec.Unmarshal(data, &user); err != nil {
		return User{}, fmt.Errorf("state: decoding user %s: %w", userID, err)
	}
	if !user.Model.Valid() {
		user.Model = ledger.config.DefaultTier
	}
	user.ID = userID
	return user, nil
}

func (ledger *Ledger) encode(user User) ([]byte, error) {
	data, err := ledger.codec.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("state: encoding user %s: %w", user.ID, err)
	}
	return data, nil
}

// Load returns the user's record. A user seen for the first time gets
// the free-credit grant, and that record is written immediately. When
// the stored record cannot be read, Load returns defaults for this call
// only; Debit will not persist them.
func (ledger *Ledger) Load(ctx context.Context, userID string) User {
	data, err := ledger.store.Get(ctx, userKey(userID))
	if errors.Is(err, kv.ErrNotFound) {
		user := ledger.fresh(userID)
		if err := ledger.put(ctx, user); err != nil {
			ledger.logger.Error("persisting new user failed", "user", userID, "error", err)
		} else {
			ledger.logger.Info("new user", "user", userID, "credits", user.Credits)
		}
		return user
	}
	if err != nil {
		ledger.logger.Error("loading user failed, using defaults", "user", userID, "error", err)
		return ledger.substitute(userID)
	}
	user, err := ledger.decode(userID, data)
	if err != nil {
		ledger.logger.Error("loading user failed, using defaults", "user", userID, "error", err)
		return ledger.substitute(userID)
	}
	return user
}

// Exists reports whether userID has a record. Store errors count as
// absent.
func (ledger *Ledger) Exists(ctx context.Context, userID string) bool {
	_, err := ledger.store.Get(ctx, userKey(userID))
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		ledger.logger.Error("checking user failed", "user", userID, "error", err)
	}
	return err == nil
}

// Debit subtracts amount from the record the caller loaded and writes
// it back. The store is not re-read, so two rooms debiting the same
// user concurrently can lose one of the debits. Unlimited users are
// returned unchanged and not written. A record Load substituted after
// a read error is debited in memory only.
func (ledger *Ledger) Debit(ctx context.Context, user User, amount float64) User {
	if user.Unlimited() || amount == 0 {
		return user
	}
	user.Credits = settle(user.Credits - amount)
	if user.fallback {
		ledger.logger.Warn("debit not persisted, record was not loaded", "user", user.ID, "amount", amount)
		return user
	}
	if err := ledger.put(ctx, user); err != nil {
		ledger.logger.Error("debit failed", "user", user.ID, "amount", amount, "error", err)
	}
	return user
}

// Credit adds amount to the user's balance atomically. A user without
// a record is created with the free grant plus amount when
// createNewUser is set, and is ErrUnknownUser otherwise. Unlimited
// users stay unlimited.
func (ledger *Ledger) Credit(ctx context.Context, userID string, amount float64, createNewUser bool) (User, error) {
	var result User
	err := ledger.store.Update(ctx, userKey(userID), func(current []byte, found bool) ([]byte, error) {
		user := ledger.fresh(userID)
		if found {
			decoded, err := ledger.decode(userID, current)
			if err != nil {
				return nil, err
			}
			user = decoded
		} else if !createNewUser {
			return nil, ErrUnknownUser
		}
		if !user.Unlimited() {
			user.Credits = settle(user.Credits + amount)
		}
		result = user
		return ledger.encode(user)
	})
	if err != nil {
		if !errors.Is(err, ErrUnknownUser) {
			ledger.logger.Error("credit failed", "user", userID, "amount", amount, "error", err)
		}
		return User{}, err
	}
	ledger.logger.Info("credit granted", "user", userID, "amount", amount, "credits", result.Credits)
	return result, nil
}

// SetUnlimited marks the user unlimited, creating the record if
// needed.
func (ledger *Ledger) SetUnlimited(ctx context.Context, userID string) (User, error) {
	return ledger.modify(ctx, userID, func(user *User) { user.Credits = UnlimitedCredits })
}

// SetModel stores the user's tier, creating the record if needed.
func (ledger *Ledger) SetModel(ctx context.Context, userID string, tier llm.Tier) (User, error) {
	if !tier.Valid() {
		return User{}, fmt.Errorf("state: invalid tier %q", tier)
	}
	return ledger.modify(ctx, userID, func(user *User) { user.Model = tier })
}

func (ledger *Ledger) modify(ctx context.Context, userID string, change func(*User)) (User, error) {
	var result User
	err := ledger.store.Update(ctx, userKey(userID), func(current []byte, found bool) ([]byte, error) {
		user := ledger.fresh(userID)
		if found {
			decoded, err := ledger.decode(userID, current)
			if err != nil {
				return nil, err
			}
			user = decoded
		}
		change(&user)
		result = user
		return ledger.encode(user)
	})
	if err != nil {
		ledger.logger.Error("updating user failed", "user", userID, "error", err)
		return User{}, err
	}
	return result, nil
}

func (ledger *Ledger) put(ctx context.Context, user User) error {
	data, err := ledger.encode(user)
	if err != nil {
		return err
	}
	return ledger.store.Put(ctx, userKey(user.ID), data)
}
