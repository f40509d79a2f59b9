// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"

	"github.com/bureau-foundation/roomgpt/lib/testutil"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeNowAdvances(t *testing.T) {
	t.Parallel()

	clock := Fake(epoch)
	clock.Advance(16 * time.Minute)

	if got := clock.Now().Sub(epoch); got != 16*time.Minute {
		t.Errorf("elapsed = %v, want 16m", got)
	}
}

func TestFakeAfterFiresOnDeadline(t *testing.T) {
	t.Parallel()

	clock := Fake(epoch)
	channel := clock.After(time.Second)

	clock.Advance(500 * time.Millisecond)
	select {
	case <-channel:
		t.Fatal("After fired before its deadline")
	default:
	}

	clock.Advance(500 * time.Millisecond)
	fired := testutil.RequireReceive(t, channel, time.Second, "waiting for After")
	if !fired.Equal(epoch.Add(time.Second)) {
		t.Errorf("fired at %v, want %v", fired, epoch.Add(time.Second))
	}
	if clock.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0", clock.PendingCount())
	}
}

func TestFakeAfterNonPositive(t *testing.T) {
	t.Parallel()

	clock := Fake(epoch)
	testutil.RequireReceive(t, clock.After(0), time.Second, "After(0)")
	if clock.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0", clock.PendingCount())
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	t.Parallel()

	clock := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-clock.After(time.Minute)
		close(done)
	}()

	clock.WaitForTimers(1)
	clock.Advance(time.Minute)
	testutil.RequireClosed(t, done, time.Second, "goroutine waiting on After")
}
