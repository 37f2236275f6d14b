package reminder

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestToggleTakenIsItsOwnInverse(t *testing.T) {
	flags := newFakeFlags()
	c := NewController(flags, fixedClock(at(9, 0)))
	ctx := context.Background()

	taken, err := c.ToggleTaken(ctx, "p1-m11-09:00")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !taken {
		t.Fatalf("first toggle should set the flag")
	}

	taken, err = c.ToggleTaken(ctx, "p1-m11-09:00")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if taken {
		t.Fatalf("second toggle should clear the flag")
	}
	if len(flags.set) != 0 {
		t.Fatalf("flag store should be back to empty, got %v", flags.set)
	}
}

func TestMarkAllTakenEmptyReportsNoPending(t *testing.T) {
	c := NewController(newFakeFlags(), fixedClock(at(9, 0)))
	if _, err := c.MarkAllTaken(context.Background(), nil); !errors.Is(err, ErrNoPending) {
		t.Fatalf("expected ErrNoPending, got %v", err)
	}
}

func TestMarkAllTakenSkipsAlreadyTaken(t *testing.T) {
	flags := newFakeFlags()
	now := at(9, 0)
	c := NewController(flags, fixedClock(now))
	ctx := context.Background()

	if _, err := c.ToggleTaken(ctx, "a"); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	marked, err := c.MarkAllTaken(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("mark all: %v", err)
	}
	if marked != 2 {
		t.Fatalf("marked = %d, want 2 (a was already taken)", marked)
	}
	date := now.Format("2006-01-02")
	for _, id := range []string{"a", "b", "c"} {
		if !flags.Get(ctx, takenKey(date, id)) {
			t.Fatalf("flag for %s not set", id)
		}
	}
}

func TestMarkAllTakenVisibleInNextDerivation(t *testing.T) {
	flags := newFakeFlags()
	now := at(9, 10)
	c := NewController(flags, fixedClock(now))
	d := NewDeriver(samplePrescriptions(), flags)
	ctx := context.Background()

	reminders, err := d.Today(ctx, ScopePatient("u1"), now)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	pending := make([]string, 0, len(reminders))
	for _, r := range reminders {
		if !r.Taken {
			pending = append(pending, r.ID)
		}
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending reminders, got %d", len(pending))
	}

	if _, err := c.MarkAllTaken(ctx, pending); err != nil {
		t.Fatalf("mark all: %v", err)
	}

	reminders, err = d.Today(ctx, ScopePatient("u1"), now)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	for _, r := range reminders {
		if !r.Taken {
			t.Fatalf("reminder %s still pending after mark all", r.ID)
		}
		if got := r.DisplayUrgency(); got != "taken" {
			t.Fatalf("display urgency = %s, want taken", got)
		}
	}
}
