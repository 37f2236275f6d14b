package reminder

import (
	"context"
	"log"
	"time"

	"github.com/PRADEEP131204/Medimate/domain"
)

// DefaultSweepInterval matches the original 30-second reminder ticker.
const DefaultSweepInterval = 30 * time.Second

// Notifier delivers a best-effort alert. Implementations may no-op when
// the host has not granted notification permission; that is not an error.
type Notifier interface {
	Notify(title, body string)
}

// Sweep periodically scans for due, unacknowledged doses and fires at
// most one alert per reminder identity per day, guarded by the notified
// flag. It is the only writer of the notified namespace.
type Sweep struct {
	deriver  *Deriver
	flags    FlagStore
	notifier Notifier
	scope    Scope
	interval time.Duration
	now      func() time.Time
}

func NewSweep(deriver *Deriver, flags FlagStore, notifier Notifier, scope Scope, interval time.Duration, now func() time.Time) *Sweep {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if now == nil {
		now = time.Now
	}
	return &Sweep{
		deriver:  deriver,
		flags:    flags,
		notifier: notifier,
		scope:    scope,
		interval: interval,
		now:      now,
	}
}

// Run ticks until ctx is cancelled. No tick starts after cancellation,
// though an alert already in flight is not recalled.
func (s *Sweep) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx, s.now())
		}
	}
}

// Tick performs one scan at the given instant and returns how many alerts
// fired. Only events whose time-based urgency is due alert: upcoming ones
// have not arrived, and events first observed overdue stay silent. The
// due window is the sole alerting state.
func (s *Sweep) Tick(ctx context.Context, now time.Time) int {
	reminders, err := s.deriver.Today(ctx, s.scope, now)
	if err != nil {
		log.Printf("reminder sweep: derive failed: %v", err)
		return 0
	}
	fired := 0
	for _, r := range reminders {
		if r.Urgency != domain.UrgencyDue || r.Taken {
			continue
		}
		key := notifiedKey(r.Date, r.ID)
		if s.flags.Get(ctx, key) {
			continue
		}
		s.notifier.Notify("Time to take "+r.Medicine, r.Time+" • "+r.Dosage)
		// Set even if the sink no-ops, so the attempt is not repeated.
		if err := s.flags.Set(ctx, key); err != nil {
			log.Printf("reminder sweep: set notified flag for %s: %v", r.ID, err)
		}
		fired++
	}
	return fired
}
