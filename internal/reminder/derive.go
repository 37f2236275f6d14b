// Package reminder derives today's dosage events from prescriptions,
// classifies their urgency against the wall clock, and tracks taken and
// notified state through a durable flag store.
package reminder

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/PRADEEP131204/Medimate/domain"
)

// DueWindow is how long after its scheduled time a dose counts as due
// rather than overdue.
const DueWindow = 30 * time.Minute

// PrescriptionSource is the read-only view of the prescription store.
type PrescriptionSource interface {
	List(ctx context.Context) ([]domain.Prescription, error)
}

// FlagStore is a durable key -> bool map. Get must fail open: a read
// failure reports false, never an error.
type FlagStore interface {
	Get(ctx context.Context, key string) bool
	Set(ctx context.Context, key string) error
	Clear(ctx context.Context, key string) error
}

// Scope restricts derivation to one patient's prescriptions, or passes
// everything through for a doctor.
type Scope struct {
	patientID string
	all       bool
}

func ScopeAll() Scope { return Scope{all: true} }

func ScopePatient(id string) Scope { return Scope{patientID: id} }

func (s Scope) allows(patientID string) bool {
	return s.all || s.patientID == patientID
}

// Flag keys carry the calendar date so taken/notified state resets
// naturally each day without a rollover sweep.
func takenKey(date, id string) string { return "taken:" + date + ":" + id }

func notifiedKey(date, id string) string { return "notified:" + date + ":" + id }

// Classify maps a scheduled time to its urgency relative to now. Exactly
// one of upcoming, due, overdue holds for any pair on the same day.
func Classify(at, now time.Time) domain.Urgency {
	if at.After(now) {
		return domain.UrgencyUpcoming
	}
	if now.Sub(at) <= DueWindow {
		return domain.UrgencyDue
	}
	return domain.UrgencyOverdue
}

// parseClock anchors an "HH:MM" string to now's calendar day. Both parts
// must be zero padded; anything else is a malformed upstream entry.
// time.Parse alone is too lenient here, it accepts one-digit hours.
func parseClock(value string, now time.Time) (time.Time, error) {
	if len(value) != 5 || value[2] != ':' {
		return time.Time{}, fmt.Errorf("reminder: malformed time %q", value)
	}
	t, err := time.Parse("15:04", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("reminder: malformed time %q: %w", value, err)
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location()), nil
}

// Deriver turns prescriptions plus flag state into today's ordered
// reminder list. It is the single source of truth for both the view
// layer and the notification sweep, and never mutates either store.
type Deriver struct {
	prescriptions PrescriptionSource
	flags         FlagStore
}

func NewDeriver(prescriptions PrescriptionSource, flags FlagStore) *Deriver {
	return &Deriver{prescriptions: prescriptions, flags: flags}
}

// Today derives every reminder for the calendar day of now within scope,
// ordered ascending by scheduled time. Ties keep encounter order:
// prescription, then medicine, then time-list position. Medicines with
// malformed time entries are skipped rather than failing the derivation.
func (d *Deriver) Today(ctx context.Context, scope Scope, now time.Time) ([]domain.Reminder, error) {
	prescriptions, err := d.prescriptions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("reminder: list prescriptions: %w", err)
	}
	return d.derive(ctx, prescriptions, scope, now), nil
}

func (d *Deriver) derive(ctx context.Context, prescriptions []domain.Prescription, scope Scope, now time.Time) []domain.Reminder {
	date := now.Format("2006-01-02")
	out := make([]domain.Reminder, 0)
	for _, p := range prescriptions {
		if !scope.allows(p.PatientID) {
			continue
		}
		for _, m := range p.Medicines {
			for _, tm := range m.Times {
				at, err := parseClock(tm, now)
				if err != nil {
					continue
				}
				id := domain.ReminderID(p.ID, m.ID, tm)
				out = append(out, domain.Reminder{
					ID:             id,
					PrescriptionID: p.ID,
					PatientID:      p.PatientID,
					PatientName:    p.PatientName,
					Medicine:       m.Name,
					Dosage:         m.Dosage,
					Time:           tm,
					Date:           date,
					Taken:          d.flags.Get(ctx, takenKey(date, id)),
					Urgency:        Classify(at, now),
				})
			}
		}
	}
	// Zero-padded HH:MM sorts correctly as strings; stable keeps
	// encounter order for equal times.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time < out[j].Time
	})
	return out
}

// Next returns the earliest reminder not yet taken, for the dashboard's
// next-dose panel. ok is false when nothing is pending.
func (d *Deriver) Next(ctx context.Context, scope Scope, now time.Time) (domain.Reminder, bool, error) {
	reminders, err := d.Today(ctx, scope, now)
	if err != nil {
		return domain.Reminder{}, false, err
	}
	for _, r := range reminders {
		if !r.Taken {
			return r, true, nil
		}
	}
	return domain.Reminder{}, false, nil
}
