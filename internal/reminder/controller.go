package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoPending reports a mark-all call with nothing to mark. It is a
// recoverable no-op condition, not a failure.
var ErrNoPending = errors.New("reminder: no pending reminders")

// Controller mutates the taken-flag namespace. It is the only writer of
// taken flags; the sweep owns the notified namespace.
type Controller struct {
	flags FlagStore
	now   func() time.Time
}

func NewController(flags FlagStore, now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{flags: flags, now: now}
}

// ToggleTaken flips the taken flag for one reminder identity and returns
// the new state. A set flag is cleared so patients can undo a mistaken
// acknowledgement. The write is synchronous; the next derivation sees it.
func (c *Controller) ToggleTaken(ctx context.Context, id string) (bool, error) {
	date := c.now().Format("2006-01-02")
	key := takenKey(date, id)
	if c.flags.Get(ctx, key) {
		if err := c.flags.Clear(ctx, key); err != nil {
			return true, fmt.Errorf("reminder: clear taken flag: %w", err)
		}
		return false, nil
	}
	if err := c.flags.Set(ctx, key); err != nil {
		return false, fmt.Errorf("reminder: set taken flag: %w", err)
	}
	return true, nil
}

// MarkAllTaken sets the taken flag for every supplied identity that is
// not already set, returning how many it marked. An empty input reports
// ErrNoPending.
func (c *Controller) MarkAllTaken(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, ErrNoPending
	}
	date := c.now().Format("2006-01-02")
	marked := 0
	for _, id := range ids {
		key := takenKey(date, id)
		if c.flags.Get(ctx, key) {
			continue
		}
		if err := c.flags.Set(ctx, key); err != nil {
			return marked, fmt.Errorf("reminder: set taken flag: %w", err)
		}
		marked++
	}
	return marked, nil
}
