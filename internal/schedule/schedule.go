// Package schedule evaluates standard five-field cron expressions and runs
// callbacks on them.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "dateutil/internal/log"
)

// Next returns the next n activation times of spec strictly after from.
// Times are reported in from's location.
func Next(spec string, from time.Time, n int) ([]time.Time, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	out := make([]time.Time, 0, n)
	t := from
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out, nil
}

// Ticker invokes a callback on a cron schedule.
type Ticker struct {
	loc *time.Location
	now func() time.Time
}

// NewTicker returns a Ticker evaluating schedules in loc (time.Local if nil).
func NewTicker(loc *time.Location) *Ticker {
	if loc == nil {
		loc = time.Local
	}
	return &Ticker{loc: loc, now: time.Now}
}

// Run calls fn with the activation time each time spec fires, until ctx
// is canceled. It returns ctx.Err() on cancellation or an error if spec
// cannot be parsed.
func (t *Ticker) Run(ctx context.Context, spec string, fn func(time.Time)) error {
	c := cron.New(cron.WithLocation(t.loc))
	if _, err := c.AddFunc(spec, func() {
		fn(t.now().In(t.loc))
	}); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}

	appLog.Info("schedule: started", "spec", spec, "timezone", t.loc.String())
	c.Start()
	<-ctx.Done()

	// Wait for a running job to finish before returning.
	<-c.Stop().Done()
	appLog.Info("schedule: stopped", "spec", spec)
	return ctx.Err()
}
