package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"github.com/bizzbazzar/bazaar/pkg/logger"
)

// ValidateCron reports whether expr is a cron expression gronx accepts,
// including macros such as "@hourly".
func ValidateCron(expr string) error {
	if !gronx.New().IsValid(expr) {
		return fmt.Errorf("invalid cron expression %q", expr)
	}
	return nil
}

// NextRun returns the first tick of expr strictly after ref.
func NextRun(expr string, ref time.Time) (time.Time, error) {
	next, err := gronx.NextTickAfter(expr, ref, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("next tick of %q: %w", expr, err)
	}
	return next, nil
}

// RunCron calls fn on every tick of expr until ctx is done. It blocks.
func RunCron(ctx context.Context, expr string, fn func(ctx context.Context, now time.Time)) error {
	if err := ValidateCron(expr); err != nil {
		return err
	}
	for {
		now := time.Now()
		next, err := NextRun(expr, now)
		if err != nil {
			return err
		}
		logger.DebugCF("scheduler", "Next sweep scheduled", map[string]interface{}{
			"expr": expr,
			"at":   next.Format(time.RFC3339),
		})
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case tick := <-timer.C:
			fn(ctx, tick)
		}
	}
}
