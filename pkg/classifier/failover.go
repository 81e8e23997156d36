package classifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bizzbazzar/bazaar/pkg/catalog"
	"github.com/bizzbazzar/bazaar/pkg/logger"
)

const (
	modeNormal   = "normal"
	modeDegraded = "degraded"
)

// Failover sends requests to the primary classifier and switches to the
// fallback for the hold window after the primary fails.
type Failover struct {
	primary  Classifier
	fallback Classifier
	hold     time.Duration

	mu            sync.Mutex
	mode          string
	degradedUntil time.Time
	now           func() time.Time
}

func NewFailover(primary, fallback Classifier, hold time.Duration) *Failover {
	if hold <= 0 {
		hold = 30 * time.Minute
	}
	return &Failover{
		primary:  primary,
		fallback: fallback,
		hold:     hold,
		mode:     modeNormal,
		now:      time.Now,
	}
}

// Mode reports "normal" or "degraded".
func (f *Failover) Mode() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshLocked()
	return f.mode
}

func (f *Failover) refreshLocked() {
	if f.mode == modeDegraded && !f.now().Before(f.degradedUntil) {
		f.mode = modeNormal
		logger.InfoC("classifier", "Hold window elapsed, switching back to primary")
	}
}

func (f *Failover) Classify(ctx context.Context, product, details string) (catalog.Category, error) {
	f.mu.Lock()
	f.refreshLocked()
	degraded := f.mode == modeDegraded
	f.mu.Unlock()

	if !degraded {
		category, err := f.primary.Classify(ctx, product, details)
		if err == nil {
			return category, nil
		}
		if ctx.Err() != nil {
			return catalog.Unknown, err
		}
		f.mu.Lock()
		f.mode = modeDegraded
		f.degradedUntil = f.now().Add(f.hold)
		f.mu.Unlock()
		logger.WarnCF("classifier", "Primary classifier failed, using fallback", map[string]interface{}{
			"error": err.Error(),
			"hold":  f.hold.String(),
		})
	}

	category, err := f.fallback.Classify(ctx, product, details)
	if err != nil {
		return catalog.Unknown, errors.Join(ErrUnavailable, err)
	}
	return category, nil
}
