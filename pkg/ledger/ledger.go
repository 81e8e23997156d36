// Package ledger is an append-only record of seller offers relayed to buyers.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bizzbazzar/bazaar/pkg/bus"
	"github.com/bizzbazzar/bazaar/pkg/catalog"
	"github.com/bizzbazzar/bazaar/pkg/store"
)

const Collection = "seller_responses"

type Record struct {
	Timestamp time.Time        `json:"timestamp"`
	DayKey    string           `json:"day_key"`
	RequestID string           `json:"request_id"`
	Seller    bus.Address      `json:"seller"`
	Buyer     bus.Address      `json:"buyer"`
	Product   string           `json:"product"`
	Category  catalog.Category `json:"category"`
	Offer     string           `json:"offer"`
}

type Filter struct {
	Seller   bus.Address
	Buyer    bus.Address
	DayKey   string
	Category catalog.Category
	Limit    int
}

type Ledger struct {
	mu      sync.RWMutex
	backend store.Backend
	records []Record
}

// Open loads the existing records from backend.
func Open(ctx context.Context, backend store.Backend) (*Ledger, error) {
	l := &Ledger{
		backend: backend,
		records: make([]Record, 0, 256),
	}
	if _, err := backend.Load(ctx, Collection, &l.records); err != nil {
		l.records = make([]Record, 0, 256)
		return l, fmt.Errorf("load ledger: %w", err)
	}
	return l, nil
}

func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Append adds r and writes the whole ledger back.
func (l *Ledger) Append(ctx context.Context, r Record) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	if r.DayKey == "" {
		r.DayKey = DayKey(r.Timestamp)
	}

	l.mu.Lock()
	l.records = append(l.records, r)
	snapshot := make([]Record, len(l.records))
	copy(snapshot, l.records)
	l.mu.Unlock()

	if err := l.backend.Save(ctx, Collection, snapshot); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

// Query returns matching records in insertion order, keeping the newest
// f.Limit when a limit is set.
func (l *Ledger) Query(f Filter) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Record, 0, len(l.records))
	for _, r := range l.records {
		if f.Seller != "" && r.Seller != f.Seller {
			continue
		}
		if f.Buyer != "" && r.Buyer != f.Buyer {
			continue
		}
		if f.DayKey != "" && r.DayKey != f.DayKey {
			continue
		}
		if f.Category != "" && r.Category != f.Category {
			continue
		}
		out = append(out, r)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// CountBySeller tallies records per seller.
func CountBySeller(records []Record) map[bus.Address]int {
	out := map[bus.Address]int{}
	for _, r := range records {
		out[r.Seller]++
	}
	return out
}
