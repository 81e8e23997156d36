package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/bizzbazzar/bazaar/pkg/logger"
	"github.com/bizzbazzar/bazaar/pkg/store"
)

func (b *Broker) scheduleReminder(ctx context.Context, req *store.PendingRequest) {
	at := req.CreatedAt.Add(b.opts.ReminderDelay)
	if err := b.scheduler.Schedule(ctx, req.Key, at); err != nil {
		logger.WarnCF("scheduler", "Failed to schedule reminder", map[string]interface{}{
			"request": req.Key,
			"error":   err.Error(),
		})
	}
}

func (b *Broker) cancelReminder(ctx context.Context, key string) {
	if err := b.scheduler.Cancel(ctx, key); err != nil {
		logger.WarnCF("scheduler", "Failed to cancel reminder", map[string]interface{}{
			"request": key,
			"error":   err.Error(),
		})
	}
}

// deleteRequest removes a request together with its reminder. The caller saves.
func (b *Broker) deleteRequest(ctx context.Context, key string) {
	b.store.DeleteRequest(key)
	b.cancelReminder(ctx, key)
}

func reminderText(req *store.PendingRequest) string {
	return fmt.Sprintf("⏰ *Reminder*\n\nA buyer is still waiting for your response to:\n📦 *%s*\n\n"+
		"💬 Please reply to the request message with your price and availability, or type `/pending` to see it again.",
		req.Payload.Product)
}

func expiryText(req *store.PendingRequest) string {
	return fmt.Sprintf("⌛ The buyer request for *%s* has expired and was removed from your pending list.", req.Payload.Product)
}

// handleReminder nudges the seller once if the request is still untouched.
func (b *Broker) handleReminder(ctx context.Context, key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	req, ok := b.store.Request(key)
	if !ok {
		logger.DebugCF("scheduler", "Reminder for a request that is gone", map[string]interface{}{"request": key})
		return
	}
	if req.Confirmation != store.ConfirmNone || req.ReminderSent {
		return
	}
	seller, ok := b.store.VerifiedSeller(req.Seller)
	if !ok || seller.Paused {
		return
	}
	b.send(ctx, req.Seller, reminderText(req))
	req.ReminderSent = true
	b.saveRequests(ctx)
	logger.InfoCF("scheduler", "Reminder sent", map[string]interface{}{
		"request": key,
		"seller":  req.Seller,
	})
}

type SweepReport struct {
	Expired       int
	Orphans       int
	Intakes       int
	Registrations int
	Dashboards    int
	Images        int
}

// Sweep expires old requests, cancels reminders without a request, prunes
// idle sessions, closes abandoned dashboards and drops images nothing refers
// to. Running it twice in a row changes nothing the second time.
func (b *Broker) Sweep(ctx context.Context, now time.Time) SweepReport {
	b.mu.Lock()
	defer b.mu.Unlock()

	var report SweepReport
	for _, req := range b.store.Requests() {
		if now.Before(req.CreatedAt.Add(b.opts.RequestTTL)) {
			continue
		}
		b.deleteRequest(ctx, req.Key)
		b.send(ctx, req.Seller, expiryText(req))
		report.Expired++
	}
	if report.Expired > 0 {
		b.saveRequests(ctx)
	}

	scheduled, err := b.scheduler.Scheduled(ctx)
	if err != nil {
		logger.WarnCF("scheduler", "Failed to list scheduled reminders", map[string]interface{}{"error": err.Error()})
	}
	for _, id := range scheduled {
		if _, ok := b.store.Request(id); ok {
			continue
		}
		b.cancelReminder(ctx, id)
		report.Orphans++
	}

	pruned := b.sessions.Prune(now, b.opts.SessionIdle)
	report.Intakes = len(pruned.Intakes)
	report.Registrations = len(pruned.Registrations)
	for _, reg := range pruned.Registrations {
		at := now
		b.store.PutSeller(store.Incomplete, &store.Seller{
			Address:     reg.Seller,
			Shop:        reg.Shop,
			Location:    reg.Location,
			Stage:       reg.Stage,
			CancelledAt: &at,
		})
	}
	report.Dashboards = b.closeIdleDashboards(now)
	if len(pruned.Registrations) > 0 || report.Dashboards > 0 {
		b.saveSellers(ctx)
	}

	if b.images != nil {
		inUse := map[string]bool{}
		for _, req := range b.store.Requests() {
			if req.Payload.ImageID != "" {
				inUse[req.Payload.ImageID] = true
			}
		}
		for _, id := range b.sessions.IntakeImages() {
			inUse[id] = true
		}
		removed, err := b.images.Prune(now.Add(-b.opts.RequestTTL), func(id string) bool { return inUse[id] })
		if err != nil {
			logger.WarnCF("broker", "Image prune failed", map[string]interface{}{"error": err.Error()})
		}
		report.Images = len(removed)
	}

	logger.InfoCF("broker", "Sweep finished", map[string]interface{}{
		"expired":       report.Expired,
		"orphans":       report.Orphans,
		"intakes":       report.Intakes,
		"registrations": report.Registrations,
		"dashboards":    report.Dashboards,
		"images":        report.Images,
	})
	return report
}

// closeIdleDashboards returns verified sellers left in category management
// to done, so routing picks them up again.
func (b *Broker) closeIdleDashboards(now time.Time) int {
	closed := 0
	for _, seller := range b.store.Sellers(store.Verified) {
		if !seller.Stage.Managing() {
			continue
		}
		if seller.StageUpdatedAt != nil && now.Sub(*seller.StageUpdatedAt) <= b.opts.SessionIdle {
			continue
		}
		seller.Stage = store.StageDone
		seller.StageUpdatedAt = &now
		closed++
		logger.InfoCF("broker", "Closed idle seller dashboard", map[string]interface{}{
			"seller": seller.Address,
		})
	}
	return closed
}
