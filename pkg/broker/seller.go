package broker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bizzbazzar/bazaar/pkg/bus"
	"github.com/bizzbazzar/bazaar/pkg/catalog"
	"github.com/bizzbazzar/bazaar/pkg/i18n"
	"github.com/bizzbazzar/bazaar/pkg/logger"
	"github.com/bizzbazzar/bazaar/pkg/session"
	"github.com/bizzbazzar/bazaar/pkg/store"
)

// joinSeller opens the registration, the dashboard or the review summary
// depending on where the seller stands.
func (b *Broker) joinSeller(ctx context.Context, from bus.Address) error {
	if b.sessions.Resolve(from) != session.FlowNone {
		b.send(ctx, from, i18n.T(b.lang(from), i18n.KeyFlowActive))
		return nil
	}

	seller, coll, ok := b.store.Seller(from)
	if !ok {
		return b.beginRegistration(ctx, from, false)
	}
	switch coll {
	case store.Verified:
		if err := moveSeller(seller, store.StageAwaitingCategoryAction, b.now()); err != nil {
			return err
		}
		b.saveSellers(ctx)
		b.send(ctx, from, DashboardText(seller))
	case store.Awaiting:
		b.send(ctx, from, UnderReviewText(seller))
	case store.Incomplete:
		b.store.DeleteSeller(from)
		b.saveSellers(ctx)
		return b.beginRegistration(ctx, from, true)
	}
	return nil
}

func moveSeller(s *store.Seller, to store.SellerStage, now time.Time) error {
	if !store.CanTransition(s.Stage, to) {
		return fmt.Errorf("seller %s: %w: %s -> %s", s.Address, session.ErrIllegalTransition, s.Stage, to)
	}
	s.Stage = to
	s.StageUpdatedAt = &now
	return nil
}

func (b *Broker) beginRegistration(ctx context.Context, from bus.Address, retry bool) error {
	if _, err := b.sessions.BeginRegistration(from, b.now()); err != nil {
		return err
	}
	if retry {
		b.send(ctx, from, msgSellerRetry)
	} else {
		b.send(ctx, from, msgSellerWelcome)
	}
	b.send(ctx, from, msgSellerSteps)
	b.send(ctx, from, msgShopName)
	logger.InfoCF("broker", "Seller registration started", map[string]interface{}{
		"seller": from,
		"retry":  retry,
	})
	return nil
}

func (b *Broker) stepRegistration(ctx context.Context, msg bus.InboundMessage) error {
	from := msg.From()
	reg, ok := b.sessions.Registration(from)
	if !ok {
		return nil
	}
	text := strings.TrimSpace(msg.Content)
	reg.UpdatedAt = b.now()

	switch reg.Stage {
	case store.StageAwaitingShopName:
		if text == "" {
			b.send(ctx, from, msgShopName)
			return nil
		}
		reg.Shop = text
		if err := reg.Advance(store.StageAwaitingLocation); err != nil {
			return err
		}
		b.send(ctx, from, msgShopLocation)

	case store.StageAwaitingLocation:
		if msg.Location == nil || !msg.Location.Valid() {
			b.send(ctx, from, msgShopLocation)
			return nil
		}
		reg.Location = msg.Location
		if err := reg.Advance(store.StageAwaitingCategory); err != nil {
			return err
		}
		b.send(ctx, from, CategoryMenuText(msgShopCategory, catalog.SellerMenu))

	case store.StageAwaitingCategory:
		c, ok := catalog.SellerMenu.Parse(text)
		if !ok {
			b.send(ctx, from, CategoryMenuText(msgInvalidCategory, catalog.SellerMenu))
			return nil
		}
		if err := reg.Advance(store.StageDone); err != nil {
			return err
		}
		b.completeRegistration(ctx, reg, c)

	default:
		return fmt.Errorf("registration for %s in unhandled stage %q", from, reg.Stage)
	}
	return nil
}

// completeRegistration files the seller for admin review.
func (b *Broker) completeRegistration(ctx context.Context, reg *session.Registration, c catalog.Category) {
	now := b.now()
	seller := &store.Seller{
		Address:      reg.Seller,
		Shop:         reg.Shop,
		Location:     reg.Location,
		Category:     c,
		Stage:        store.StageDone,
		RegisteredAt: &now,
	}
	b.store.PutSeller(store.Awaiting, seller)
	b.sessions.EndRegistration(reg.Seller)
	b.saveSellers(ctx)

	b.send(ctx, seller.Address, UnderReviewText(seller))
	b.sendGuide(ctx, seller.Address, b.opts.SellerGuide, "📘 Seller guide")
	b.notifyAdmins(ctx, seller)
	logger.InfoCF("broker", "Seller registration completed", map[string]interface{}{
		"seller":   seller.Address,
		"category": string(c),
	})
}

func (b *Broker) stepDashboard(ctx context.Context, msg bus.InboundMessage) error {
	from := msg.From()
	seller, ok := b.store.VerifiedSeller(from)
	if !ok {
		return nil
	}
	now := b.now()
	seller.StageUpdatedAt = &now
	text := strings.TrimSpace(msg.Content)

	switch seller.Stage {
	case store.StageAwaitingCategoryAction:
		switch {
		case text == "1":
			if err := moveSeller(seller, store.StageAwaitingAddCategory, now); err != nil {
				return err
			}
			b.saveSellers(ctx)
			b.send(ctx, from, CategoryMenuText(msgAddCategory, catalog.SellerMenu))
		case text == "2" && len(seller.AdditionalCategories) > 0:
			if err := moveSeller(seller, store.StageAwaitingRemoveCategory, now); err != nil {
				return err
			}
			b.saveSellers(ctx)
			b.send(ctx, from, RemoveMenuText(seller))
		default:
			options := msgDashOptions
			if len(seller.AdditionalCategories) > 0 {
				options += msgDashRemoveOpt
			}
			b.send(ctx, from, options+msgDashOptionsEnd)
		}

	case store.StageAwaitingAddCategory:
		c, ok := catalog.SellerMenu.Parse(text)
		if !ok {
			b.send(ctx, from, CategoryMenuText(msgInvalidCategory, catalog.SellerMenu))
			return nil
		}
		if !seller.AddCategory(c) {
			b.send(ctx, from, fmt.Sprintf("⚠️ You already serve *%s*. Pick another category or type `cancel`.", catalog.Label(c)))
			return nil
		}
		if err := moveSeller(seller, store.StageDone, now); err != nil {
			return err
		}
		b.saveSellers(ctx)
		b.send(ctx, from, fmt.Sprintf("✅ *%s* has been added to your categories.", catalog.Label(c)))

	case store.StageAwaitingRemoveCategory:
		n, ok := catalog.ParseNumber(text)
		if !ok || n < 1 || n > len(seller.AdditionalCategories) {
			b.send(ctx, from, RemoveMenuText(seller))
			return nil
		}
		c := seller.AdditionalCategories[n-1]
		seller.RemoveCategory(c)
		if err := moveSeller(seller, store.StageDone, now); err != nil {
			return err
		}
		b.saveSellers(ctx)
		b.send(ctx, from, fmt.Sprintf("🗑️ *%s* has been removed from your categories.", catalog.Label(c)))
	}
	return nil
}

// cancelAll drops every open request of a verified seller.
func (b *Broker) cancelAll(ctx context.Context, from bus.Address) {
	if _, ok := b.store.VerifiedSeller(from); !ok {
		b.send(ctx, from, i18n.T(b.lang(from), i18n.KeySellersOnly))
		return
	}
	removed := b.store.DeleteRequestsForSeller(from)
	if len(removed) == 0 {
		b.send(ctx, from, msgNoOrders)
		return
	}
	for _, req := range removed {
		b.cancelReminder(ctx, req.Key)
	}
	b.saveRequests(ctx)
	b.send(ctx, from, fmt.Sprintf("✅ Cancelled %d active order(s). The buyers will not be notified.", len(removed)))
	logger.InfoCF("broker", "Seller cancelled all requests", map[string]interface{}{
		"seller":  from,
		"removed": len(removed),
	})
}

func (b *Broker) setPaused(ctx context.Context, from bus.Address, paused bool) {
	lang := b.lang(from)
	seller, ok := b.store.VerifiedSeller(from)
	if !ok {
		b.send(ctx, from, i18n.T(lang, i18n.KeySellersOnly))
		return
	}
	seller.Paused = paused
	b.saveSellers(ctx)
	if paused {
		b.send(ctx, from, i18n.T(lang, i18n.KeyPaused))
	} else {
		b.send(ctx, from, i18n.T(lang, i18n.KeyResumed))
	}
}

// listPending resends the seller's unanswered requests, oldest first.
func (b *Broker) listPending(ctx context.Context, from bus.Address) {
	if _, ok := b.store.VerifiedSeller(from); !ok {
		b.send(ctx, from, i18n.T(b.lang(from), i18n.KeySellersOnly))
		return
	}
	var open []*store.PendingRequest
	for _, req := range b.store.RequestsForSeller(from) {
		if req.Confirmation == store.ConfirmNone {
			open = append(open, req)
		}
	}
	if len(open) == 0 {
		b.send(ctx, from, msgNoPending)
		return
	}

	b.send(ctx, from, fmt.Sprintf("📋 *You have %d pending request(s).* Each one follows as a separate message.", len(open)))
	for i, req := range open {
		b.send(ctx, from, PendingRequestText(req, i+1, "Pending Buyer Request", "via /pending"))
		b.sendMedia(ctx, from, b.imagePath(req.Payload.ImageID), msgProductImage)
	}
	b.send(ctx, from, "✅ That's everything. Reply to any request above with your price and availability.")
}
