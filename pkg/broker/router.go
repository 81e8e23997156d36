package broker

import (
	"context"
	"sort"

	"github.com/bizzbazzar/bazaar/pkg/bus"
	"github.com/bizzbazzar/bazaar/pkg/catalog"
	"github.com/bizzbazzar/bazaar/pkg/i18n"
	"github.com/bizzbazzar/bazaar/pkg/logger"
	"github.com/bizzbazzar/bazaar/pkg/session"
	"github.com/bizzbazzar/bazaar/pkg/store"
)

// qualifiedSellers returns the sellers serving c followed by the supermarket
// sellers, without duplicates. Each part is ordered by local id.
func (b *Broker) qualifiedSellers(c catalog.Category) []*store.Seller {
	var direct, supermarket []*store.Seller
	for _, s := range b.store.Sellers(store.Verified) {
		if !bool(s.Verified) || s.Paused {
			continue
		}
		if s.Stage == store.StageDone && s.Serves(c) {
			direct = append(direct, s)
			continue
		}
		if s.Serves(catalog.Supermarket) {
			supermarket = append(supermarket, s)
		}
	}
	byLocal := func(list []*store.Seller) {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Address.LocalID() < list[j].Address.LocalID()
		})
	}
	byLocal(direct)
	byLocal(supermarket)
	return append(direct, supermarket...)
}

// route fans a confirmed intake out to the qualified sellers and the
// broadcast channels, then closes the intake.
func (b *Broker) route(ctx context.Context, in *session.Intake) error {
	buyer := in.Buyer
	lang := b.lang(buyer)
	sellers := b.qualifiedSellers(in.Category)
	if len(sellers) == 0 {
		b.send(ctx, buyer, i18n.Tf(lang, i18n.KeyNoSellers, catalog.Label(in.Category)))
		b.sessions.EndIntake(buyer)
		logger.InfoCF("router", "No sellers for category", map[string]interface{}{
			"buyer":    buyer,
			"category": string(in.Category),
		})
		return nil
	}

	payload := in.Payload()
	image := b.imagePath(payload.ImageID)
	requestID := b.newID()

	channels := []bus.Address{b.broadcastAddress(in.Category)}
	if super := b.broadcastAddress(catalog.Supermarket); super != channels[0] {
		channels = append(channels, super)
	}
	broadcast := BroadcastRequestText(payload)
	for _, ch := range channels {
		if ch == "" {
			continue
		}
		b.send(ctx, ch, broadcast)
		if image != "" {
			b.sendMedia(ctx, ch, image, msgProductImage)
		}
	}

	text := SellerRequestText(payload, buyer)
	created := 0
	for _, s := range sellers {
		// A seller may have paused or left while earlier sends were in flight.
		current, ok := b.store.VerifiedSeller(s.Address)
		if !ok || current.Paused {
			logger.DebugCF("router", "Skipping seller paused during fan-out", map[string]interface{}{
				"seller": s.Address,
			})
			continue
		}
		if !b.send(ctx, s.Address, text) {
			continue
		}
		if image != "" {
			b.sendMedia(ctx, s.Address, image, msgProductImage)
		}
		req := b.store.NewRequest(s.Address, buyer, b.now())
		req.RequestID = requestID
		req.Category = in.Category
		req.Payload = payload
		b.scheduleReminder(ctx, req)
		created++
	}
	b.saveRequests(ctx)

	b.send(ctx, buyer, i18n.T(lang, i18n.KeyOnIt))
	b.send(ctx, buyer, i18n.T(lang, i18n.KeyHelpHint))

	if in.FirstTime {
		b.completeFirstRequest(ctx, buyer)
	}
	b.sessions.EndIntake(buyer)

	logger.InfoCF("router", "Request routed", map[string]interface{}{
		"request_id": requestID,
		"buyer":      buyer,
		"category":   string(in.Category),
		"qualified":  len(sellers),
		"created":    created,
		"broadcasts": len(channels),
	})
	return nil
}

// completeFirstRequest records a first-time buyer once their first request is out.
func (b *Broker) completeFirstRequest(ctx context.Context, addr bus.Address) {
	now := b.now()
	buyer, ok := b.store.Buyer(addr)
	if !ok {
		buyer = &store.Buyer{Address: addr, RegisteredAt: now}
		b.store.PutBuyer(buyer)
	}
	buyer.FirstRequestCompleted = true
	buyer.FirstRequestCompletedAt = &now
	b.saveBuyers(ctx)
}
