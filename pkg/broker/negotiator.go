package broker

import (
	"context"
	"strings"

	"github.com/bizzbazzar/bazaar/pkg/bus"
	"github.com/bizzbazzar/bazaar/pkg/geo"
	"github.com/bizzbazzar/bazaar/pkg/i18n"
	"github.com/bizzbazzar/bazaar/pkg/ledger"
	"github.com/bizzbazzar/bazaar/pkg/logger"
	"github.com/bizzbazzar/bazaar/pkg/store"
)

func isDecisionToken(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "1", "2", "3", "send", "edit":
		return true
	}
	return false
}

// negotiate runs a verified seller's message through the offer exchange. It
// reports false when the seller has no request the message could belong to.
func (b *Broker) negotiate(ctx context.Context, msg bus.InboundMessage) (bool, error) {
	from := msg.From()
	req, quoted := b.correlate(from, msg.Quoted)
	if req == nil {
		return false, nil
	}
	text := strings.TrimSpace(msg.Content)

	// One draft per seller: bare decision tokens always land on it, so a
	// quoted reply to another request waits until the draft is settled.
	if quoted && req.Confirmation == store.ConfirmNone {
		if draft, ok := b.store.Oldest(from, (*store.PendingRequest).Deciding); ok {
			b.send(ctx, from, msgFinishDraft)
			b.resumeDraft(ctx, draft)
			return true, nil
		}
	}

	switch req.Confirmation {
	case store.ConfirmNone:
		if text == "" || (!quoted && isDecisionToken(text)) {
			b.send(ctx, from, msgUseReply)
			return true, nil
		}
		b.draftOffer(ctx, req, text)

	case store.ConfirmAwaitingDecision:
		switch strings.ToLower(text) {
		case "1", "send":
			b.deliverOffer(ctx, req)
		case "2", "edit":
			req.Confirmation = store.ConfirmAwaitingEdit
			b.saveRequests(ctx)
			b.send(ctx, from, msgEditResponse)
		case "3":
			b.discardOffer(ctx, req)
		default:
			b.send(ctx, from, msgDecisionPrompt+decisionOptions)
		}

	case store.ConfirmAwaitingEdit:
		if text == "" {
			b.send(ctx, from, msgEditResponse)
			return true, nil
		}
		b.draftOffer(ctx, req, text)
	}
	return true, nil
}

// draftOffer renders the seller's reply for both audiences and asks for a decision.
func (b *Broker) draftOffer(ctx context.Context, req *store.PendingRequest, text string) {
	seller, ok := b.store.VerifiedSeller(req.Seller)
	if !ok {
		seller = &store.Seller{Address: req.Seller}
	}
	var buyerLoc *geo.Point
	if buyer, ok := b.store.Buyer(req.Buyer); ok {
		buyerLoc = buyer.Location
	}

	offer := FormatOffer(text)
	req.FormattedReply = offer
	req.BuyerRendering = BuyerOfferText(req.Payload.Product, offer, seller, buyerLoc)
	req.BroadcastRendering = BroadcastOfferText(req.Payload.Product, offer, seller)
	req.Confirmation = store.ConfirmAwaitingDecision
	b.saveRequests(ctx)

	b.send(ctx, req.Seller, ConfirmOfferText(req.Payload.Product, offer, seller.Shop))
}

// deliverOffer relays the cached renderings, records the offer and closes the request.
func (b *Broker) deliverOffer(ctx context.Context, req *store.PendingRequest) {
	b.send(ctx, req.Buyer, req.BuyerRendering)
	if ch := b.broadcastAddress(req.Category); ch != "" {
		b.send(ctx, ch, req.BroadcastRendering)
	}

	if b.ledger != nil {
		now := b.now()
		err := b.ledger.Append(ctx, ledger.Record{
			Timestamp: now,
			DayKey:    ledger.DayKey(now),
			RequestID: req.RequestID,
			Seller:    req.Seller,
			Buyer:     req.Buyer,
			Product:   req.Payload.Product,
			Category:  req.Category,
			Offer:     req.FormattedReply,
		})
		if err != nil {
			logger.ErrorCF("broker", "Failed to record offer", map[string]interface{}{
				"request": req.Key,
				"error":   err.Error(),
			})
		}
	}

	b.deleteRequest(ctx, req.Key)
	b.saveRequests(ctx)
	logger.InfoCF("broker", "Offer delivered", map[string]interface{}{
		"request": req.Key,
		"seller":  req.Seller,
		"buyer":   req.Buyer,
	})
	b.followUp(ctx, req.Seller, true)
}

// discardOffer drops the request without telling the buyer.
func (b *Broker) discardOffer(ctx context.Context, req *store.PendingRequest) {
	b.deleteRequest(ctx, req.Key)
	b.saveRequests(ctx)
	b.send(ctx, req.Seller, msgResponseGone)
	logger.InfoCF("broker", "Offer discarded", map[string]interface{}{
		"request": req.Key,
		"seller":  req.Seller,
	})
	b.followUp(ctx, req.Seller, false)
}

// cancelDecision is "cancel" inside the offer exchange: an edit falls back to
// the previous draft, a draft is discarded.
func (b *Broker) cancelDecision(ctx context.Context, seller bus.Address) error {
	req, ok := b.store.Oldest(seller, (*store.PendingRequest).Deciding)
	if !ok {
		b.send(ctx, seller, i18n.T(b.lang(seller), i18n.KeyNothingToStop))
		return nil
	}
	if req.Confirmation == store.ConfirmAwaitingEdit {
		req.Confirmation = store.ConfirmAwaitingDecision
		b.saveRequests(ctx)
		b.resumeDraft(ctx, req)
		return nil
	}
	b.discardOffer(ctx, req)
	return nil
}

// followUp points the seller at the next open request, if any.
func (b *Broker) followUp(ctx context.Context, seller bus.Address, delivered bool) {
	remaining := b.store.RequestsForSeller(seller)
	if delivered {
		if len(remaining) == 0 {
			b.send(ctx, seller, msgAllAnswered)
			return
		}
		b.send(ctx, seller, i18n.Tf(b.lang(seller), i18n.KeyOfferDelivered, len(remaining)))
	}
	if len(remaining) == 0 {
		return
	}

	next := remaining[0]
	if next.Deciding() {
		b.resumeDraft(ctx, next)
		return
	}
	b.send(ctx, seller, PendingRequestText(next, 1, "Next Pending Buyer Request", "next in line"))
	b.sendMedia(ctx, seller, b.imagePath(next.Payload.ImageID), msgProductImage)
}

// resumeDraft shows the seller where their open draft stands.
func (b *Broker) resumeDraft(ctx context.Context, req *store.PendingRequest) {
	if req.Confirmation == store.ConfirmAwaitingEdit {
		b.send(ctx, req.Seller, msgEditResponse)
		return
	}
	shop := ""
	if s, ok := b.store.VerifiedSeller(req.Seller); ok {
		shop = s.Shop
	}
	b.send(ctx, req.Seller, ConfirmOfferText(req.Payload.Product, req.FormattedReply, shop))
}
