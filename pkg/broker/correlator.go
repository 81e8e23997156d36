package broker

import (
	"strings"

	"github.com/bizzbazzar/bazaar/pkg/bus"
	"github.com/bizzbazzar/bazaar/pkg/store"
)

// correlate finds the pending request a seller message answers. quoted is
// true when the message replied to a request the broker sent.
//
// Without a usable quote the seller's oldest request wins, whichever buyer it
// belongs to. Sellers are asked to reply by quoting for that reason.
func (b *Broker) correlate(seller bus.Address, quote *bus.Quote) (req *store.PendingRequest, quoted bool) {
	if quote != nil && HasRequestMarker(quote.Content) {
		if buyerID := QuotedBuyerID(quote.Content); buyerID != "" {
			if req, ok := b.quotedRequest(seller, buyerID, QuotedProduct(quote.Content)); ok {
				return req, true
			}
		}
	}
	if req, ok := b.store.Oldest(seller, (*store.PendingRequest).Deciding); ok {
		return req, false
	}
	if req, ok := b.store.Oldest(seller, nil); ok {
		return req, false
	}
	return nil, false
}

// quotedRequest picks the oldest request of seller for the buyer, preferring
// one whose product matches the quoted one.
func (b *Broker) quotedRequest(seller bus.Address, buyerID, product string) (*store.PendingRequest, bool) {
	forBuyer := func(r *store.PendingRequest) bool {
		return r.Buyer.LocalID() == buyerID || r.Buyer.String() == buyerID
	}
	if product != "" {
		match, ok := b.store.Oldest(seller, func(r *store.PendingRequest) bool {
			return forBuyer(r) && strings.EqualFold(strings.TrimSpace(r.Payload.Product), product)
		})
		if ok {
			return match, true
		}
	}
	return b.store.Oldest(seller, forBuyer)
}
