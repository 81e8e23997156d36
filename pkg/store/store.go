// Package store owns the broker's persisted collections. Every collection is
// written back whole on save; there are no partial patches.
//
// Store is not safe for concurrent use. The broker serializes access.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bizzbazzar/bazaar/pkg/bus"
	"github.com/bizzbazzar/bazaar/pkg/logger"
)

const (
	CollSellers           = "sellers"
	CollAwaitingSellers   = "awaiting_sellers"
	CollIncompleteSellers = "incomplete_sellers"
	CollBuyers            = "buyers"
	CollRequests          = "pending_requests"
	CollFirstInteractions = "first_interactions"
	CollLanguages         = "languages"
)

var ErrNotFound = errors.New("not found")

// SellerCollection names one of the three disjoint seller collections.
type SellerCollection int

const (
	Verified SellerCollection = iota
	Awaiting
	Incomplete
)

func (c SellerCollection) String() string {
	switch c {
	case Verified:
		return CollSellers
	case Awaiting:
		return CollAwaitingSellers
	default:
		return CollIncompleteSellers
	}
}

type Store struct {
	backend Backend

	sellers   [3]map[bus.Address]*Seller
	buyers    map[bus.Address]*Buyer
	requests  map[string]*PendingRequest
	first     map[bus.Address]*FirstInteraction
	languages map[bus.Address]string
}

func New(backend Backend) *Store {
	s := &Store{backend: backend}
	s.reset()
	return s
}

func (s *Store) reset() {
	for i := range s.sellers {
		s.sellers[i] = map[bus.Address]*Seller{}
	}
	s.buyers = map[bus.Address]*Buyer{}
	s.requests = map[string]*PendingRequest{}
	s.first = map[bus.Address]*FirstInteraction{}
	s.languages = map[bus.Address]string{}
}

// Load reads every collection from the backend. A collection that cannot be
// read or decoded is logged and left empty while the others still load, and
// the first such error is returned. Startup treats that error as fatal so a
// damaged file is never overwritten by an empty collection.
func (s *Store) Load(ctx context.Context) error {
	s.reset()
	targets := []struct {
		name string
		v    interface{}
	}{
		{CollSellers, &s.sellers[Verified]},
		{CollAwaitingSellers, &s.sellers[Awaiting]},
		{CollIncompleteSellers, &s.sellers[Incomplete]},
		{CollBuyers, &s.buyers},
		{CollRequests, &s.requests},
		{CollFirstInteractions, &s.first},
		{CollLanguages, &s.languages},
	}
	var firstErr error
	for _, t := range targets {
		if _, err := s.backend.Load(ctx, t.name, t.v); err != nil {
			logger.WarnCF("store", "Collection could not be loaded, starting empty", map[string]interface{}{
				"collection": t.name,
				"error":      err.Error(),
			})
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	// A failed decode may leave a nil map behind.
	for i := range s.sellers {
		if s.sellers[i] == nil {
			s.sellers[i] = map[bus.Address]*Seller{}
		}
	}
	if s.buyers == nil {
		s.buyers = map[bus.Address]*Buyer{}
	}
	if s.requests == nil {
		s.requests = map[string]*PendingRequest{}
	}
	if s.first == nil {
		s.first = map[bus.Address]*FirstInteraction{}
	}
	if s.languages == nil {
		s.languages = map[bus.Address]string{}
	}
	s.normalize()

	logger.InfoCF("store", "Collections loaded", map[string]interface{}{
		"sellers":  len(s.sellers[Verified]),
		"awaiting": len(s.sellers[Awaiting]),
		"buyers":   len(s.buyers),
		"requests": len(s.requests),
	})
	return firstErr
}

// normalize repairs state a crash mid-dialogue can leave behind.
func (s *Store) normalize() {
	owner := map[bus.Address]SellerCollection{}
	for _, coll := range []SellerCollection{Verified, Awaiting, Incomplete} {
		for addr, seller := range s.sellers[coll] {
			if prev, dup := owner[addr]; dup {
				// Earlier collections win: verified, then awaiting, then incomplete.
				logger.WarnCF("store", "Seller present in two collections", map[string]interface{}{
					"seller": addr, "kept": prev.String(), "dropped": coll.String(),
				})
				delete(s.sellers[coll], addr)
				continue
			}
			owner[addr] = coll
			seller.Address = addr
			if coll == Verified {
				seller.Verified = true
				if seller.Stage.Managing() || seller.Stage == "" {
					seller.Stage = StageDone
				}
			}
		}
	}
	for key, req := range s.requests {
		if req == nil {
			delete(s.requests, key)
			continue
		}
		req.Key = key
	}
}

// Seller finds addr in any seller collection.
func (s *Store) Seller(addr bus.Address) (*Seller, SellerCollection, bool) {
	for _, coll := range []SellerCollection{Verified, Awaiting, Incomplete} {
		if seller, ok := s.sellers[coll][addr]; ok {
			return seller, coll, true
		}
	}
	return nil, 0, false
}

// VerifiedSeller returns addr only if it is in the verified collection.
func (s *Store) VerifiedSeller(addr bus.Address) (*Seller, bool) {
	seller, ok := s.sellers[Verified][addr]
	return seller, ok
}

// FindSeller resolves id as a full address or a bare local id within coll.
func (s *Store) FindSeller(coll SellerCollection, id string) (*Seller, bool) {
	if seller, ok := s.sellers[coll][bus.Address(id)]; ok {
		return seller, true
	}
	for _, seller := range s.Sellers(coll) {
		if seller.Address.LocalID() == id {
			return seller, true
		}
	}
	return nil, false
}

// PutSeller stores seller in coll and removes it from the other collections.
func (s *Store) PutSeller(coll SellerCollection, seller *Seller) {
	for i := range s.sellers {
		delete(s.sellers[i], seller.Address)
	}
	s.sellers[coll][seller.Address] = seller
}

// Relocate moves addr into coll.
func (s *Store) Relocate(addr bus.Address, coll SellerCollection) (*Seller, error) {
	seller, _, ok := s.Seller(addr)
	if !ok {
		return nil, fmt.Errorf("seller %s: %w", addr, ErrNotFound)
	}
	s.PutSeller(coll, seller)
	return seller, nil
}

func (s *Store) DeleteSeller(addr bus.Address) {
	for i := range s.sellers {
		delete(s.sellers[i], addr)
	}
}

// Sellers lists coll ordered by address.
func (s *Store) Sellers(coll SellerCollection) []*Seller {
	out := make([]*Seller, 0, len(s.sellers[coll]))
	for _, seller := range s.sellers[coll] {
		out = append(out, seller)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// SaveSellers writes all three seller collections.
func (s *Store) SaveSellers(ctx context.Context) error {
	for _, coll := range []SellerCollection{Verified, Awaiting, Incomplete} {
		if err := s.backend.Save(ctx, coll.String(), s.sellers[coll]); err != nil {
			return fmt.Errorf("save %s: %w", coll, err)
		}
	}
	return nil
}

func (s *Store) Buyer(addr bus.Address) (*Buyer, bool) {
	b, ok := s.buyers[addr]
	return b, ok
}

func (s *Store) PutBuyer(b *Buyer) {
	s.buyers[b.Address] = b
}

func (s *Store) SaveBuyers(ctx context.Context) error {
	if err := s.backend.Save(ctx, CollBuyers, s.buyers); err != nil {
		return fmt.Errorf("save %s: %w", CollBuyers, err)
	}
	return nil
}

func (s *Store) FirstInteraction(addr bus.Address) (*FirstInteraction, bool) {
	fi, ok := s.first[addr]
	return fi, ok
}

func (s *Store) PutFirstInteraction(fi *FirstInteraction) {
	s.first[fi.Address] = fi
}

func (s *Store) SaveFirstInteractions(ctx context.Context) error {
	if err := s.backend.Save(ctx, CollFirstInteractions, s.first); err != nil {
		return fmt.Errorf("save %s: %w", CollFirstInteractions, err)
	}
	return nil
}

// Language returns the stored language code for addr, or "".
func (s *Store) Language(addr bus.Address) string {
	return s.languages[addr]
}

func (s *Store) SetLanguage(addr bus.Address, code string) {
	s.languages[addr] = code
}

func (s *Store) SaveLanguages(ctx context.Context) error {
	if err := s.backend.Save(ctx, CollLanguages, s.languages); err != nil {
		return fmt.Errorf("save %s: %w", CollLanguages, err)
	}
	return nil
}

// Known reports whether addr has ever interacted with the broker.
func (s *Store) Known(addr bus.Address) bool {
	if _, ok := s.buyers[addr]; ok {
		return true
	}
	if _, _, ok := s.Seller(addr); ok {
		return true
	}
	_, ok := s.first[addr]
	return ok
}

// NewRequest creates a pending request keyed seller_buyer_<unix ms>. A key
// collision advances the timestamp by one millisecond until it is unique.
func (s *Store) NewRequest(seller, buyer bus.Address, now time.Time) *PendingRequest {
	ts := now
	var key string
	for {
		key = fmt.Sprintf("%s_%s_%d", seller.LocalID(), buyer.LocalID(), ts.UnixMilli())
		if _, taken := s.requests[key]; !taken {
			break
		}
		ts = ts.Add(time.Millisecond)
	}
	req := &PendingRequest{
		Key:       key,
		Seller:    seller,
		Buyer:     buyer,
		CreatedAt: ts,
	}
	s.requests[key] = req
	return req
}

func (s *Store) Request(key string) (*PendingRequest, bool) {
	r, ok := s.requests[key]
	return r, ok
}

func (s *Store) DeleteRequest(key string) bool {
	if _, ok := s.requests[key]; !ok {
		return false
	}
	delete(s.requests, key)
	return true
}

// Requests lists every pending request, oldest first.
func (s *Store) Requests() []*PendingRequest {
	return s.collect(func(*PendingRequest) bool { return true })
}

// RequestsForSeller lists the seller's requests, oldest first.
func (s *Store) RequestsForSeller(seller bus.Address) []*PendingRequest {
	return s.collect(func(r *PendingRequest) bool { return r.Seller == seller })
}

// RequestsForBuyer lists requests fanned out for buyer, oldest first.
func (s *Store) RequestsForBuyer(buyer bus.Address) []*PendingRequest {
	return s.collect(func(r *PendingRequest) bool { return r.Buyer == buyer })
}

// Oldest returns the seller's oldest request matching keep.
func (s *Store) Oldest(seller bus.Address, keep func(*PendingRequest) bool) (*PendingRequest, bool) {
	for _, r := range s.RequestsForSeller(seller) {
		if keep == nil || keep(r) {
			return r, true
		}
	}
	return nil, false
}

// DeleteRequestsForSeller removes every request owned by seller and returns them.
func (s *Store) DeleteRequestsForSeller(seller bus.Address) []*PendingRequest {
	removed := s.RequestsForSeller(seller)
	for _, r := range removed {
		delete(s.requests, r.Key)
	}
	return removed
}

func (s *Store) SaveRequests(ctx context.Context) error {
	if err := s.backend.Save(ctx, CollRequests, s.requests); err != nil {
		return fmt.Errorf("save %s: %w", CollRequests, err)
	}
	return nil
}

func (s *Store) collect(keep func(*PendingRequest) bool) []*PendingRequest {
	var out []*PendingRequest
	for _, r := range s.requests {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func (s *Store) Close() error {
	return s.backend.Close()
}
