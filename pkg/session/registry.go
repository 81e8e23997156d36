package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/bizzbazzar/bazaar/pkg/bus"
	"github.com/bizzbazzar/bazaar/pkg/store"
)

// SellerView is the part of the store the registry consults to resolve flows
// that live on persisted records.
type SellerView interface {
	VerifiedSeller(addr bus.Address) (*store.Seller, bool)
	Oldest(seller bus.Address, keep func(*store.PendingRequest) bool) (*store.PendingRequest, bool)
}

// Registry holds the ephemeral dialogue state of every party.
type Registry struct {
	mu            sync.Mutex
	sellers       SellerView
	intakes       map[bus.Address]*Intake
	registrations map[bus.Address]*Registration
	languageMenu  map[bus.Address]time.Time
}

func NewRegistry(sellers SellerView) *Registry {
	return &Registry{
		sellers:       sellers,
		intakes:       map[bus.Address]*Intake{},
		registrations: map[bus.Address]*Registration{},
		languageMenu:  map[bus.Address]time.Time{},
	}
}

// Resolve returns the flow addr is currently in.
func (r *Registry) Resolve(addr bus.Address) Flow {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(addr)
}

func (r *Registry) resolveLocked(addr bus.Address) Flow {
	if _, ok := r.intakes[addr]; ok {
		return FlowBuyerIntake
	}
	if _, ok := r.registrations[addr]; ok {
		return FlowSellerRegistration
	}
	seller, ok := r.sellers.VerifiedSeller(addr)
	if !ok {
		return FlowNone
	}
	if seller.Stage.Managing() {
		return FlowSellerCategoryManagement
	}
	if _, deciding := r.sellers.Oldest(addr, (*store.PendingRequest).Deciding); deciding {
		return FlowSellerReplyDecision
	}
	return FlowNone
}

// BeginIntake opens a buyer intake at stage. It fails with ErrFlowActive
// while addr is in any other flow.
func (r *Registry) BeginIntake(addr bus.Address, stage Stage, firstTime bool, now time.Time) (*Intake, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if flow := r.resolveLocked(addr); flow != FlowNone {
		return nil, fmt.Errorf("%w: %s", ErrFlowActive, flow)
	}
	in := &Intake{
		Buyer:     addr,
		Stage:     stage,
		FirstTime: firstTime,
		StartedAt: now,
		UpdatedAt: now,
	}
	r.intakes[addr] = in
	return in, nil
}

func (r *Registry) Intake(addr bus.Address) (*Intake, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.intakes[addr]
	return in, ok
}

func (r *Registry) EndIntake(addr bus.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.intakes, addr)
}

// BeginRegistration opens a seller sign-up. It fails with ErrFlowActive
// while addr is in any other flow.
func (r *Registry) BeginRegistration(addr bus.Address, now time.Time) (*Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if flow := r.resolveLocked(addr); flow != FlowNone {
		return nil, fmt.Errorf("%w: %s", ErrFlowActive, flow)
	}
	reg := &Registration{
		Seller:    addr,
		Stage:     store.StageAwaitingShopName,
		StartedAt: now,
		UpdatedAt: now,
	}
	r.registrations[addr] = reg
	return reg, nil
}

func (r *Registry) Registration(addr bus.Address) (*Registration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.registrations[addr]
	return reg, ok
}

func (r *Registry) EndRegistration(addr bus.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.registrations, addr)
}

// IntakeImages lists the image ids attached to open intakes.
func (r *Registry) IntakeImages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, in := range r.intakes {
		if in.ImageID != "" {
			ids = append(ids, in.ImageID)
		}
	}
	return ids
}

// Touch records activity so the session survives the next Prune.
func (r *Registry) Touch(addr bus.Address, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if in, ok := r.intakes[addr]; ok {
		in.UpdatedAt = now
	}
	if reg, ok := r.registrations[addr]; ok {
		reg.UpdatedAt = now
	}
}

// OfferLanguageMenu remembers that addr was just shown the language menu.
func (r *Registry) OfferLanguageMenu(addr bus.Address, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.languageMenu[addr] = now
}

// TakeLanguageMenu reports whether addr has an open language menu and closes it.
func (r *Registry) TakeLanguageMenu(addr bus.Address) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.languageMenu[addr]
	delete(r.languageMenu, addr)
	return ok
}

// Pruned lists the sessions removed by Prune.
type Pruned struct {
	Intakes       []*Intake
	Registrations []*Registration
}

// Prune drops sessions idle for longer than idle.
func (r *Registry) Prune(now time.Time, idle time.Duration) Pruned {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out Pruned
	for addr, in := range r.intakes {
		if now.Sub(in.UpdatedAt) > idle {
			out.Intakes = append(out.Intakes, in)
			delete(r.intakes, addr)
		}
	}
	for addr, reg := range r.registrations {
		if now.Sub(reg.UpdatedAt) > idle {
			out.Registrations = append(out.Registrations, reg)
			delete(r.registrations, addr)
		}
	}
	for addr, at := range r.languageMenu {
		if now.Sub(at) > idle {
			delete(r.languageMenu, addr)
		}
	}
	return out
}
