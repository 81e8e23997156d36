// Package broker runs the marketplace dialogues: buyer intake, seller
// registration, request fan-out, reply correlation and the offer exchange.
//
// Every inbound message, reminder and sweep runs under one mutex, so handlers
// see the collections exactly as the previous event left them.
package broker

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bizzbazzar/bazaar/pkg/attachments"
	"github.com/bizzbazzar/bazaar/pkg/bus"
	"github.com/bizzbazzar/bazaar/pkg/catalog"
	"github.com/bizzbazzar/bazaar/pkg/classifier"
	"github.com/bizzbazzar/bazaar/pkg/config"
	"github.com/bizzbazzar/bazaar/pkg/i18n"
	"github.com/bizzbazzar/bazaar/pkg/ledger"
	"github.com/bizzbazzar/bazaar/pkg/logger"
	"github.com/bizzbazzar/bazaar/pkg/scheduler"
	"github.com/bizzbazzar/bazaar/pkg/session"
	"github.com/bizzbazzar/bazaar/pkg/store"
)

// Outbox delivers outbound messages. A failed send is reported, never retried.
type Outbox interface {
	Send(ctx context.Context, msg bus.OutboundMessage) error
}

type Options struct {
	Admins          []string
	SupportContacts []string
	ReminderDelay   time.Duration
	RequestTTL      time.Duration
	SessionIdle     time.Duration
	// Broadcast maps a category slug to its broadcast channel address.
	Broadcast   map[string]string
	BuyerGuide  string
	SellerGuide string
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Admins:          cfg.Broker.Admins,
		SupportContacts: cfg.Broker.SupportContacts,
		ReminderDelay:   cfg.ReminderDelay(),
		RequestTTL:      cfg.RequestTTL(),
		SessionIdle:     cfg.SessionIdle(),
		Broadcast:       cfg.Broadcast.Channels,
		BuyerGuide:      cfg.Broker.BuyerGuide,
		SellerGuide:     cfg.Broker.SellerGuide,
	}
}

type Deps struct {
	Store      *store.Store
	Classifier classifier.Classifier
	Scheduler  scheduler.Scheduler
	Outbox     Outbox
	// Ledger and Images are optional.
	Ledger *ledger.Ledger
	Images *attachments.Store
}

type Broker struct {
	mu         sync.Mutex
	store      *store.Store
	sessions   *session.Registry
	classifier classifier.Classifier
	scheduler  scheduler.Scheduler
	out        Outbox
	ledger     *ledger.Ledger
	images     *attachments.Store
	opts       Options
	now        func() time.Time
	newID      func() string
}

func New(deps Deps, opts Options) *Broker {
	if opts.ReminderDelay <= 0 {
		opts.ReminderDelay = 2 * time.Hour
	}
	if opts.RequestTTL <= 0 {
		opts.RequestTTL = 24 * time.Hour
	}
	if opts.SessionIdle <= 0 {
		opts.SessionIdle = 30 * time.Minute
	}
	if deps.Classifier == nil {
		deps.Classifier = classifier.Disabled{}
	}
	return &Broker{
		store:      deps.Store,
		sessions:   session.NewRegistry(deps.Store),
		classifier: deps.Classifier,
		scheduler:  deps.Scheduler,
		out:        deps.Outbox,
		ledger:     deps.Ledger,
		images:     deps.Images,
		opts:       opts,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Start hands reminders to the broker and re-arms reminders that were lost
// while the process was down.
func (b *Broker) Start(ctx context.Context) error {
	if err := b.scheduler.Start(ctx, b.handleReminder); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	scheduled, err := b.scheduler.Scheduled(ctx)
	if err != nil {
		return fmt.Errorf("list scheduled reminders: %w", err)
	}
	armed := make(map[string]bool, len(scheduled))
	for _, id := range scheduled {
		armed[id] = true
	}
	rearmed := 0
	for _, req := range b.store.Requests() {
		if armed[req.Key] || req.ReminderSent || req.Confirmation != store.ConfirmNone {
			continue
		}
		b.scheduleReminder(ctx, req)
		rearmed++
	}
	logger.InfoCF("broker", "Broker started", map[string]interface{}{
		"requests": len(b.store.Requests()),
		"rearmed":  rearmed,
	})
	return nil
}

// Run consumes the bus until ctx is done or the bus is closed. It returns
// ctx's error, or nil after a close.
func (b *Broker) Run(ctx context.Context, mb *bus.MessageBus) error {
	for {
		msg, ok := mb.ConsumeInbound(ctx)
		if !ok {
			return ctx.Err()
		}
		b.Handle(ctx, msg)
	}
}

// Handle processes one inbound message to completion.
func (b *Broker) Handle(ctx context.Context, msg bus.InboundMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("broker", "Handler panic", map[string]interface{}{
				"from":  msg.From(),
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			})
			b.apologize(ctx, msg)
		}
	}()

	if err := b.dispatch(ctx, msg); err != nil {
		logger.ErrorCF("broker", "Failed to handle message", map[string]interface{}{
			"from":  msg.From(),
			"error": err.Error(),
		})
		b.apologize(ctx, msg)
	}
}

func (b *Broker) apologize(ctx context.Context, msg bus.InboundMessage) {
	if msg.IsGroup {
		return
	}
	from := msg.From()
	b.send(ctx, from, i18n.T(b.lang(from), i18n.KeyApology))
}

func (b *Broker) lang(addr bus.Address) i18n.Lang {
	return i18n.ParseLang(b.store.Language(addr))
}

// send delivers text and logs a failure. It reports whether the send succeeded.
func (b *Broker) send(ctx context.Context, to bus.Address, text string) bool {
	return b.deliver(ctx, bus.OutboundMessage{To: to, Content: text})
}

func (b *Broker) sendMedia(ctx context.Context, to bus.Address, path, caption string) bool {
	if path == "" {
		return false
	}
	return b.deliver(ctx, bus.OutboundMessage{To: to, Content: caption, Media: []string{path}})
}

func (b *Broker) deliver(ctx context.Context, msg bus.OutboundMessage) bool {
	if msg.To == "" {
		return false
	}
	if err := b.out.Send(ctx, msg); err != nil {
		logger.WarnCF("broker", "Send failed", map[string]interface{}{
			"to":    msg.To,
			"media": len(msg.Media),
			"error": err.Error(),
		})
		return false
	}
	return true
}

// sendGuide sends an optional guide file when one is configured and present.
func (b *Broker) sendGuide(ctx context.Context, to bus.Address, path, caption string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		logger.WarnCF("broker", "Guide media missing", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return
	}
	b.sendMedia(ctx, to, path, caption)
}

// broadcastAddress resolves the channel for c, falling back to its group.
func (b *Broker) broadcastAddress(c catalog.Category) bus.Address {
	if addr := strings.TrimSpace(b.opts.Broadcast[string(c)]); addr != "" {
		return bus.Address(addr)
	}
	return bus.Address(strings.TrimSpace(b.opts.Broadcast[string(catalog.Group(c))]))
}

func (b *Broker) isAdmin(addr bus.Address) bool {
	for _, a := range b.opts.Admins {
		a = strings.TrimSpace(a)
		if a != "" && (a == addr.String() || a == addr.LocalID()) {
			return true
		}
	}
	return false
}

// adminAddresses resolves the admin list; bare ids live on channel.
func (b *Broker) adminAddresses(channel string) []bus.Address {
	var out []bus.Address
	for _, a := range b.opts.Admins {
		a = strings.TrimSpace(a)
		switch {
		case a == "":
		case strings.Contains(a, "@"):
			out = append(out, bus.Address(a))
		default:
			out = append(out, bus.NewAddress(channel, a))
		}
	}
	return out
}

func (b *Broker) imagePath(id string) string {
	if b.images == nil || id == "" {
		return ""
	}
	return b.images.Path(id)
}

func (b *Broker) saveSellers(ctx context.Context) {
	if err := b.store.SaveSellers(ctx); err != nil {
		logger.ErrorCF("broker", "Failed to save sellers", map[string]interface{}{"error": err.Error()})
	}
}

func (b *Broker) saveBuyers(ctx context.Context) {
	if err := b.store.SaveBuyers(ctx); err != nil {
		logger.ErrorCF("broker", "Failed to save buyers", map[string]interface{}{"error": err.Error()})
	}
}

func (b *Broker) saveRequests(ctx context.Context) {
	if err := b.store.SaveRequests(ctx); err != nil {
		logger.ErrorCF("broker", "Failed to save pending requests", map[string]interface{}{"error": err.Error()})
	}
}

func (b *Broker) saveFirstInteractions(ctx context.Context) {
	if err := b.store.SaveFirstInteractions(ctx); err != nil {
		logger.ErrorCF("broker", "Failed to save first interactions", map[string]interface{}{"error": err.Error()})
	}
}
