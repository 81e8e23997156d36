package broker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/bizzbazzar/bazaar/pkg/attachments"
	"github.com/bizzbazzar/bazaar/pkg/bus"
	"github.com/bizzbazzar/bazaar/pkg/catalog"
	"github.com/bizzbazzar/bazaar/pkg/geo"
	"github.com/bizzbazzar/bazaar/pkg/ledger"
	"github.com/bizzbazzar/bazaar/pkg/scheduler"
	"github.com/bizzbazzar/bazaar/pkg/store"
)

type fakeOutbox struct {
	sent   []bus.OutboundMessage
	fail   map[bus.Address]bool
	onSend func(bus.OutboundMessage)
}

func (o *fakeOutbox) Send(_ context.Context, msg bus.OutboundMessage) error {
	if o.fail[msg.To] {
		return errors.New("recipient unreachable")
	}
	o.sent = append(o.sent, msg)
	if o.onSend != nil {
		o.onSend(msg)
	}
	return nil
}

func (o *fakeOutbox) to(addr bus.Address) []bus.OutboundMessage {
	var out []bus.OutboundMessage
	for _, m := range o.sent {
		if m.To == addr {
			out = append(out, m)
		}
	}
	return out
}

func (o *fakeOutbox) last(addr bus.Address) string {
	msgs := o.to(addr)
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Content
}

func (o *fakeOutbox) received(addr bus.Address, substr string) bool {
	for _, m := range o.to(addr) {
		if strings.Contains(m.Content, substr) {
			return true
		}
	}
	return false
}

func (o *fakeOutbox) reset() { o.sent = nil }

// fakeScheduler records tasks and fires nothing on its own.
type fakeScheduler struct {
	tasks   map[string]time.Time
	handler scheduler.Handler
}

func (s *fakeScheduler) Start(_ context.Context, h scheduler.Handler) error {
	s.handler = h
	return nil
}

func (s *fakeScheduler) Schedule(_ context.Context, id string, at time.Time) error {
	s.tasks[id] = at
	return nil
}

func (s *fakeScheduler) Cancel(_ context.Context, id string) error {
	delete(s.tasks, id)
	return nil
}

func (s *fakeScheduler) Scheduled(context.Context) ([]string, error) {
	ids := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *fakeScheduler) Stop() {}

type stubClassifier struct {
	category catalog.Category
	err      error
	panics   bool
}

func (c *stubClassifier) Classify(context.Context, string, string) (catalog.Category, error) {
	if c.panics {
		panic("classifier exploded")
	}
	return c.category, c.err
}

type harness struct {
	b       *Broker
	st      *store.Store
	backend *store.MemoryBackend
	out     *fakeOutbox
	sched   *fakeScheduler
	cls     *stubClassifier
	ledger  *ledger.Ledger
	now     time.Time
}

const (
	elecChannel  = bus.Address("-100elec@telegram")
	superChannel = bus.Address("-100super@telegram")
	admin        = bus.Address("admin1@telegram")
)

var (
	shopPoint  = geo.Point{Lat: 13.0827, Lon: 80.2707}
	buyerPoint = geo.Point{Lat: 13.0674, Lon: 80.2376}
)

func newTestBroker(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	backend := store.NewMemoryBackend()
	st := store.New(backend)
	images, err := attachments.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("attachments.NewStore: %v", err)
	}
	l, err := ledger.Open(ctx, store.NewMemoryBackend())
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}

	h := &harness{
		st:      st,
		backend: backend,
		out:     &fakeOutbox{fail: map[bus.Address]bool{}},
		sched:   &fakeScheduler{tasks: map[string]time.Time{}},
		cls:     &stubClassifier{category: catalog.Electricals},
		ledger:  l,
		now:     time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
	}
	h.b = New(Deps{
		Store:      st,
		Classifier: h.cls,
		Scheduler:  h.sched,
		Outbox:     h.out,
		Ledger:     l,
		Images:     images,
	}, Options{
		Admins:          []string{"admin1"},
		SupportContacts: []string{"+91 90000 00000"},
		Broadcast: map[string]string{
			string(catalog.Electricals): string(elecChannel),
			string(catalog.Supermarket): string(superChannel),
		},
	})
	h.b.now = func() time.Time { return h.now }
	ids := 0
	h.b.newID = func() string {
		ids++
		return fmt.Sprintf("req-%d", ids)
	}
	if err := h.b.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return h
}

func (h *harness) handle(msg bus.InboundMessage) {
	h.b.Handle(context.Background(), msg)
}

func inbound(from bus.Address, text string) bus.InboundMessage {
	return bus.InboundMessage{
		Channel:  from.Channel(),
		SenderID: from.LocalID(),
		ChatID:   from.LocalID(),
		Content:  text,
	}
}

func (h *harness) say(from bus.Address, text string) {
	h.handle(inbound(from, text))
}

func (h *harness) reply(from bus.Address, text, quoted string) {
	msg := inbound(from, text)
	msg.Quoted = &bus.Quote{Content: quoted}
	h.handle(msg)
}

func (h *harness) shareLocation(from bus.Address, p geo.Point) {
	msg := inbound(from, "")
	msg.Location = &p
	h.handle(msg)
}

func (h *harness) addSeller(local, shop string, primary catalog.Category, extra ...catalog.Category) bus.Address {
	addr := bus.NewAddress("telegram", local)
	loc := shopPoint
	h.st.PutSeller(store.Verified, &store.Seller{
		Address:              addr,
		Shop:                 shop,
		Location:             &loc,
		Category:             primary,
		AdditionalCategories: extra,
		Verified:             true,
		Stage:                store.StageDone,
	})
	return addr
}

func (h *harness) addBuyer(local string) bus.Address {
	addr := bus.NewAddress("telegram", local)
	loc := buyerPoint
	h.st.PutBuyer(&store.Buyer{Address: addr, Name: "Priya", Age: 28, Location: &loc, RegisteredAt: h.now})
	return addr
}

// addRequest opens a request as the router would, at the current time.
func (h *harness) addRequest(seller, buyer bus.Address, product string) *store.PendingRequest {
	req := h.st.NewRequest(seller, buyer, h.now)
	req.RequestID = "seed-" + req.Key
	req.Category = catalog.Electricals
	req.Payload = store.Payload{Product: product}
	h.b.scheduleReminder(context.Background(), req)
	return req
}

func (h *harness) seller(addr bus.Address) *store.Seller {
	s, _, ok := h.st.Seller(addr)
	if !ok {
		return nil
	}
	return s
}

func TestParseKeyword(t *testing.T) {
	cases := []struct {
		in   string
		want keyword
		arg  string
	}{
		{"cancel", kwCancel, ""},
		{"  EXIT ", kwCancel, ""},
		{"Cancel   All", kwCancelAll, ""},
		{"pause", kwPause, ""},
		{"Resume", kwResume, ""},
		{"/pending", kwPending, ""},
		{"/pending admin", kwPendingAdmin, ""},
		{"/verify 919800", kwVerify, "919800"},
		{"/verify", kwVerify, ""},
		{"/sellers", kwSellers, ""},
		{"help", kwHelp, ""},
		{"/help", kwHelp, ""},
		{"மொழி", kwLanguage, ""},
		{"lang", kwLanguage, ""},
		{"Start", kwStart, ""},
		{"join seller", kwJoinSeller, ""},
		{"start now", kwNone, ""},
		{"150rs available", kwNone, ""},
		{"", kwNone, ""},
	}
	for _, tc := range cases {
		got, arg := parseKeyword(tc.in)
		if got != tc.want || arg != tc.arg {
			t.Fatalf("parseKeyword(%q) = %v %q, want %v %q", tc.in, got, arg, tc.want, tc.arg)
		}
	}
}

func TestGroupMessagesIgnored(t *testing.T) {
	h := newTestBroker(t)
	msg := inbound(elecChannel, "anyone selling LED bulbs?")
	msg.IsGroup = true
	h.handle(msg)

	if len(h.out.sent) != 0 {
		t.Fatalf("group message produced %d replies", len(h.out.sent))
	}
	if h.st.Known(msg.From()) {
		t.Fatal("group message should not create any record")
	}
}

func TestPanicIsRecoveredWithApology(t *testing.T) {
	h := newTestBroker(t)
	buyer := h.addBuyer("b1")
	h.cls.panics = true

	for _, text := range []string{"start", "LED Bulb", "skip", "skip", "skip", "skip"} {
		h.say(buyer, text)
	}
	if !h.out.received(buyer, "unexpected error") {
		t.Fatalf("expected apology, got %q", h.out.last(buyer))
	}

	// The broker keeps serving after the panic.
	h.cls.panics = false
	h.out.reset()
	h.say(buyer, "cancel")
	if !h.out.received(buyer, "cancelled") {
		t.Fatalf("expected cancel confirmation, got %q", h.out.last(buyer))
	}
}

func TestStartRearmsMissingReminders(t *testing.T) {
	h := newTestBroker(t)
	seller := h.addSeller("s1", "Volt House", catalog.Electricals)
	req := h.st.NewRequest(seller, "b1@telegram", h.now)
	answered := h.st.NewRequest(seller, "b2@telegram", h.now.Add(time.Second))
	answered.Confirmation = store.ConfirmAwaitingDecision

	if err := h.b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	at, ok := h.sched.tasks[req.Key]
	if !ok {
		t.Fatal("unanswered request was not re-armed")
	}
	if !at.Equal(req.CreatedAt.Add(2 * time.Hour)) {
		t.Fatalf("reminder at %v, want %v", at, req.CreatedAt.Add(2*time.Hour))
	}
	if _, ok := h.sched.tasks[answered.Key]; ok {
		t.Fatal("request inside the offer exchange should not get a reminder")
	}
}
