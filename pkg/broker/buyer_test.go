package broker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bizzbazzar/bazaar/pkg/bus"
	"github.com/bizzbazzar/bazaar/pkg/catalog"
	"github.com/bizzbazzar/bazaar/pkg/classifier"
	"github.com/bizzbazzar/bazaar/pkg/session"
	"github.com/bizzbazzar/bazaar/pkg/store"
)

func (h *harness) intake(t *testing.T, addr bus.Address) *session.Intake {
	t.Helper()
	in, ok := h.b.sessions.Intake(addr)
	if !ok {
		t.Fatalf("no intake open for %s", addr)
	}
	return in
}

func TestFirstTimeBuyerWelcomeAndRequest(t *testing.T) {
	h := newTestBroker(t)
	h.addSeller("s1", "Volt House", catalog.Electricals)
	buyer := bus.Address("b1@telegram")

	h.say(buyer, "hi")
	if got := len(h.out.to(buyer)); got != 4 {
		t.Fatalf("welcome sent %d messages, want 4", got)
	}
	fi, ok := h.st.FirstInteraction(buyer)
	if !ok || !fi.AwaitingProductInput {
		t.Fatal("first interaction should await a product name")
	}

	h.say(buyer, "LED Bulb")
	in := h.intake(t, buyer)
	if in.Stage != session.StageQuantity || in.Product != "LED Bulb" || !in.FirstTime {
		t.Fatalf("unexpected intake %+v", in)
	}
	if fi.AwaitingProductInput {
		t.Fatal("product capture should clear the first-interaction flag")
	}

	for _, text := range []string{"2", "skip", "skip"} {
		h.say(buyer, text)
	}
	if in.Stage != session.StageConfirm || in.Category != catalog.Electricals {
		t.Fatalf("expected confirm with electricals, got %s %s", in.Stage, in.Category)
	}
	h.say(buyer, "1")

	if _, ok := h.b.sessions.Intake(buyer); ok {
		t.Fatal("intake should close after routing")
	}
	b, ok := h.st.Buyer(buyer)
	if !ok || !b.FirstRequestCompleted || b.FirstRequestCompletedAt == nil {
		t.Fatalf("first-time buyer record missing: %+v", b)
	}

	h.out.reset()
	h.say(buyer, "hello?")
	if !h.out.received(buyer, "being processed") {
		t.Fatalf("expected processing notice, got %q", h.out.last(buyer))
	}
}

func TestFirstRequestNoteIsSentOnce(t *testing.T) {
	h := newTestBroker(t)
	buyer := h.addBuyer("b1")
	b, _ := h.st.Buyer(buyer)
	b.FirstRequestCompleted = true

	h.say(buyer, "thanks")
	if !h.out.received(buyer, "first request") {
		t.Fatalf("expected first request note, got %q", h.out.last(buyer))
	}
	if !b.FirstRequestAcknowledged {
		t.Fatal("note should be acknowledged")
	}
	h.out.reset()
	h.say(buyer, "thanks again")
	if !h.out.received(buyer, "Welcome back") {
		t.Fatalf("expected welcome-back menu, got %q", h.out.last(buyer))
	}
}

func TestBuyerRegistrationIntake(t *testing.T) {
	h := newTestBroker(t)
	buyer := bus.Address("b7@telegram")

	h.say(buyer, "start")
	in := h.intake(t, buyer)
	if in.Stage != session.StageAskName {
		t.Fatalf("stage = %s, want ask_name", in.Stage)
	}

	h.say(buyer, "Priya")
	h.say(buyer, "abc")
	if in.Stage != session.StageAskAge || !h.out.received(buyer, "between 1 and 120") {
		t.Fatalf("invalid age should re-prompt, stage %s", in.Stage)
	}
	h.say(buyer, "130")
	if in.Stage != session.StageAskAge {
		t.Fatal("age above 120 accepted")
	}
	h.say(buyer, "28")
	if in.Stage != session.StageAskLocation {
		t.Fatalf("stage = %s, want ask_location", in.Stage)
	}

	h.say(buyer, "Anna Nagar")
	if in.Stage != session.StageAskLocation {
		t.Fatal("typed address should not count as a shared location")
	}
	h.shareLocation(buyer, buyerPoint)
	if in.Stage != session.StageProduct {
		t.Fatalf("stage = %s, want product", in.Stage)
	}
	b, ok := h.st.Buyer(buyer)
	if !ok || b.Name != "Priya" || b.Age != 28 || b.Location == nil {
		t.Fatalf("buyer not registered: %+v", b)
	}
}

func TestIntakeBackAndSkip(t *testing.T) {
	h := newTestBroker(t)
	buyer := h.addBuyer("b1")

	h.say(buyer, "start")
	in := h.intake(t, buyer)
	h.say(buyer, "0")
	if in.Stage != session.StageProduct || !h.out.received(buyer, "first step") {
		t.Fatal("0 on the first step should explain and stay")
	}
	h.say(buyer, "x")
	if in.Stage != session.StageProduct {
		t.Fatal("one-letter product accepted")
	}
	h.say(buyer, "Olive Oil")
	h.say(buyer, "Figaro")
	h.say(buyer, "0")
	if in.Stage != session.StageBrand {
		t.Fatalf("back from quantity landed on %s", in.Stage)
	}
	h.say(buyer, "skip")
	if in.Brand != "" || in.Stage != session.StageQuantity {
		t.Fatalf("skip should clear the brand, got %q at %s", in.Brand, in.Stage)
	}
	h.say(buyer, "1 litre")
	h.say(buyer, "cold pressed\nglass bottle")
	if in.Requirements != "• cold pressed\n• glass bottle" {
		t.Fatalf("requirements = %q", in.Requirements)
	}
	if in.Stage != session.StageImage {
		t.Fatalf("stage = %s, want image", in.Stage)
	}
	h.say(buyer, "here you go")
	if in.Stage != session.StageImage || !h.out.received(buyer, "send your product image") {
		t.Fatal("text at the image step should ask for an image")
	}
}

func TestClassifierFailureFallsBackToMenu(t *testing.T) {
	h := newTestBroker(t)
	buyer := h.addBuyer("b1")
	h.cls.err = classifier.ErrUnavailable
	h.cls.category = catalog.Unknown

	for _, text := range []string{"start", "Cricket bat", "skip", "skip", "skip", "skip"} {
		h.say(buyer, text)
	}
	in := h.intake(t, buyer)
	if in.Stage != session.StageCategory {
		t.Fatalf("stage = %s, want manual category", in.Stage)
	}

	h.say(buyer, "17")
	if in.Stage != session.StageCategory {
		t.Fatal("supermarket is not offered to buyers")
	}
	h.say(buyer, "9")
	if in.Stage != session.StageConfirm || in.Category != catalog.Sports {
		t.Fatalf("expected confirm with sports, got %s %s", in.Stage, in.Category)
	}
}

func TestEditSubFlow(t *testing.T) {
	h := newTestBroker(t)
	buyer := h.addBuyer("b1")
	for _, text := range []string{"start", "LED Bulb", "skip", "skip", "skip", "skip"} {
		h.say(buyer, text)
	}
	in := h.intake(t, buyer)

	h.say(buyer, "2")
	if in.Stage != session.StageEditChoice {
		t.Fatalf("stage = %s, want edit_choice", in.Stage)
	}
	h.say(buyer, "9")
	if in.Stage != session.StageEditChoice {
		t.Fatal("out of range edit choice accepted")
	}
	h.say(buyer, "3")
	h.say(buyer, "5 pieces")
	if in.Stage != session.StageConfirm || in.Quantity != "5 pieces" {
		t.Fatalf("quantity edit: %s %q", in.Stage, in.Quantity)
	}

	h.cls.category = catalog.Unknown
	h.say(buyer, "edit")
	h.say(buyer, "1")
	h.say(buyer, "Tube light holder")
	if in.Stage != session.StageEditCategory {
		t.Fatalf("unclassified product edit should ask for a category, got %s", in.Stage)
	}
	h.say(buyer, "15")
	if in.Stage != session.StageConfirm || in.Product != "Tube light holder" || in.Category != catalog.Electricals {
		t.Fatalf("product edit: %+v", in)
	}

	h.say(buyer, "2")
	h.say(buyer, "7")
	if in.Stage != session.StageProduct || in.Product != "" || in.Quantity != "" {
		t.Fatalf("start over should reset the request: %+v", in)
	}
}

func TestIntakeImageIsStored(t *testing.T) {
	h := newTestBroker(t)
	buyer := h.addBuyer("b1")
	h.addSeller("s1", "Volt House", catalog.Electricals)

	photo := filepath.Join(t.TempDir(), "bulb.png")
	if err := os.WriteFile(photo, []byte("\x89PNG fake"), 0644); err != nil {
		t.Fatalf("write photo: %v", err)
	}
	doc := filepath.Join(t.TempDir(), "quote.pdf")
	if err := os.WriteFile(doc, []byte("%PDF"), 0644); err != nil {
		t.Fatalf("write doc: %v", err)
	}

	for _, text := range []string{"start", "LED Bulb", "skip", "skip", "skip"} {
		h.say(buyer, text)
	}
	in := h.intake(t, buyer)

	msg := inbound(buyer, "")
	msg.Media = []string{doc}
	h.handle(msg)
	if in.Stage != session.StageImage || !h.out.received(buyer, "image file only") {
		t.Fatal("a document should be rejected")
	}

	msg.Media = []string{photo}
	h.handle(msg)
	if in.ImageID == "" || in.Stage != session.StageConfirm {
		t.Fatalf("image not stored: id=%q stage=%s", in.ImageID, in.Stage)
	}
	stored := h.b.images.Path(in.ImageID)
	if stored == "" {
		t.Fatal("stored image has no path")
	}

	h.out.reset()
	h.say(buyer, "1")
	for _, addr := range []bus.Address{elecChannel, superChannel, "s1@telegram"} {
		var media int
		for _, m := range h.out.to(addr) {
			if len(m.Media) == 1 && m.Media[0] == stored {
				media++
			}
		}
		if media != 1 {
			t.Fatalf("%s received the image %d times, want once", addr, media)
		}
	}
	reqs := h.st.RequestsForBuyer(buyer)
	if len(reqs) != 1 || reqs[0].Payload.ImageID != in.ImageID {
		t.Fatalf("request should carry the image: %+v", reqs)
	}
}

func TestStartDuringOtherFlowIsRejected(t *testing.T) {
	h := newTestBroker(t)
	addr := bus.Address("s9@telegram")
	h.say(addr, "join seller")
	h.out.reset()

	h.say(addr, "start")
	if !h.out.received(addr, "active process") {
		t.Fatalf("expected flow-active guidance, got %q", h.out.last(addr))
	}
	if _, ok := h.b.sessions.Intake(addr); ok {
		t.Fatal("intake opened during registration")
	}
	if _, ok := h.b.sessions.Registration(addr); !ok {
		t.Fatal("registration should survive")
	}
}

func TestCancelIntake(t *testing.T) {
	h := newTestBroker(t)
	buyer := h.addBuyer("b1")
	h.say(buyer, "start")
	h.say(buyer, "LED Bulb")
	h.say(buyer, "cancel")

	if _, ok := h.b.sessions.Intake(buyer); ok {
		t.Fatal("intake should be discarded")
	}
	if len(h.st.Requests()) != 0 {
		t.Fatal("cancelled intake created requests")
	}
	h.out.reset()
	h.say(buyer, "cancel")
	if !h.out.received(buyer, "don't have any active process") {
		t.Fatalf("expected nothing-to-cancel, got %q", h.out.last(buyer))
	}
}

func TestLanguageMenu(t *testing.T) {
	h := newTestBroker(t)
	buyer := h.addBuyer("b1")
	h.say(buyer, "language")
	h.say(buyer, "2")
	if got := h.st.Language(buyer); got != "ta" {
		t.Fatalf("language = %q, want ta", got)
	}
	if h.backend.Writes(store.CollLanguages) != 1 {
		t.Fatal("language preference not saved")
	}

	// Without an open menu, "2" is an ordinary message.
	h.say(buyer, "2")
	if got := h.st.Language(buyer); got != "ta" {
		t.Fatalf("language changed to %q", got)
	}
}

func TestNewIdentityPicksLanguageBeforeWelcome(t *testing.T) {
	h := newTestBroker(t)
	newbie := bus.Address("newbie@telegram")

	h.say(newbie, "language")
	if !h.out.received(newbie, "தமிழ்") {
		t.Fatal("language menu not offered")
	}
	h.out.reset()

	h.say(newbie, "2")
	if got := h.st.Language(newbie); got != "ta" {
		t.Fatalf("language = %q, want ta", got)
	}
	if h.out.received(newbie, "Bizz Bazzar") {
		t.Fatal("menu choice answered with the welcome")
	}
	if _, ok := h.st.FirstInteraction(newbie); ok {
		t.Fatal("menu choice should not start the first interaction")
	}

	h.say(newbie, "hi")
	if !h.out.received(newbie, "வரவேற்கிறோம்") {
		t.Fatal("welcome should follow in the chosen language")
	}
}

func TestFirstTimeBuyerBackFromQuantity(t *testing.T) {
	h := newTestBroker(t)
	buyer := bus.Address("b1@telegram")

	h.say(buyer, "hi")
	h.say(buyer, "LED Bulb")
	in := h.intake(t, buyer)
	h.out.reset()

	h.say(buyer, "0")
	if in.Stage != session.StageProduct || !h.out.received(buyer, "NAME OF THE PRODUCT") {
		t.Fatalf("stage = %s, want product", in.Stage)
	}

	h.say(buyer, "Tube Light")
	if in.Stage != session.StageQuantity || in.Product != "Tube Light" {
		t.Fatalf("renamed product should skip brand again, stage %s", in.Stage)
	}
}
