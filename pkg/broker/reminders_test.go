package broker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bizzbazzar/bazaar/pkg/bus"
	"github.com/bizzbazzar/bazaar/pkg/catalog"
	"github.com/bizzbazzar/bazaar/pkg/store"
)

func TestReminderFiresOnce(t *testing.T) {
	h := newTestBroker(t)
	ctx := context.Background()
	seller := h.addSeller("s1", "Volt House", catalog.Electricals)
	req := h.addRequest(seller, h.addBuyer("b1"), "LED Bulb")

	if at := h.sched.tasks[req.Key]; !at.Equal(h.now.Add(2 * time.Hour)) {
		t.Fatalf("reminder scheduled at %v", at)
	}

	h.sched.handler(ctx, req.Key)
	if !req.ReminderSent || !h.out.received(seller, "Reminder") {
		t.Fatal("reminder not delivered")
	}
	sent := len(h.out.to(seller))
	h.sched.handler(ctx, req.Key)
	if len(h.out.to(seller)) != sent {
		t.Fatal("reminder delivered twice")
	}
}

func TestReminderSkipsAnsweredPausedAndMissing(t *testing.T) {
	h := newTestBroker(t)
	ctx := context.Background()
	seller := h.addSeller("s1", "Volt House", catalog.Electricals)
	buyer := h.addBuyer("b1")

	drafted := h.addRequest(seller, buyer, "LED Bulb")
	drafted.Confirmation = store.ConfirmAwaitingDecision
	h.sched.handler(ctx, drafted.Key)

	h.now = h.now.Add(time.Second)
	waiting := h.addRequest(seller, buyer, "Tube light")
	h.seller(seller).Paused = true
	h.sched.handler(ctx, waiting.Key)

	h.sched.handler(ctx, "gone_b1_1")

	if len(h.out.to(seller)) != 0 {
		t.Fatalf("unexpected reminder: %q", h.out.last(seller))
	}
	if drafted.ReminderSent || waiting.ReminderSent {
		t.Fatal("reminder flag set without a reminder")
	}
}

func TestSweepExpiresRequestsAfterTTL(t *testing.T) {
	h := newTestBroker(t)
	ctx := context.Background()
	seller := h.addSeller("s1", "Volt House", catalog.Electricals)
	created := h.now
	req := h.addRequest(seller, h.addBuyer("b1"), "LED Bulb")

	report := h.b.Sweep(ctx, created.Add(23*time.Hour+59*time.Minute))
	if report.Expired != 0 {
		t.Fatal("request expired early")
	}
	if _, ok := h.st.Request(req.Key); !ok {
		t.Fatal("request should survive until 24h")
	}

	report = h.b.Sweep(ctx, created.Add(24*time.Hour))
	if report.Expired != 1 {
		t.Fatalf("expired = %d, want 1", report.Expired)
	}
	if _, ok := h.st.Request(req.Key); ok {
		t.Fatal("request should be gone after 24h")
	}
	if _, ok := h.sched.tasks[req.Key]; ok {
		t.Fatal("reminder of the expired request should be cancelled")
	}
	if !h.out.received(seller, "has expired") {
		t.Fatal("seller should be told about the expiry")
	}

	again := h.b.Sweep(ctx, created.Add(25*time.Hour))
	if again.Expired != 0 || again.Orphans != 0 {
		t.Fatalf("second sweep changed state: %+v", again)
	}
}

func TestSweepCancelsOrphanedReminders(t *testing.T) {
	h := newTestBroker(t)
	ctx := context.Background()
	h.sched.tasks["s1_b1_1"] = h.now.Add(time.Hour)

	report := h.b.Sweep(ctx, h.now)
	if report.Orphans != 1 || len(h.sched.tasks) != 0 {
		t.Fatalf("orphan not cancelled: %+v", report)
	}
}

func TestSweepPrunesIdleSessions(t *testing.T) {
	h := newTestBroker(t)
	ctx := context.Background()
	seller := bus.Address("s9@telegram")
	buyer := h.addBuyer("b1")

	h.say(seller, "join seller")
	h.say(seller, "Volt House")
	h.say(buyer, "start")

	report := h.b.Sweep(ctx, h.now.Add(31*time.Minute))
	if report.Intakes != 1 || report.Registrations != 1 {
		t.Fatalf("sweep report = %+v", report)
	}
	if _, coll, ok := h.st.Seller(seller); !ok || coll != store.Incomplete {
		t.Fatal("abandoned registration should be kept as incomplete")
	}
	if _, ok := h.b.sessions.Intake(buyer); ok {
		t.Fatal("idle intake should be dropped")
	}
}

func TestSweepPrunesUnusedImages(t *testing.T) {
	h := newTestBroker(t)
	ctx := context.Background()
	seller := h.addSeller("s1", "Volt House", catalog.Electricals)
	buyer := h.addBuyer("b1")

	dir := t.TempDir()
	var ids []string
	for _, name := range []string{"kept.png", "stale.png"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("img"), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		rec, err := h.b.images.SaveFromLocalFile(buyer, path)
		if err != nil {
			t.Fatalf("SaveFromLocalFile: %v", err)
		}
		ids = append(ids, rec.ID)
	}
	stored := time.Now()
	h.now = stored.Add(2 * time.Hour)
	req := h.addRequest(seller, buyer, "LED Bulb")
	req.Payload.ImageID = ids[0]

	// Both images are older than the TTL; the request is not.
	report := h.b.Sweep(ctx, stored.Add(25*time.Hour))
	if report.Expired != 0 {
		t.Fatal("request should still be open")
	}
	if report.Images != 1 {
		t.Fatalf("pruned %d images, want 1", report.Images)
	}
	if h.b.images.Path(ids[1]) != "" {
		t.Fatal("unused image survived")
	}
	if h.b.images.Path(ids[0]) == "" {
		t.Fatal("image in use was pruned")
	}
}

func TestSweepClosesIdleDashboard(t *testing.T) {
	h := newTestBroker(t)
	ctx := context.Background()
	seller := h.addSeller("s1", "Volt House", catalog.Electricals)

	h.say(seller, "join seller")
	if len(h.b.qualifiedSellers(catalog.Electricals)) != 0 {
		t.Fatal("a seller in the dashboard is not routed")
	}

	if report := h.b.Sweep(ctx, h.now.Add(10*time.Minute)); report.Dashboards != 0 {
		t.Fatal("active dashboard closed early")
	}
	h.now = h.now.Add(20 * time.Minute)
	h.say(seller, "1")
	if report := h.b.Sweep(ctx, h.now.Add(29*time.Minute)); report.Dashboards != 0 {
		t.Fatal("dashboard activity should restart the idle clock")
	}

	report := h.b.Sweep(ctx, h.now.Add(48*time.Hour))
	if report.Dashboards != 1 || h.seller(seller).Stage != store.StageDone {
		t.Fatalf("idle dashboard left open: %+v stage %s", report, h.seller(seller).Stage)
	}
	if got := h.b.qualifiedSellers(catalog.Electricals); len(got) != 1 || got[0].Address != seller {
		t.Fatalf("seller not routed after the sweep: %v", got)
	}
	if again := h.b.Sweep(ctx, h.now.Add(49*time.Hour)); again.Dashboards != 0 {
		t.Fatal("second sweep closed a dashboard again")
	}
}
