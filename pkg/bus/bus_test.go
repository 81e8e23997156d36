package bus

import (
	"context"
	"testing"
	"time"
)

func TestAddressParts(t *testing.T) {
	a := NewAddress("telegram", "5521")
	if a != "5521@telegram" {
		t.Fatalf("address = %q", a)
	}
	if a.LocalID() != "5521" || a.Channel() != "telegram" {
		t.Fatalf("split = %q / %q", a.LocalID(), a.Channel())
	}
	if Address("bare").LocalID() != "bare" || Address("bare").Channel() != "" {
		t.Fatal("bare address should have no channel")
	}
}

func TestMessageBusRoundTrip(t *testing.T) {
	mb := NewMessageBus()
	mb.PublishInbound(InboundMessage{Channel: "console", ChatID: "alice", Content: "start"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := mb.ConsumeInbound(ctx)
	if !ok {
		t.Fatal("expected a message")
	}
	if msg.From() != "alice@console" || msg.Content != "start" {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestMessageBusClose(t *testing.T) {
	mb := NewMessageBus()
	mb.Close()
	mb.Close()
	mb.PublishInbound(InboundMessage{Content: "dropped"})
	if _, ok := mb.ConsumeInbound(context.Background()); ok {
		t.Fatal("closed bus should report no message")
	}
}

func TestConsumeInboundHonoursContext(t *testing.T) {
	mb := NewMessageBus()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := mb.ConsumeInbound(ctx); ok {
		t.Fatal("cancelled context should stop consumption")
	}
}
