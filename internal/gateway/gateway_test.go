package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

// captureAdapter records sends and lets tests inject inbound messages.
type captureAdapter struct {
	platform   string
	handler    MessageHandler
	sent       []*OutboundMessage
	connectErr error
	connected  bool
	closed     bool
}

func (c *captureAdapter) Platform() string { return c.platform }

func (c *captureAdapter) Connect(_ context.Context) error {
	if c.connectErr != nil {
		return c.connectErr
	}
	c.connected = true
	return nil
}

func (c *captureAdapter) Send(_ context.Context, msg *OutboundMessage) error {
	c.sent = append(c.sent, msg)
	return nil
}

func (c *captureAdapter) OnMessage(h MessageHandler) { c.handler = h }

func (c *captureAdapter) Status() AdapterStatus {
	return AdapterStatus{Platform: c.platform, Connected: c.connected}
}

func (c *captureAdapter) Close() error {
	c.closed = true
	return nil
}

func TestRegisterWiresHandler(t *testing.T) {
	gw := New(zap.NewNop())

	var got *InboundMessage
	gw.SetHandler(func(msg *InboundMessage) { got = msg })

	a := &captureAdapter{platform: "slack"}
	gw.Register(a)

	a.handler(&InboundMessage{Platform: "slack", Content: "hello", Timestamp: time.Now()})

	if got == nil {
		t.Fatal("handler not invoked")
	}
	if got.Content != "hello" {
		t.Errorf("got content %q, want hello", got.Content)
	}
}

func TestSendRoutesByPlatform(t *testing.T) {
	gw := New(zap.NewNop())
	slack := &captureAdapter{platform: "slack"}
	discord := &captureAdapter{platform: "discord"}
	gw.Register(slack)
	gw.Register(discord)

	err := gw.Send(context.Background(), &OutboundMessage{Platform: "discord", ChannelID: "c1", Content: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(discord.sent) != 1 {
		t.Fatalf("discord got %d sends, want 1", len(discord.sent))
	}
	if len(slack.sent) != 0 {
		t.Errorf("slack got %d sends, want 0", len(slack.sent))
	}
}

func TestSendUnknownPlatform(t *testing.T) {
	gw := New(zap.NewNop())
	err := gw.Send(context.Background(), &OutboundMessage{Platform: "telegram"})
	if err == nil {
		t.Fatal("expected error for unknown platform")
	}
}

func TestConnectAllContinuesPastFailure(t *testing.T) {
	gw := New(zap.NewNop())
	bad := &captureAdapter{platform: "slack", connectErr: errors.New("bad token")}
	good := &captureAdapter{platform: "discord"}
	gw.Register(bad)
	gw.Register(good)

	err := gw.ConnectAll(context.Background())
	if err == nil {
		t.Fatal("expected error naming the failed platform")
	}
	if !good.connected {
		t.Error("healthy adapter should still connect")
	}
}

func TestStatusAll(t *testing.T) {
	gw := New(zap.NewNop())
	gw.Register(&captureAdapter{platform: "slack", connected: true})
	gw.Register(&captureAdapter{platform: "discord"})

	statuses := gw.StatusAll()
	if len(statuses) != 2 {
		t.Fatalf("got %d statuses, want 2", len(statuses))
	}
}

func TestCloseClosesAdapters(t *testing.T) {
	gw := New(zap.NewNop())
	a := &captureAdapter{platform: "slack"}
	gw.Register(a)

	if err := gw.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.closed {
		t.Error("adapter not closed")
	}
}
