package bus

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"
)

var testBus *Bus

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		fmt.Fprintf(os.Stderr, "start redis: %v\n", err)
		os.Exit(1)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis endpoint: %v\n", err)
		container.Terminate(ctx)
		os.Exit(1)
	}

	testBus, err = New("redis://"+endpoint, zap.NewNop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "bus: %v\n", err)
		container.Terminate(ctx)
		os.Exit(1)
	}

	code := m.Run()
	testBus.Close()
	container.Terminate(ctx)
	os.Exit(code)
}

func skipShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
}

func TestPublishSubscribe(t *testing.T) {
	skipShort(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := testBus.Subscribe(ctx, "run-1")

	// XRead with "$" only sees entries added after the read starts.
	time.Sleep(200 * time.Millisecond)

	want := &Event{
		RunID:   "run-1",
		Type:    EventRunStarted,
		Content: "build a login page",
	}
	if err := testBus.Publish(ctx, want); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-ch:
		if got.Type != EventRunStarted {
			t.Errorf("got type %q, want run_started", got.Type)
		}
		if got.RunID != "run-1" {
			t.Errorf("got run %q, want run-1", got.RunID)
		}
		if got.ID == "" {
			t.Error("expected publish to assign an event ID")
		}
		if got.Timestamp.IsZero() {
			t.Error("expected publish to stamp the event")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribeIsScopedToRun(t *testing.T) {
	skipShort(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := testBus.Subscribe(ctx, "run-a")
	time.Sleep(200 * time.Millisecond)

	if err := testBus.Publish(ctx, &Event{RunID: "run-b", Type: EventAgentMessage}); err != nil {
		t.Fatalf("publish other run: %v", err)
	}
	if err := testBus.Publish(ctx, &Event{RunID: "run-a", Type: EventRunCompleted}); err != nil {
		t.Fatalf("publish own run: %v", err)
	}

	select {
	case got := <-ch:
		if got.RunID != "run-a" {
			t.Errorf("got event for run %q, want only run-a", got.RunID)
		}
		if got.Type != EventRunCompleted {
			t.Errorf("got type %q, want run_completed", got.Type)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribeClosesOnCancel(t *testing.T) {
	skipShort(t)

	ctx, cancel := context.WithCancel(context.Background())
	ch := testBus.Subscribe(ctx, "run-cancel")
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to close without events")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("channel did not close after cancel")
	}
}
