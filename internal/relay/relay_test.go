package relay

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"dstcore/internal/events"
	"dstcore/internal/logger"

	natssrv "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

func runTestNATSServer(t *testing.T) *natssrv.Server {
	t.Helper()

	s, err := natssrv.NewServer(&natssrv.Options{Port: -1})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	go s.Start()
	if !s.ReadyForConnections(5 * time.Second) {
		s.Shutdown()
		t.Fatal("nats server not ready")
	}
	t.Cleanup(s.Shutdown)
	return s
}

func newTestRelay(t *testing.T, url string) *Relay {
	t.Helper()
	r, err := Connect(Config{URL: url, Prefix: "dstcore.test", Name: "relay-test"})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	r.SetLogger(logger.New(io.Discard, logger.LevelError))
	return r
}

func subscribe(t *testing.T, url, subject string) *nats.Subscription {
	t.Helper()
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("nats.Connect: %v", err)
	}
	t.Cleanup(nc.Close)

	sub, err := nc.SubscribeSync(subject)
	if err != nil {
		t.Fatalf("SubscribeSync: %v", err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	return sub
}

func TestSubject(t *testing.T) {
	r := &Relay{prefix: "dstcore"}
	if got := r.Subject(events.EventTaskFailed); got != "dstcore.events.task_failed" {
		t.Errorf("unexpected subject %s", got)
	}
}

func TestConnectFailure(t *testing.T) {
	if _, err := Connect(Config{URL: "nats://127.0.0.1:1"}); err == nil {
		t.Error("expected error connecting to closed port")
	}
}

func TestRelayForwardsBusEvents(t *testing.T) {
	srv := runTestNATSServer(t)
	sub := subscribe(t, srv.ClientURL(), "dstcore.test.events.>")

	bus := events.NewBus()
	r := newTestRelay(t, srv.ClientURL())
	defer r.Close()

	r.Start(context.Background(), bus)

	bus.Publish(events.NewPoolStartedEvent("pool-1", 4))
	bus.Publish(events.NewRunStartedEvent("pool-1", "run-1", "quick"))

	want := []events.EventType{events.EventPoolStarted, events.EventRunStarted}
	for _, typ := range want {
		msg, err := sub.NextMsg(5 * time.Second)
		if err != nil {
			t.Fatalf("expected %s message: %v", typ, err)
		}
		if msg.Subject != "dstcore.test.events."+string(typ) {
			t.Errorf("unexpected subject %s", msg.Subject)
		}
		if msg.Header.Get("X-Pool-ID") != "pool-1" {
			t.Errorf("missing pool header on %s", msg.Subject)
		}

		var ev events.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			t.Fatalf("failed to decode event: %v", err)
		}
		if ev.Type != typ {
			t.Errorf("expected %s, got %s", typ, ev.Type)
		}
		if typ == events.EventRunStarted && msg.Header.Get("X-Run-ID") != "run-1" {
			t.Error("missing run header")
		}
	}

	if got := r.Published(); got != 2 {
		t.Errorf("expected 2 published, got %d", got)
	}
	if r.Failed() != 0 {
		t.Errorf("expected no failures, got %d", r.Failed())
	}
}

func TestRelayFiltersTypes(t *testing.T) {
	srv := runTestNATSServer(t)
	sub := subscribe(t, srv.ClientURL(), "dstcore.test.events.>")

	bus := events.NewBus()
	r := newTestRelay(t, srv.ClientURL())
	defer r.Close()

	r.Start(context.Background(), bus, events.EventTaskFailed)

	bus.Publish(events.NewPoolStartedEvent("pool-1", 4))
	bus.Publish(events.NewTaskFailedEvent("pool-1", 2, io.ErrUnexpectedEOF))

	msg, err := sub.NextMsg(5 * time.Second)
	if err != nil {
		t.Fatalf("expected task_failed message: %v", err)
	}
	if msg.Subject != "dstcore.test.events.task_failed" {
		t.Errorf("expected only task_failed, got %s", msg.Subject)
	}
	if _, err := sub.NextMsg(100 * time.Millisecond); err == nil {
		t.Error("expected no further messages")
	}
}

func TestCloseFlushesAndUnsubscribes(t *testing.T) {
	srv := runTestNATSServer(t)
	sub := subscribe(t, srv.ClientURL(), "dstcore.test.events.>")

	bus := events.NewBus()
	r := newTestRelay(t, srv.ClientURL())
	r.Start(context.Background(), bus)

	for range 10 {
		bus.Publish(events.NewPoolDrainingEvent("pool-1", 3))
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if bus.SubscriberCount() != 0 {
		t.Errorf("expected relay to unsubscribe, %d subscribers left", bus.SubscriberCount())
	}
	for i := range 10 {
		if _, err := sub.NextMsg(5 * time.Second); err != nil {
			t.Fatalf("message %d missing after Close: %v", i, err)
		}
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}
