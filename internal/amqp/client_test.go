package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"finboard/internal/core"
	"finboard/internal/log"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{15, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("connection refused"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"other error", errors.New("some other error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClientCircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "finboard.changes", logger: log.Discard()}

	t.Run("initial state is closed", func(t *testing.T) {
		if client.isCircuitOpen() {
			t.Error("circuit breaker should be closed initially")
		}
	})

	t.Run("failures open the circuit", func(t *testing.T) {
		for i := 0; i < maxFailures; i++ {
			client.recordFailure()
		}
		if !client.isCircuitOpen() {
			t.Error("circuit breaker should be open after max failures")
		}
	})

	t.Run("half-open after timeout", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now().Add(-openTimeout - time.Second)
		if client.isCircuitOpen() {
			t.Error("circuit should allow a probe after the timeout")
		}
		if atomic.LoadInt32(&client.state) != StateHalfOpen {
			t.Error("state should be half-open")
		}
	})

	t.Run("success closes the circuit", func(t *testing.T) {
		client.recordSuccess()
		if atomic.LoadInt32(&client.state) != StateClosed || atomic.LoadInt64(&client.failureCount) != 0 {
			t.Error("success should reset the breaker")
		}
	})
}

func TestPublishChangeGuards(t *testing.T) {
	client := &Client{exchangeName: "finboard.changes", logger: log.Discard()}
	ev := ChangeEvent{OwnerID: "u1", Op: OpItemCreated}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.PublishChange(ctx, ev); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	atomic.StoreInt32(&client.state, StateOpen)
	client.lastFailure = time.Now()
	if err := client.PublishChange(context.Background(), ev); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}

	client.recordSuccess()
	if err := client.PublishChange(context.Background(), ev); err == nil || !strings.Contains(err.Error(), "channel not open") {
		t.Errorf("expected channel error without a connection, got %v", err)
	}
}

func TestNewItemEvent(t *testing.T) {
	item := core.FinanceItem{ID: "i1", OwnerID: "u1", BoardID: "b1", Amount: decimal.NewFromInt(5), Date: core.NewDate(2025, 4, 9)}
	ev := NewItemEvent(OpItemUpdated, item)
	if ev.Month != "2025-04" || ev.Scope().Key() != "board:b1" || ev.ItemID != "i1" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}

	tplEv := NewTemplateEvent(core.FixedTemplate{ID: "t1", OwnerID: "u1"})
	m, err := tplEv.TargetMonth()
	if err != nil || !m.IsZero() || tplEv.Scope().Key() != "user:u1" {
		t.Fatalf("template event should target the whole scope: %+v", tplEv)
	}
}

func TestChangeEventFromJSON(t *testing.T) {
	ev := ChangeEvent{BoardID: "b1", Month: "2025-04", Op: OpItemDeleted, Timestamp: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)}
	body, err := ev.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	got, err := ChangeEventFromJSON(body)
	if err != nil || got.BoardID != "b1" || got.Op != OpItemDeleted {
		t.Fatalf("round trip = %+v, %v", got, err)
	}

	for _, bad := range []string{`{"op":"item_created"}`, `{"ownerId":"u1","month":"2025-13"}`, `not json`} {
		if _, err := ChangeEventFromJSON([]byte(bad)); err == nil {
			t.Errorf("expected error for %s", bad)
		}
	}
}

type fakeAck struct {
	acked, nacked, requeued bool
}

func (f *fakeAck) Ack(bool) error {
	f.acked = true
	return nil
}

func (f *fakeAck) Nack(_, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

func TestDispatch(t *testing.T) {
	valid := []byte(`{"ownerId":"u1","month":"2025-04","op":"item_created"}`)
	ok := func(context.Context, ChangeEvent) error { return nil }
	fail := func(context.Context, ChangeEvent) error { return errors.New("boom") }

	tests := []struct {
		name        string
		body        []byte
		redelivered bool
		handler     func(context.Context, ChangeEvent) error
		want        fakeAck
	}{
		{"handled", valid, false, ok, fakeAck{acked: true}},
		{"malformed dropped", []byte(`{`), false, ok, fakeAck{nacked: true}},
		{"failure retried once", valid, false, fail, fakeAck{nacked: true, requeued: true}},
		{"failure after retry dropped", valid, true, fail, fakeAck{nacked: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got fakeAck
			dispatch(context.Background(), log.Discard(), &got, tt.body, tt.redelivered, tt.handler)
			if got != tt.want {
				t.Errorf("ack state = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResubscriberResyncsAfterReconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		sessions   int
		reconnects int
		got        []ChangeOp
	)
	r := resubscriber{
		consume: func(ctx context.Context, subscribed func()) error {
			sessions++
			switch sessions {
			case 1:
				subscribed()
				return amqp091.ErrClosed
			case 2:
				// Dropped again before the queue was bound.
				return amqp091.ErrClosed
			default:
				subscribed()
				cancel()
				return ctx.Err()
			}
		},
		reconnect: func() error {
			reconnects++
			return nil
		},
		backoff: func(int) time.Duration { return 0 },
		logger:  log.Discard(),
	}
	handler := func(_ context.Context, ev ChangeEvent) error {
		got = append(got, ev.Op)
		return nil
	}

	if err := r.run(ctx, handler); !errors.Is(err, context.Canceled) {
		t.Fatalf("run = %v, want context.Canceled", err)
	}
	if reconnects != 2 {
		t.Errorf("reconnects = %d, want 2", reconnects)
	}
	if len(got) != 1 || got[0] != OpResync {
		t.Errorf("handler saw %v, want a single resync after the reconnect", got)
	}
}

func TestResubscriberStopsOnFatalError(t *testing.T) {
	fatal := errors.New("access refused")
	r := resubscriber{
		consume:   func(context.Context, func()) error { return fatal },
		reconnect: func() error { t.Fatal("unexpected reconnect"); return nil },
		backoff:   func(int) time.Duration { return 0 },
		logger:    log.Discard(),
	}
	if err := r.run(context.Background(), func(context.Context, ChangeEvent) error { return nil }); !errors.Is(err, fatal) {
		t.Fatalf("run = %v, want %v", err, fatal)
	}
}
