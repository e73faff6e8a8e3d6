package goLogin

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	sink := &countingSink{}

	d := newAuditDispatcher(AuditConfig{Enabled: false}, sink)
	if d != nil {
		t.Fatal("expected nil dispatcher when audit disabled")
	}
	d.Emit(context.Background(), AuditEvent{EventType: auditEventLoginFailed})
	d.Close()

	if sink.Count() != 0 {
		t.Fatalf("expected no sink calls when disabled, got %d", sink.Count())
	}
}

func TestAuditDispatcherDeliversAndDrains(t *testing.T) {
	sink := &countingSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: auditEventLoginSuccess})
	}
	d.Close()

	if sink.Count() != 10 {
		t.Fatalf("expected 10 delivered events after drain, got %d", sink.Count())
	}
}

func TestAuditDispatcherDropsUnderBackpressure(t *testing.T) {
	gate := make(chan struct{})
	blocking := &gateSink{gate: gate}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, blocking)

	for i := 0; i < 20; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: auditEventLoginFailed})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a full buffer and a blocked sink")
	}

	close(gate)
	d.Close()
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func TestAuditEmitAfterCloseIsNoOp(t *testing.T) {
	sink := &countingSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 4}, sink)
	d.Close()

	d.Emit(context.Background(), AuditEvent{EventType: auditEventLoginSuccess})
	if sink.Count() != 0 {
		t.Fatalf("expected no delivery after close, got %d", sink.Count())
	}
}

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now(),
		EventType: auditEventMFAVerified,
		Severity:  SeverityInfo,
		UserID:    "u1",
		Success:   true,
	})
	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now(),
		EventType: auditEventLoginBlocked,
		Severity:  SeverityHigh,
		UserID:    "u2",
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var event AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("line is not valid JSON: %v", err)
	}
	if event.EventType != auditEventMFAVerified || event.UserID != "u1" {
		t.Fatalf("unexpected decoded event %+v", event)
	}
}

func TestEngineEmitsLoginAuditEvents(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true

	mr := newTestEngineWithSink(t, cfg)
	defer mr.done()

	mr.fx.users.add(activeUser("u1", "alice@example.com"))

	if _, err := mr.fx.engine.StartLogin(testCtx(), "alice@example.com", "wrong-password", nil); err == nil {
		t.Fatal("expected failed login")
	}
	if _, err := mr.fx.engine.StartLogin(testCtx(), "alice@example.com", "correct-password-123", nil); err != nil {
		t.Fatalf("StartLogin failed: %v", err)
	}

	mr.fx.engine.Close()

	events := mr.sink.drain()
	var sawFailed, sawSuccess bool
	for _, event := range events {
		switch event.EventType {
		case auditEventLoginFailed:
			sawFailed = true
			if event.Success {
				t.Fatal("login_failed event marked success")
			}
			if event.IP != "10.1.2.3" {
				t.Fatalf("expected caller IP on event, got %q", event.IP)
			}
		case auditEventLoginSuccess:
			sawSuccess = true
			if !event.Success {
				t.Fatal("login_success event not marked success")
			}
		}
	}
	if !sawFailed || !sawSuccess {
		t.Fatalf("expected both failed and success events, got %+v", events)
	}
}

type recordingSink struct {
	ch chan AuditEvent
}

func (s *recordingSink) Emit(_ context.Context, event AuditEvent) {
	select {
	case s.ch <- event:
	default:
	}
}

func (s *recordingSink) drain() []AuditEvent {
	var out []AuditEvent
	for {
		select {
		case event := <-s.ch:
			out = append(out, event)
		default:
			return out
		}
	}
}

type auditFixture struct {
	fx   *testFixture
	sink *recordingSink
	done func()
}

func newTestEngineWithSink(t *testing.T, cfg Config) *auditFixture {
	t.Helper()

	sink := &recordingSink{ch: make(chan AuditEvent, 64)}

	fx, done := newTestEngine(t, cfg, Settings{PasswordAttemptLimit: 5})
	// Rebuild the dispatcher with the recording sink; the fixture builder
	// installs none.
	fx.engine.audit.Close()
	fx.engine.audit = newAuditDispatcher(cfg.Audit, sink)

	return &auditFixture{fx: fx, sink: sink, done: done}
}
