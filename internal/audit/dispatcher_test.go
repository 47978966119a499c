package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatalf("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "login_success"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatalf("nil dispatcher must report zero drops")
	}
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	for _, typ := range []string{"login_success", "refresh_success", "logout"} {
		d.Emit(context.Background(), Event{EventType: typ})
	}
	d.Close()

	var got []string
	for i := 0; i < 3; i++ {
		select {
		case ev := <-sink.Events():
			got = append(got, ev.EventType)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
	if strings.Join(got, ",") != "login_success,refresh_success,logout" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestDropIfFullCountsDrops(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "refresh_success"})
	}
	if d.Dropped() == 0 {
		t.Fatalf("expected drops with a blocked sink")
	}

	close(sink.gate)
	d.Close()
}

func TestBlockingEmitHonoursContext(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: "a"})
	d.Emit(context.Background(), Event{EventType: "b"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	d.Emit(ctx, Event{EventType: "c"})
	if time.Since(start) > time.Second {
		t.Fatalf("emit did not return after context expiry")
	}
}

func TestJSONWriterSinkOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{ID: "1", EventType: "login_success", Username: "alice", Success: true})
	sink.Emit(context.Background(), Event{ID: "2", EventType: "session_expired", FromState: "refreshing", ToState: "anonymous"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[1]), &ev); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if ev.EventType != "session_expired" || ev.ToState != "anonymous" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestDispatcherRedactsSecretMetadata(t *testing.T) {
	sink := NewChannelSink(1)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	md := map[string]string{"endpoint": "/refresh", "refresh_token": "r1", "Password": "pw"}
	d.Emit(context.Background(), Event{EventType: "refresh_failure", Metadata: md})
	d.Close()

	ev := <-sink.Events()
	if len(ev.Metadata) != 1 || ev.Metadata["endpoint"] != "/refresh" {
		t.Fatalf("expected only non-secret metadata, got %v", ev.Metadata)
	}
	if len(md) != 3 {
		t.Fatalf("caller metadata must not be modified")
	}
	if ev.Timestamp.IsZero() {
		t.Fatalf("expected a timestamp")
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	var buf bytes.Buffer
	ch := NewChannelSink(2)
	var calls int
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, MultiSink(
		ch,
		nil,
		NewJSONWriterSink(&buf),
		SinkFunc(func(context.Context, Event) { calls++ }),
	))

	d.Emit(context.Background(), Event{EventType: "login_success"})
	d.Emit(context.Background(), Event{EventType: "logout"})
	d.Close()

	if len(ch.Events()) != 2 || calls != 2 {
		t.Fatalf("expected every sink to see 2 events, channel=%d func=%d", len(ch.Events()), calls)
	}
	if n := strings.Count(buf.String(), "\n"); n != 2 {
		t.Fatalf("expected 2 JSON lines, got %d", n)
	}
}

func TestCloseIsIdempotentAndRejectsLateEvents(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)

	d.Emit(context.Background(), Event{EventType: "logout"})
	d.Close()
	d.Close()
	d.Emit(context.Background(), Event{EventType: "late"})

	if got := len(sink.Events()); got != 1 {
		t.Fatalf("expected only the event emitted before Close, got %d", got)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestJSONWriterSinkCountsFailures(t *testing.T) {
	sink := NewJSONWriterSink(failingWriter{})
	sink.Emit(context.Background(), Event{EventType: "logout"})
	if sink.Failed() != 1 {
		t.Fatalf("expected one failed write, got %d", sink.Failed())
	}
}
