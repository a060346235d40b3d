package feed

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeTransport struct {
	mu           sync.Mutex
	published    map[string][]string
	subs         map[string]MessageHandler
	publishErr   error
	subscribeErr error
	unsubCalls   int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		published: make(map[string][]string),
		subs:      make(map[string]MessageHandler),
	}
}

func (f *fakeTransport) Subscribe(feedKey string, handler MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.subs[feedKey] = handler
	return nil
}

func (f *fakeTransport) Unsubscribe(feedKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, feedKey)
	f.unsubCalls++
	return nil
}

func (f *fakeTransport) Publish(feedKey, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published[feedKey] = append(f.published[feedKey], value)
	return nil
}

func (f *fakeTransport) SetOnDisconnect(_ func(err error)) {}
func (f *fakeTransport) Close() error                      { return nil }

func (f *fakeTransport) deliver(feedKey, value string) {
	f.mu.Lock()
	handler := f.subs[feedKey]
	f.mu.Unlock()
	if handler != nil {
		handler(feedKey, []byte(value))
	}
}

func waitForValue(t *testing.T, ch *Channel, want string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if ch.ReadLatest() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("value never became %q, last %q", want, ch.ReadLatest())
}

func TestChannelConnectAndReceive(t *testing.T) {
	transport := newFakeTransport()
	ch := NewChannel("dadn-led-1", "0", transport)

	if err := ch.Connect(); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if ch.State() != StateConnected {
		t.Fatalf("state = %v, want connected", ch.State())
	}
	if ch.ReadLatest() != "0" {
		t.Errorf("initial value = %q, want \"0\"", ch.ReadLatest())
	}

	transport.deliver("dadn-led-1", "1")
	waitForValue(t, ch, "1")
}

func TestChannelConnectFailure(t *testing.T) {
	transport := newFakeTransport()
	transport.subscribeErr = ErrSubscribeFailed
	ch := NewChannel("dadn-led-1", "0", transport)

	if err := ch.Connect(); !errors.Is(err, ErrSubscribeFailed) {
		t.Fatalf("expected subscribe failure, got %v", err)
	}
	if ch.State() != StateError {
		t.Errorf("state = %v, want error", ch.State())
	}
}

func TestChannelPublishUpdatesCacheOnSuccessOnly(t *testing.T) {
	transport := newFakeTransport()
	ch := NewChannel("dadn-fan-1", "40", transport)
	if err := ch.Connect(); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	if err := ch.Publish("50"); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if ch.ReadLatest() != "50" {
		t.Errorf("cache = %q after successful publish, want \"50\"", ch.ReadLatest())
	}

	transport.publishErr = ErrPublishFailed
	if err := ch.Publish("60"); !errors.Is(err, ErrPublishFailed) {
		t.Fatalf("expected publish failure, got %v", err)
	}
	if ch.ReadLatest() != "50" {
		t.Errorf("cache = %q after failed publish, want \"50\"", ch.ReadLatest())
	}
}

func TestChannelOverflowKeepsNewest(t *testing.T) {
	transport := newFakeTransport()
	ch := NewChannel("dadn-temp", "0", transport)
	if err := ch.Connect(); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	// Flood well past the inbox size; the final value must win.
	for i := 0; i < inboxSize*4; i++ {
		transport.deliver("dadn-temp", "x")
	}
	transport.deliver("dadn-temp", "final")
	waitForValue(t, ch, "final")
}

func TestChannelDisconnectIdempotent(t *testing.T) {
	transport := newFakeTransport()
	ch := NewChannel("dadn-led-1", "0", transport)
	if err := ch.Connect(); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	if err := ch.Disconnect(); err != nil {
		t.Fatalf("disconnect failed: %v", err)
	}
	if err := ch.Disconnect(); err != nil {
		t.Fatalf("second disconnect failed: %v", err)
	}

	transport.mu.Lock()
	calls := transport.unsubCalls
	transport.mu.Unlock()
	if calls != 1 {
		t.Errorf("unsubscribe called %d times, want 1", calls)
	}
	if ch.State() != StateDisconnected {
		t.Errorf("state = %v, want disconnected", ch.State())
	}
}

func TestChannelMarkDisconnected(t *testing.T) {
	transport := newFakeTransport()
	ch := NewChannel("dadn-led-1", "1", transport)
	if err := ch.Connect(); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	ch.MarkDisconnected()
	if ch.State() != StateDisconnected {
		t.Errorf("state = %v, want disconnected", ch.State())
	}
	// Cached value survives the connection loss.
	if ch.ReadLatest() != "1" {
		t.Errorf("cache = %q after disconnect, want \"1\"", ch.ReadLatest())
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnected, "connected"},
		{StateError, "error"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
