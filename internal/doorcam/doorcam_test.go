package doorcam

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yolohome/gateway/internal/feed"
	"github.com/yolohome/gateway/internal/infrastructure/config"
)

type fakeTransport struct {
	mu        sync.Mutex
	subs      map[string]feed.MessageHandler
	published map[string][]string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		subs:      make(map[string]feed.MessageHandler),
		published: make(map[string][]string),
	}
}

func (f *fakeTransport) Subscribe(feedKey string, handler feed.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[feedKey] = handler
	return nil
}

func (f *fakeTransport) Unsubscribe(feedKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, feedKey)
	return nil
}

func (f *fakeTransport) Publish(feedKey, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
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

func (f *fakeTransport) publishedTo(feedKey string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.published[feedKey]...)
}

type fakeFrames struct{ err error }

func (f fakeFrames) Capture(_ context.Context) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("frame"), nil
}

type fakeClassifier struct {
	label string
	err   error
}

func (f fakeClassifier) Classify(_ context.Context, _ []byte) (string, error) {
	return f.label, f.err
}

func testConfig() config.DoorCamConfig {
	return config.DoorCamConfig{
		Enabled:  true,
		DoorFeed: "dadn-door",
		AIFeed:   "dadn-ai",
		Interval: 1,
	}
}

func waitForPublish(t *testing.T, transport *fakeTransport, feedKey string) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := transport.publishedTo(feedKey); len(got) > 0 {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	return nil
}

func TestDoorOpenPublishesLabel(t *testing.T) {
	transport := newFakeTransport()
	w := New(testConfig(), fakeFrames{}, fakeClassifier{label: "alice"}, nil)
	t.Cleanup(w.stop)
	w.Rebind(transport)

	transport.deliver("dadn-door", "1")

	got := waitForPublish(t, transport, "dadn-ai")
	if len(got) == 0 || got[0] != "alice" {
		t.Errorf("ai feed publishes = %v, want alice first", got)
	}
}

func TestOpenDoorClassifiesRepeatedly(t *testing.T) {
	transport := newFakeTransport()
	w := New(testConfig(), fakeFrames{}, fakeClassifier{label: "alice"}, nil)
	w.interval = 10 * time.Millisecond
	t.Cleanup(w.stop)
	w.Rebind(transport)

	transport.deliver("dadn-door", "1")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(transport.publishedTo("dadn-ai")) >= 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := transport.publishedTo("dadn-ai"); len(got) < 3 {
		t.Fatalf("publishes = %d, want at least 3 while the door stays open", len(got))
	}

	transport.deliver("dadn-door", "0")
	time.Sleep(30 * time.Millisecond)
	count := len(transport.publishedTo("dadn-ai"))
	time.Sleep(60 * time.Millisecond)
	// One in-flight round may still land after the close event.
	if after := len(transport.publishedTo("dadn-ai")); after > count+1 {
		t.Errorf("loop kept publishing after door closed: %d then %d", count, after)
	}
}

func TestDoorClosedIgnored(t *testing.T) {
	transport := newFakeTransport()
	w := New(testConfig(), fakeFrames{}, fakeClassifier{label: "alice"}, nil)
	w.Rebind(transport)

	transport.deliver("dadn-door", "0")

	time.Sleep(50 * time.Millisecond)
	if got := transport.publishedTo("dadn-ai"); len(got) != 0 {
		t.Errorf("unexpected publishes on closed door: %v", got)
	}
}

func TestClassifierFailureSuppressesPublish(t *testing.T) {
	transport := newFakeTransport()
	w := New(testConfig(), fakeFrames{}, fakeClassifier{err: errors.New("no face")}, nil)
	t.Cleanup(w.stop)
	w.Rebind(transport)

	transport.deliver("dadn-door", "1")

	time.Sleep(50 * time.Millisecond)
	if got := transport.publishedTo("dadn-ai"); len(got) != 0 {
		t.Errorf("unexpected publishes on classify failure: %v", got)
	}
}

func TestRebindSwitchesTransport(t *testing.T) {
	first := newFakeTransport()
	second := newFakeTransport()
	w := New(testConfig(), fakeFrames{}, fakeClassifier{label: "bob"}, nil)
	t.Cleanup(w.stop)

	w.Rebind(first)
	w.Rebind(second)

	second.deliver("dadn-door", "1")

	got := waitForPublish(t, second, "dadn-ai")
	if len(got) == 0 || got[0] != "bob" {
		t.Errorf("second transport publishes = %v, want bob first", got)
	}
	if got := first.publishedTo("dadn-ai"); len(got) != 0 {
		t.Errorf("stale transport received publishes: %v", got)
	}
}
