package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yolohome/gateway/internal/feed"
)

type fakeTransport struct {
	mu           sync.Mutex
	published    map[string][]string
	subs         map[string]feed.MessageHandler
	publishErr   error
	subscribeErr error
	unsubErr     error
	closed       bool
	onDisconnect func(error)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		published: make(map[string][]string),
		subs:      make(map[string]feed.MessageHandler),
	}
}

func (f *fakeTransport) Subscribe(feedKey string, handler feed.MessageHandler) error {
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
	return f.unsubErr
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

func (f *fakeTransport) SetOnDisconnect(fn func(err error)) {
	f.mu.Lock()
	f.onDisconnect = fn
	f.mu.Unlock()
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) lastPublished(feedKey string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values := f.published[feedKey]
	if len(values) == 0 {
		return "", false
	}
	return values[len(values)-1], true
}

type fakeDialer struct {
	transport *fakeTransport
	err       error

	// When set, Dial signals started and blocks until released.
	started  chan struct{}
	released chan struct{}
}

func (d *fakeDialer) Dial(_ feed.Account) (feed.Transport, error) {
	if d.started != nil {
		close(d.started)
		<-d.released
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.transport, nil
}

type fakeDiscovery struct {
	leds      []feed.Info
	fans      []feed.Info
	sensors   []feed.SensorInfo
	ledErr    error
	fanErr    error
	sensorErr error
}

func (d *fakeDiscovery) LEDFeeds(_ context.Context, _ feed.Account) ([]feed.Info, error) {
	return d.leds, d.ledErr
}

func (d *fakeDiscovery) FanFeeds(_ context.Context, _ feed.Account) ([]feed.Info, error) {
	return d.fans, d.fanErr
}

func (d *fakeDiscovery) SensorFeeds(_ context.Context, _ feed.Account) ([]feed.SensorInfo, error) {
	return d.sensors, d.sensorErr
}

func testAccount() feed.Account {
	return feed.Account{Username: "alice", Key: "aio_key"}
}

func builtRegistry(t *testing.T) (*Registry, *fakeTransport) {
	t.Helper()

	transport := newFakeTransport()
	discovery := &fakeDiscovery{
		leds: []feed.Info{
			{Key: "dadn-led-1", Description: "Living room light", LastValue: "1"},
			{Key: "dadn-led-2", Description: "Bedroom light", LastValue: "0"},
		},
		fans: []feed.Info{
			{Key: "dadn-fan-1", Description: "Ceiling fan", LastValue: "40"},
		},
		sensors: []feed.SensorInfo{
			{Key: "dadn-temp", Description: "Temperature", LastValue: 27.5, Unit: "°C"},
		},
	}

	r := NewRegistry(&fakeDialer{transport: transport}, discovery, nil)
	if _, err := r.Rebuild(context.Background(), testAccount()); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	return r, transport
}

func TestRebuildPopulatesRegistry(t *testing.T) {
	r, _ := builtRegistry(t)

	snap := r.Snapshot()
	if len(snap.LEDs) != 2 || len(snap.Fans) != 1 || len(snap.Sensors) != 1 {
		t.Fatalf("unexpected device counts: %d leds, %d fans, %d sensors",
			len(snap.LEDs), len(snap.Fans), len(snap.Sensors))
	}
	if snap.LEDs[0].ID != "dadn-led-1" || snap.LEDs[0].Status != "1" {
		t.Errorf("unexpected first led: %+v", snap.LEDs[0])
	}
	if snap.Fans[0].Value != 40 {
		t.Errorf("fan value = %d, want 40", snap.Fans[0].Value)
	}
	if snap.Sensors[0].Unit != "°C" {
		t.Errorf("sensor unit = %q, want °C", snap.Sensors[0].Unit)
	}
}

func TestRebuildDialFailureLeavesRegistryEmpty(t *testing.T) {
	r, _ := builtRegistry(t)

	// Swap in a dialer that fails; the old device set must not survive.
	r.dialer = &fakeDialer{err: feed.ErrConnectionFailed}
	if _, err := r.Rebuild(context.Background(), testAccount()); !errors.Is(err, feed.ErrConnectionFailed) {
		t.Fatalf("expected connection failure, got %v", err)
	}

	snap := r.Snapshot()
	if len(snap.LEDs)+len(snap.Fans)+len(snap.Sensors) != 0 {
		t.Errorf("registry not empty after failed rebuild: %+v", snap)
	}
}

func TestRebuildIsolatesKindFailures(t *testing.T) {
	transport := newFakeTransport()
	discovery := &fakeDiscovery{
		ledErr: feed.ErrDiscoveryFailed,
		fans:   []feed.Info{{Key: "dadn-fan-1", Description: "Fan", LastValue: "0"}},
		sensors: []feed.SensorInfo{
			{Key: "dadn-humi", Description: "Humidity", LastValue: 60, Unit: "%"},
		},
	}

	r := NewRegistry(&fakeDialer{transport: transport}, discovery, nil)
	result, err := r.Rebuild(context.Background(), testAccount())
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}

	if !errors.Is(result.KindErrors[KindLED], feed.ErrDiscoveryFailed) {
		t.Errorf("expected led kind error, got %v", result.KindErrors[KindLED])
	}
	if len(result.LEDIDs) != 0 {
		t.Errorf("led ids = %v, want none", result.LEDIDs)
	}
	if len(result.FanIDs) != 1 || result.FanIDs[0] != "dadn-fan-1" {
		t.Errorf("unexpected fan ids: %v", result.FanIDs)
	}
	if len(result.SensorIDs) != 1 || result.SensorIDs[0] != "dadn-humi" {
		t.Errorf("unexpected sensor ids: %v", result.SensorIDs)
	}
}

func TestRebuildRejectsConcurrent(t *testing.T) {
	transport := newFakeTransport()
	dialer := &fakeDialer{
		transport: transport,
		started:   make(chan struct{}),
		released:  make(chan struct{}),
	}
	r := NewRegistry(dialer, &fakeDiscovery{}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := r.Rebuild(context.Background(), testAccount())
		done <- err
	}()

	<-dialer.started
	if _, err := r.Rebuild(context.Background(), testAccount()); !errors.Is(err, ErrRebuildInProgress) {
		t.Errorf("expected ErrRebuildInProgress, got %v", err)
	}
	close(dialer.released)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("first rebuild failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first rebuild did not finish")
	}
}

func TestCommandLED(t *testing.T) {
	r, transport := builtRegistry(t)

	if err := r.CommandLED("dadn-led-2", "1"); err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if got, ok := transport.lastPublished("dadn-led-2"); !ok || got != "1" {
		t.Errorf("published value = %q, want \"1\"", got)
	}

	if err := r.CommandLED("dadn-led-2", "2"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	if err := r.CommandLED("dadn-led-9", "1"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestCommandLEDPublishFailureLeavesCache(t *testing.T) {
	r, transport := builtRegistry(t)
	transport.publishErr = feed.ErrPublishFailed

	if err := r.CommandLED("dadn-led-1", "0"); !errors.Is(err, feed.ErrPublishFailed) {
		t.Fatalf("expected publish failure, got %v", err)
	}

	snap := r.Snapshot()
	if snap.LEDs[0].Status != "1" {
		t.Errorf("cached status mutated on failed publish: %q", snap.LEDs[0].Status)
	}
}

func TestCommandFan(t *testing.T) {
	r, transport := builtRegistry(t)

	value, err := r.CommandFan("dadn-fan-1", "increase")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if value != 50 {
		t.Errorf("resolved value = %d, want 50", value)
	}
	if got, _ := transport.lastPublished("dadn-fan-1"); got != "50" {
		t.Errorf("published value = %q, want \"50\"", got)
	}

	// The next increase resolves against the updated speed.
	if value, _ = r.CommandFan("dadn-fan-1", "increase"); value != 60 {
		t.Errorf("second increase = %d, want 60", value)
	}

	value, err = r.CommandFan("dadn-fan-1", "150")
	if !errors.Is(err, ErrInvalidAction) {
		t.Errorf("expected ErrInvalidAction, got %v", err)
	}
	if value != 60 {
		t.Errorf("invalid action returned %d, want current speed 60", value)
	}
}

func TestCommandFanPublishFailureLeavesCache(t *testing.T) {
	r, transport := builtRegistry(t)
	transport.publishErr = feed.ErrPublishFailed

	value, err := r.CommandFan("dadn-fan-1", "on")
	if !errors.Is(err, feed.ErrPublishFailed) {
		t.Fatalf("expected publish failure, got %v", err)
	}
	if value != 50 {
		t.Errorf("resolved value = %d, want 50", value)
	}

	snap := r.Snapshot()
	if snap.Fans[0].Value != 40 {
		t.Errorf("cached speed mutated on failed publish: %d", snap.Fans[0].Value)
	}
}

func TestSensorReading(t *testing.T) {
	r, _ := builtRegistry(t)

	reading, err := r.SensorReading("dadn-temp")
	if err != nil {
		t.Fatalf("reading failed: %v", err)
	}
	if reading.Value != 27.5 || reading.Unit != "°C" {
		t.Errorf("unexpected reading: %+v", reading)
	}

	if _, err := r.SensorReading("dadn-nope"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestInboundMessageUpdatesSnapshot(t *testing.T) {
	r, transport := builtRegistry(t)

	transport.mu.Lock()
	handler := transport.subs["dadn-fan-1"]
	transport.mu.Unlock()
	if handler == nil {
		t.Fatal("fan feed not subscribed")
	}
	handler("dadn-fan-1", []byte("90"))

	deadline := time.Now().Add(time.Second)
	for {
		if snap := r.Snapshot(); snap.Fans[0].Value == 90 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("snapshot never reflected inbound value")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTeardownTolerancesAndIdempotence(t *testing.T) {
	r, transport := builtRegistry(t)
	transport.unsubErr = errors.New("broker gone")

	r.Teardown()
	r.Teardown()

	if !transport.closed {
		t.Error("transport not closed")
	}
	snap := r.Snapshot()
	if len(snap.LEDs)+len(snap.Fans)+len(snap.Sensors) != 0 {
		t.Errorf("registry not empty after teardown: %+v", snap)
	}
}
