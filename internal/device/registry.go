package device

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/yolohome/gateway/internal/feed"
	"github.com/yolohome/gateway/internal/infrastructure/logging"
)

// Registry owns the device set for the currently connected account.
//
// All reads and commands go through the registry. Rebuild replaces the
// entire device set atomically: readers see either the old set or the
// new one, never a mix.
type Registry struct {
	dialer    feed.Dialer
	discovery feed.Discoverer
	logger    *logging.Logger

	// rebuildMu serializes rebuilds. Taken with TryLock so a concurrent
	// rebuild is rejected instead of queued.
	rebuildMu sync.Mutex

	mu        sync.RWMutex
	leds      map[string]*led
	fans      map[string]*fan
	sensors   map[string]*sensor
	transport feed.Transport

	onRebuild func(transport feed.Transport)
}

// NewRegistry creates an empty registry. Devices appear after the first
// successful Rebuild.
func NewRegistry(dialer feed.Dialer, discovery feed.Discoverer, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Default()
	}
	return &Registry{
		dialer:    dialer,
		discovery: discovery,
		logger:    logger.With("component", "device_registry"),
		leds:      make(map[string]*led),
		fans:      make(map[string]*fan),
		sensors:   make(map[string]*sensor),
	}
}

// RebuildResult reports what a rebuild produced: the feed IDs of every
// device now in the registry, sorted per kind. Discovery failures are
// isolated per kind: a kind that failed contributes zero devices and an
// entry in KindErrors while the other kinds proceed normally.
type RebuildResult struct {
	LEDIDs     []string
	FanIDs     []string
	SensorIDs  []string
	KindErrors map[Kind]error
}

// Rebuild tears down the current device set and rebuilds it for the
// given account.
//
// Returns ErrRebuildInProgress if another rebuild is running. A broker
// connection failure aborts the rebuild and leaves the registry empty;
// the previous device set is gone either way.
func (r *Registry) Rebuild(ctx context.Context, account feed.Account) (*RebuildResult, error) {
	if !r.rebuildMu.TryLock() {
		return nil, ErrRebuildInProgress
	}
	defer r.rebuildMu.Unlock()

	r.Teardown()

	transport, err := r.dialer.Dial(account)
	if err != nil {
		return nil, fmt.Errorf("dialing broker: %w", err)
	}
	transport.SetOnDisconnect(func(err error) {
		r.logger.Warn("broker connection lost", "error", err)
		r.markAllDisconnected()
	})

	result := &RebuildResult{KindErrors: make(map[Kind]error)}

	leds := make(map[string]*led)
	ledFeeds, err := r.discovery.LEDFeeds(ctx, account)
	if err != nil {
		result.KindErrors[KindLED] = err
		r.logger.Error("led feed discovery failed", "error", err)
	}
	for _, info := range ledFeeds {
		ch := feed.NewChannel(info.Key, info.LastValue, transport)
		if err := ch.Connect(); err != nil {
			r.logger.Warn("led feed subscribe failed", "feed", info.Key, "error", err)
		}
		leds[info.Key] = &led{
			id:          info.Key,
			description: info.Description,
			status:      info.LastValue,
			channel:     ch,
		}
	}

	fans := make(map[string]*fan)
	fanFeeds, err := r.discovery.FanFeeds(ctx, account)
	if err != nil {
		result.KindErrors[KindFan] = err
		r.logger.Error("fan feed discovery failed", "error", err)
	}
	for _, info := range fanFeeds {
		ch := feed.NewChannel(info.Key, info.LastValue, transport)
		if err := ch.Connect(); err != nil {
			r.logger.Warn("fan feed subscribe failed", "feed", info.Key, "error", err)
		}
		value, err := strconv.Atoi(info.LastValue)
		if err != nil {
			value = 0
		}
		fans[info.Key] = &fan{
			id:          info.Key,
			description: info.Description,
			value:       value,
			channel:     ch,
		}
	}

	sensors := make(map[string]*sensor)
	sensorFeeds, err := r.discovery.SensorFeeds(ctx, account)
	if err != nil {
		result.KindErrors[KindSensor] = err
		r.logger.Error("sensor feed discovery failed", "error", err)
	}
	for _, info := range sensorFeeds {
		ch := feed.NewChannel(info.Key, strconv.FormatFloat(info.LastValue, 'f', -1, 64), transport)
		if err := ch.Connect(); err != nil {
			r.logger.Warn("sensor feed subscribe failed", "feed", info.Key, "error", err)
		}
		sensors[info.Key] = &sensor{
			id:          info.Key,
			description: info.Description,
			value:       info.LastValue,
			unit:        info.Unit,
			channel:     ch,
		}
	}

	r.mu.Lock()
	r.leds = leds
	r.fans = fans
	r.sensors = sensors
	r.transport = transport
	r.mu.Unlock()

	result.LEDIDs = sortedIDs(leds)
	result.FanIDs = sortedIDs(fans)
	result.SensorIDs = sortedIDs(sensors)

	r.logger.Info("device registry rebuilt",
		"leds", len(result.LEDIDs),
		"fans", len(result.FanIDs),
		"sensors", len(result.SensorIDs),
		"failed_kinds", len(result.KindErrors))

	if r.onRebuild != nil {
		r.onRebuild(transport)
	}

	return result, nil
}

// sortedIDs returns the map keys in ascending order.
func sortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetOnRebuild registers a callback invoked with the fresh transport
// after every successful rebuild. Set it before the first rebuild; it is
// not synchronized against one.
func (r *Registry) SetOnRebuild(fn func(transport feed.Transport)) {
	r.onRebuild = fn
}

// Teardown disconnects every channel and closes the broker transport,
// leaving the registry empty. Individual disconnect failures are logged
// and skipped; one stuck channel must not block the rest.
func (r *Registry) Teardown() {
	r.mu.Lock()
	leds, fans, sensors := r.leds, r.fans, r.sensors
	transport := r.transport
	r.leds = make(map[string]*led)
	r.fans = make(map[string]*fan)
	r.sensors = make(map[string]*sensor)
	r.transport = nil
	r.mu.Unlock()

	for id, d := range leds {
		if err := d.channel.Disconnect(); err != nil {
			r.logger.Warn("led channel disconnect failed", "device", id, "error", err)
		}
	}
	for id, d := range fans {
		if err := d.channel.Disconnect(); err != nil {
			r.logger.Warn("fan channel disconnect failed", "device", id, "error", err)
		}
	}
	for id, d := range sensors {
		if err := d.channel.Disconnect(); err != nil {
			r.logger.Warn("sensor channel disconnect failed", "device", id, "error", err)
		}
	}

	if transport != nil {
		if err := transport.Close(); err != nil {
			r.logger.Warn("transport close failed", "error", err)
		}
	}
}

func (r *Registry) markAllDisconnected() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.leds {
		d.channel.MarkDisconnected()
	}
	for _, d := range r.fans {
		d.channel.MarkDisconnected()
	}
	for _, d := range r.sensors {
		d.channel.MarkDisconnected()
	}
}

// CommandLED publishes a new status to an LED feed. The cached status
// is updated only after the broker acknowledges the publish.
func (r *Registry) CommandLED(id, status string) error {
	if !validLEDStatus(status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	r.mu.RLock()
	d, ok := r.leds[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	if err := d.channel.Publish(status); err != nil {
		return err
	}

	r.mu.Lock()
	d.status = status
	r.mu.Unlock()
	return nil
}

// CommandFan resolves an action against the fan's current speed and
// publishes the target speed. The returned value is the speed the
// action resolved to, even when the publish fails; the cached speed is
// updated only on success. Invalid actions return the current speed.
func (r *Registry) CommandFan(id, action string) (int, error) {
	r.mu.RLock()
	d, ok := r.fans[id]
	r.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	current := latestInt(d.channel, d.value)
	target, err := resolveFanAction(action, current)
	if err != nil {
		return current, err
	}

	if err := d.channel.Publish(strconv.Itoa(target)); err != nil {
		return target, err
	}

	r.mu.Lock()
	d.value = target
	r.mu.Unlock()
	return target, nil
}

// SensorReading returns the latest value for one sensor.
func (r *Registry) SensorReading(id string) (SensorSnapshot, error) {
	r.mu.RLock()
	d, ok := r.sensors[id]
	r.mu.RUnlock()
	if !ok {
		return SensorSnapshot{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	value := latestFloat(d.channel, d.value)

	r.mu.Lock()
	d.value = value
	r.mu.Unlock()

	return SensorSnapshot{
		ID:          d.id,
		Description: d.description,
		Value:       value,
		Unit:        d.unit,
	}, nil
}

// Snapshot returns a point-in-time copy of every device, sorted by ID.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		LEDs:    make([]LEDSnapshot, 0, len(r.leds)),
		Fans:    make([]FanSnapshot, 0, len(r.fans)),
		Sensors: make([]SensorSnapshot, 0, len(r.sensors)),
	}

	for _, d := range r.leds {
		status := d.channel.ReadLatest()
		if status == "" {
			status = d.status
		}
		snap.LEDs = append(snap.LEDs, LEDSnapshot{
			ID:          d.id,
			Description: d.description,
			Status:      status,
		})
	}
	for _, d := range r.fans {
		snap.Fans = append(snap.Fans, FanSnapshot{
			ID:          d.id,
			Description: d.description,
			Value:       latestInt(d.channel, d.value),
		})
	}
	for _, d := range r.sensors {
		snap.Sensors = append(snap.Sensors, SensorSnapshot{
			ID:          d.id,
			Description: d.description,
			Value:       latestFloat(d.channel, d.value),
			Unit:        d.unit,
		})
	}

	sort.Slice(snap.LEDs, func(i, j int) bool { return snap.LEDs[i].ID < snap.LEDs[j].ID })
	sort.Slice(snap.Fans, func(i, j int) bool { return snap.Fans[i].ID < snap.Fans[j].ID })
	sort.Slice(snap.Sensors, func(i, j int) bool { return snap.Sensors[i].ID < snap.Sensors[j].ID })

	return snap
}
