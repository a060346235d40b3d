package device

import (
	"strconv"

	"github.com/yolohome/gateway/internal/feed"
)

// Kind classifies a device by the feed family it belongs to.
type Kind string

const (
	KindLED    Kind = "led"
	KindFan    Kind = "fan"
	KindSensor Kind = "sensor"
)

// led is a binary light bound to one feed channel. The cached status
// mirrors the last value the gateway published or received.
type led struct {
	id          string
	description string
	status      string
	channel     *feed.Channel
}

// fan is a variable-speed fan bound to one feed channel. Speed is an
// integer percentage between 0 and 100.
type fan struct {
	id          string
	description string
	value       int
	channel     *feed.Channel
}

// sensor is a read-only measurement feed.
type sensor struct {
	id          string
	description string
	value       float64
	unit        string
	channel     *feed.Channel
}

// LEDSnapshot is the read view of an LED device.
type LEDSnapshot struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// FanSnapshot is the read view of a fan device.
type FanSnapshot struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Value       int    `json:"value"`
}

// SensorSnapshot is the read view of a sensor device.
type SensorSnapshot struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Value       float64 `json:"value"`
	Unit        string  `json:"unit"`
}

// Snapshot is a point-in-time copy of the whole registry, safe to hold
// after the registry has moved on.
type Snapshot struct {
	LEDs    []LEDSnapshot
	Fans    []FanSnapshot
	Sensors []SensorSnapshot
}

// latestInt reads the channel's cached value as an int, falling back to
// the device's last known value on parse failure.
func latestInt(ch *feed.Channel, fallback int) int {
	n, err := strconv.Atoi(ch.ReadLatest())
	if err != nil {
		return fallback
	}
	return n
}

// latestFloat reads the channel's cached value as a float, falling back
// to the device's last known value on parse failure.
func latestFloat(ch *feed.Channel, fallback float64) float64 {
	f, err := strconv.ParseFloat(ch.ReadLatest(), 64)
	if err != nil {
		return fallback
	}
	return f
}
