// Package telemetry records sensor readings to InfluxDB for history
// queries and dashboards.
//
// Writes are non-blocking and batched; the gateway never waits on the
// time-series store. The recorder is optional and the rest of the
// system runs unchanged when it is disabled.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/yolohome/gateway/internal/device"
	"github.com/yolohome/gateway/internal/infrastructure/config"
	"github.com/yolohome/gateway/internal/infrastructure/logging"
)

// Sentinel errors. Check with errors.Is().
var (
	ErrDisabled         = errors.New("telemetry: disabled in configuration")
	ErrConnectionFailed = errors.New("telemetry: connection failed")
)

const (
	defaultConnectTimeout = 10 * time.Second

	// millisecondsPerSecond converts seconds to milliseconds for the
	// InfluxDB client options.
	millisecondsPerSecond = 1000

	// sampleInterval is how often the recorder samples the registry.
	sampleInterval = 10 * time.Second
)

// Recorder writes sensor snapshots to InfluxDB.
type Recorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	logger   *logging.Logger
	snapshot func() device.Snapshot

	connected bool
	mu        sync.RWMutex
}

// Connect creates a recorder against the configured InfluxDB server and
// verifies connectivity with a ping.
func Connect(cfg config.InfluxDBConfig, snapshot func() device.Snapshot, logger *logging.Logger) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if logger == nil {
		logger = logging.Default()
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10
	}

	// #nosec G115 -- values validated above to be positive
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	r := &Recorder{
		client:    client,
		writeAPI:  client.WriteAPI(cfg.Org, cfg.Bucket),
		logger:    logger.With("component", "telemetry"),
		snapshot:  snapshot,
		connected: true,
	}

	go r.handleWriteErrors(r.writeAPI.Errors())

	return r, nil
}

// handleWriteErrors logs async write failures from the WriteAPI.
func (r *Recorder) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		r.logger.Warn("telemetry write failed", "error", err)
	}
}

// Run samples the registry on a fixed interval and records every sensor
// reading. It blocks until the context is cancelled.
func (r *Recorder) Run(ctx context.Context) {
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, s := range r.snapshot().Sensors {
				r.RecordSensor(s.ID, s.Value, s.Unit)
			}
		case <-ctx.Done():
			return
		}
	}
}

// RecordSensor writes a single sensor reading. Non-blocking; the point
// is batched and sent asynchronously.
func (r *Recorder) RecordSensor(feedKey string, value float64, unit string) {
	if !r.isConnected() {
		return
	}

	point := write.NewPoint(
		"sensor_readings",
		map[string]string{
			"feed": feedKey,
			"unit": unit,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)
	r.writeAPI.WritePoint(point)
}

func (r *Recorder) isConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}

// Close flushes pending writes and shuts down the client.
func (r *Recorder) Close() error {
	if r.client == nil {
		return nil
	}

	r.mu.Lock()
	r.connected = false
	r.mu.Unlock()

	r.writeAPI.Flush()
	r.client.Close()
	return nil
}
