// Package doorcam watches the door feed and, while the door is open,
// repeatedly classifies camera frames and publishes the labels to the
// AI feed.
//
// Frame capture and classification are injected; the package only owns
// the feed plumbing between them.
package doorcam

import (
	"context"
	"sync"
	"time"

	"github.com/yolohome/gateway/internal/feed"
	"github.com/yolohome/gateway/internal/infrastructure/config"
	"github.com/yolohome/gateway/internal/infrastructure/logging"
)

// doorOpenValue is the payload the door feed publishes when the door
// opens. Any other payload counts as closed.
const doorOpenValue = "1"

// classifyTimeout bounds one capture-and-classify round trip.
const classifyTimeout = 10 * time.Second

// FrameSource captures a single camera frame.
type FrameSource interface {
	Capture(ctx context.Context) ([]byte, error)
}

// Classifier labels a camera frame, typically with the recognized
// person's name or "unknown".
type Classifier interface {
	Classify(ctx context.Context, frame []byte) (string, error)
}

// Watcher runs the capture loop between door-open and door-closed
// events. Rebind must be called with each rebuild's fresh transport; the
// watcher holds no connection of its own.
type Watcher struct {
	cfg        config.DoorCamConfig
	frames     FrameSource
	classifier Classifier
	logger     *logging.Logger
	interval   time.Duration

	mu        sync.Mutex
	transport feed.Transport
	stopLoop  context.CancelFunc
}

// New creates a door watcher. It is inert until Rebind hands it a
// transport.
func New(cfg config.DoorCamConfig, frames FrameSource, classifier Classifier, logger *logging.Logger) *Watcher {
	if logger == nil {
		logger = logging.Default()
	}
	interval := time.Duration(cfg.Interval) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	return &Watcher{
		cfg:        cfg,
		frames:     frames,
		classifier: classifier,
		logger:     logger.With("component", "doorcam"),
		interval:   interval,
	}
}

// Rebind subscribes the door feed on a fresh transport. A capture loop
// running against the previous transport is stopped; the previous
// transport itself was closed by the registry teardown, so nothing is
// unsubscribed here.
func (w *Watcher) Rebind(transport feed.Transport) {
	w.mu.Lock()
	if w.stopLoop != nil {
		w.stopLoop()
		w.stopLoop = nil
	}
	w.transport = transport
	w.mu.Unlock()

	if err := transport.Subscribe(w.cfg.DoorFeed, w.onDoorEvent); err != nil {
		w.logger.Error("door feed subscribe failed", "feed", w.cfg.DoorFeed, "error", err)
		return
	}
	w.logger.Info("door watcher bound", "door_feed", w.cfg.DoorFeed, "ai_feed", w.cfg.AIFeed)
}

// onDoorEvent starts the capture loop on door-open and stops it on any
// other payload. The loop runs off the transport's receive goroutine.
func (w *Watcher) onDoorEvent(_ string, payload []byte) {
	if string(payload) != doorOpenValue {
		w.stop()
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopLoop != nil {
		// Loop already running; repeated door-open payloads are noise.
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.stopLoop = cancel
	go w.captureLoop(ctx)
}

func (w *Watcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopLoop != nil {
		w.stopLoop()
		w.stopLoop = nil
	}
}

// captureLoop classifies frames at the configured interval until the
// door closes or the watcher rebinds.
func (w *Watcher) captureLoop(ctx context.Context) {
	w.logger.Info("door open, capture loop started", "interval", w.interval)
	defer w.logger.Info("capture loop stopped")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.classifyAndPublish(ctx)
	for {
		select {
		case <-ticker.C:
			w.classifyAndPublish(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// classifyAndPublish captures one frame, classifies it, and publishes
// the label to the AI feed.
func (w *Watcher) classifyAndPublish(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	frame, err := w.frames.Capture(ctx)
	if err != nil {
		w.logger.Warn("frame capture failed", "error", err)
		return
	}

	label, err := w.classifier.Classify(ctx, frame)
	if err != nil {
		w.logger.Warn("classification failed", "error", err)
		return
	}

	w.mu.Lock()
	transport := w.transport
	w.mu.Unlock()
	if transport == nil {
		return
	}

	if err := transport.Publish(w.cfg.AIFeed, label); err != nil {
		w.logger.Warn("ai feed publish failed", "label", label, "error", err)
		return
	}
	w.logger.Info("door classification published", "label", label)
}
