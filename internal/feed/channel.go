package feed

import (
	"sync"
)

// State describes a channel's connection state.
type State int

const (
	// StateDisconnected is the initial state and the terminal state after
	// Disconnect or a broker connection loss.
	StateDisconnected State = iota
	// StateConnected means the subscription is active.
	StateConnected
	// StateError means the subscription could not be established.
	StateError
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "disconnected"
	}
}

// inboxSize is the buffer between the transport's receive goroutine and the
// channel's drain goroutine. Overflow drops the oldest queued payload:
// only the most recent value matters.
const inboxSize = 16

// Channel is one subscribe+publish binding to a single feed.
//
// The transport writes inbound payloads into the channel's inbox; a drain
// goroutine owned by the channel applies them to the cached last value.
// ReadLatest never touches the network. Publish waits for broker
// acknowledgment and updates the cache only on success.
//
// Channels do not reconnect. A lost broker connection moves the channel to
// StateDisconnected until the next registry rebuild replaces it.
type Channel struct {
	key       string
	transport Transport

	mu    sync.RWMutex
	last  string
	state State

	inbox     chan string
	done      chan struct{}
	closeOnce sync.Once
}

// NewChannel creates a channel for the given feed key with a discovery-time
// initial value. The channel is not subscribed until Connect is called.
func NewChannel(key, initial string, transport Transport) *Channel {
	return &Channel{
		key:       key,
		transport: transport,
		last:      initial,
		state:     StateDisconnected,
		inbox:     make(chan string, inboxSize),
		done:      make(chan struct{}),
	}
}

// Key returns the feed identifier.
func (c *Channel) Key() string {
	return c.key
}

// Connect opens the subscription and starts the drain goroutine.
func (c *Channel) Connect() error {
	if err := c.transport.Subscribe(c.key, c.enqueue); err != nil {
		c.setState(StateError)
		return err
	}

	go c.drain()

	c.setState(StateConnected)
	return nil
}

// enqueue pushes an inbound payload into the inbox, dropping the oldest
// queued payload on overflow. Last write wins either way.
func (c *Channel) enqueue(_ string, payload []byte) {
	value := string(payload)
	for {
		select {
		case c.inbox <- value:
			return
		default:
		}
		select {
		case <-c.inbox:
		default:
		}
	}
}

// drain applies inbound payloads to the cached value until Disconnect.
func (c *Channel) drain() {
	for {
		select {
		case value := <-c.inbox:
			c.mu.Lock()
			c.last = value
			c.mu.Unlock()
		case <-c.done:
			return
		}
	}
}

// Publish sends a value to the broker. On success the cached last value is
// updated before returning; on failure the cache is left untouched and the
// error is returned for the caller to swallow or report.
func (c *Channel) Publish(value string) error {
	if err := c.transport.Publish(c.key, value); err != nil {
		return err
	}

	c.mu.Lock()
	c.last = value
	c.mu.Unlock()
	return nil
}

// ReadLatest returns the most recent cached value without blocking.
func (c *Channel) ReadLatest() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// MarkDisconnected records a broker-side connection loss. The channel stays
// disconnected; reconnection only happens via a registry rebuild.
func (c *Channel) MarkDisconnected() {
	c.setState(StateDisconnected)
}

// Disconnect tears down the subscription and stops the drain goroutine.
// Idempotent: calling it twice is harmless.
func (c *Channel) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.transport.Unsubscribe(c.key)
		c.setState(StateDisconnected)
	})
	return err
}
