package feed

import (
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/yolohome/gateway/internal/infrastructure/config"
)

const (
	// defaultConnectTimeout is the maximum time to wait for the initial
	// broker connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultOpTimeout is the maximum time to wait for subscribe and
	// unsubscribe acknowledgments.
	defaultOpTimeout = 5 * time.Second

	// disconnectQuiesce is the time allowed for in-flight operations when
	// closing, in milliseconds.
	disconnectQuiesce = 500
)

// MQTTDialer opens paho-backed transports against the Adafruit IO broker.
type MQTTDialer struct {
	cfg config.AdafruitConfig
}

// NewMQTTDialer creates a dialer from the Adafruit broker configuration.
func NewMQTTDialer(cfg config.AdafruitConfig) *MQTTDialer {
	return &MQTTDialer{cfg: cfg}
}

// Dial connects to the broker with the account's credentials.
//
// Auto-reconnect is deliberately disabled: when the connection drops, every
// channel on this transport stays disconnected until the next session
// rebuild dials a fresh transport.
func (d *MQTTDialer) Dial(account Account) (Transport, error) {
	scheme := "tcp"
	if d.cfg.Broker.TLS {
		scheme = "ssl"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, d.cfg.Broker.Host, d.cfg.Broker.Port)).
		SetClientID("yolohome-" + uuid.NewString()[:8]).
		SetUsername(account.Username).
		SetPassword(account.Key).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(defaultConnectTimeout)

	if d.cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	t := &mqttTransport{
		account:       account,
		qos:           byte(d.cfg.QoS),
		publishWait:   time.Duration(d.cfg.PublishTimeout) * time.Second,
		subscriptions: make(map[string]MessageHandler),
	}

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		t.handleDisconnect(err)
	})

	t.client = pahomqtt.NewClient(opts)
	token := t.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	t.connected = true
	return t, nil
}

// mqttTransport is the paho-backed Transport implementation.
type mqttTransport struct {
	client      pahomqtt.Client
	account     Account
	qos         byte
	publishWait time.Duration

	subscriptions map[string]MessageHandler
	subMu         sync.Mutex

	connected bool
	connMu    sync.RWMutex

	onDisconnect func(err error)
	callbackMu   sync.RWMutex
}

// topicFor maps a feed key to its Adafruit IO MQTT topic.
func (t *mqttTransport) topicFor(feedKey string) string {
	return t.account.Username + "/feeds/" + feedKey
}

// feedKeyFrom extracts the feed key from an inbound topic.
func feedKeyFrom(topic string) string {
	if i := strings.LastIndex(topic, "/"); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

func (t *mqttTransport) handleDisconnect(err error) {
	t.connMu.Lock()
	t.connected = false
	t.connMu.Unlock()

	t.callbackMu.RLock()
	callback := t.onDisconnect
	t.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

func (t *mqttTransport) isConnected() bool {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	return t.connected && t.client.IsConnected()
}

// Subscribe registers a handler for the feed. Enforces the one-subscription-
// per-feed invariant.
func (t *mqttTransport) Subscribe(feedKey string, handler MessageHandler) error {
	if feedKey == "" {
		return fmt.Errorf("%w: empty feed key", ErrSubscribeFailed)
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler", ErrSubscribeFailed)
	}
	if !t.isConnected() {
		return ErrNotConnected
	}

	t.subMu.Lock()
	if _, exists := t.subscriptions[feedKey]; exists {
		t.subMu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadySubscribed, feedKey)
	}
	t.subscriptions[feedKey] = handler
	t.subMu.Unlock()

	token := t.client.Subscribe(t.topicFor(feedKey), t.qos, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		handler(feedKeyFrom(msg.Topic()), msg.Payload())
	})
	if !token.WaitTimeout(defaultOpTimeout) {
		t.dropSubscription(feedKey)
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultOpTimeout)
	}
	if err := token.Error(); err != nil {
		t.dropSubscription(feedKey)
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}

func (t *mqttTransport) dropSubscription(feedKey string) {
	t.subMu.Lock()
	delete(t.subscriptions, feedKey)
	t.subMu.Unlock()
}

// Unsubscribe removes the subscription for the feed.
func (t *mqttTransport) Unsubscribe(feedKey string) error {
	t.subMu.Lock()
	_, exists := t.subscriptions[feedKey]
	delete(t.subscriptions, feedKey)
	t.subMu.Unlock()

	if !exists {
		return nil
	}
	if !t.isConnected() {
		// Connection already gone; the broker dropped the subscription
		// with it.
		return nil
	}

	token := t.client.Unsubscribe(t.topicFor(feedKey))
	if !token.WaitTimeout(defaultOpTimeout) {
		return fmt.Errorf("%w: unsubscribe timeout", ErrNotConnected)
	}
	return token.Error()
}

// Publish sends a value to the feed, waiting for acknowledgment.
func (t *mqttTransport) Publish(feedKey, value string) error {
	if feedKey == "" {
		return fmt.Errorf("%w: empty feed key", ErrPublishFailed)
	}
	if !t.isConnected() {
		return ErrNotConnected
	}

	token := t.client.Publish(t.topicFor(feedKey), t.qos, false, value)
	if !token.WaitTimeout(t.publishWait) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, t.publishWait)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// SetOnDisconnect registers the connection-lost callback.
func (t *mqttTransport) SetOnDisconnect(fn func(err error)) {
	t.callbackMu.Lock()
	t.onDisconnect = fn
	t.callbackMu.Unlock()
}

// Close disconnects from the broker. Idempotent.
func (t *mqttTransport) Close() error {
	t.connMu.Lock()
	wasConnected := t.connected
	t.connected = false
	t.connMu.Unlock()

	if wasConnected {
		t.client.Disconnect(disconnectQuiesce)
	}
	return nil
}
