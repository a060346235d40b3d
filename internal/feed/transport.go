package feed

// Account holds the broker credentials of a single Adafruit IO account.
// The key doubles as the MQTT password and the REST API key.
type Account struct {
	Username string
	Key      string
}

// Valid reports whether both credential halves are present.
func (a Account) Valid() bool {
	return a.Username != "" && a.Key != ""
}

// MessageHandler is the callback signature for inbound feed messages.
//
// Handlers are invoked from the transport's receive goroutine and must not
// block for extended periods.
type MessageHandler func(feedKey string, payload []byte)

// Transport is a per-account broker connection with per-feed subscriptions.
//
// Implementations must be safe for concurrent use. At most one subscription
// may exist per feed key; a second Subscribe for the same key returns
// ErrAlreadySubscribed.
type Transport interface {
	// Subscribe registers a handler for messages on the given feed.
	Subscribe(feedKey string, handler MessageHandler) error

	// Unsubscribe removes the subscription for the given feed. Removing a
	// subscription that does not exist is not an error.
	Unsubscribe(feedKey string) error

	// Publish sends a value to the given feed, waiting for broker
	// acknowledgment up to the configured timeout.
	Publish(feedKey, value string) error

	// SetOnDisconnect registers a callback invoked when the broker
	// connection is lost. The transport does not reconnect.
	SetOnDisconnect(fn func(err error))

	// Close tears down the broker connection. Idempotent.
	Close() error
}

// Dialer opens a Transport for an account. The registry dials one transport
// per rebuild; the previous transport is closed during teardown.
type Dialer interface {
	Dial(account Account) (Transport, error)
}
