package feed

import "errors"

// Sentinel errors for feed operations. Check with errors.Is().
var (
	// ErrNotConnected is returned when attempting operations on a
	// disconnected transport or channel.
	ErrNotConnected = errors.New("feed: not connected")

	// ErrConnectionFailed is returned when the initial broker connection
	// attempt fails.
	ErrConnectionFailed = errors.New("feed: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("feed: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("feed: subscribe failed")

	// ErrAlreadySubscribed is returned when a second subscription is
	// attempted for a feed that already has one. At most one subscription
	// may exist per feed per process.
	ErrAlreadySubscribed = errors.New("feed: already subscribed")

	// ErrDiscoveryFailed is returned when the feed-listing request fails.
	ErrDiscoveryFailed = errors.New("feed: discovery failed")
)
