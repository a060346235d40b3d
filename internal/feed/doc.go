// Package feed manages the gateway's connection to Adafruit IO feeds.
//
// A feed is a single named pub/sub channel on the remote broker (for
// example "dadn-led-1"). The package provides:
//
//   - Transport: a per-account MQTT connection with per-feed subscriptions
//   - Channel: one subscribe+publish binding to a single feed, caching the
//     last received value for non-blocking reads
//   - Discovery: the REST feed-listing used to enumerate an account's feeds
//
// Channels never reconnect on their own. When the broker connection drops
// they mark themselves disconnected and stay that way until the next
// session rebuild replaces them. This mirrors the behaviour of the rest of
// the system: reconnection is a whole-registry operation, not a per-feed
// one.
package feed
