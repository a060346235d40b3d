// Package device holds the in-memory registry of LED, fan and sensor
// devices bound to the active Adafruit IO account.
//
// The registry is rebuilt wholesale when a user connects: the previous
// device set is torn down, feeds are rediscovered over REST and fresh
// channels are subscribed on a new broker transport. Rebuilds are
// serialized; a second rebuild arriving while one is in flight is
// rejected rather than queued. Between rebuilds the registry only serves
// reads and device commands.
package device
