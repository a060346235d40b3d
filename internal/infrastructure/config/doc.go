// Package config loads and validates gateway configuration.
//
// Configuration comes from a YAML file with environment variable overrides
// for the settings that differ between deployments (port, Mongo URI, broker
// host). Defaults are chosen so a local development instance starts with
// nothing but a Mongo server running.
package config
