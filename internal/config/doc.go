// Package config loads, normalizes, and validates dropcast configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DROPCAST_MASTODON_ACCESS_TOKEN. The Config type centralizes every knob the
// daemon and CLI need, from the drop and sorted directories to the cooldown
// policy used by the publish worker.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
