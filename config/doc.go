// Package config loads and validates the bridge configuration. Settings
// come from three layers applied in order: built-in defaults, an optional
// JSON file and VRAPI_* environment variable overrides. Every field has a
// working default, so the server starts with no file at all.
package config
