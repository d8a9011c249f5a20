// Package config loads the service configuration: tuning knobs from
// environment variables, and the set of synchronized accounts from a
// TOML file whose entries are tagged unions keyed on the backend type.
package config
