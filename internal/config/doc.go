// Package config defines the alarm clock settings and provides helpers to
// load, validate and save them in YAML format.
//
// Config groups broker credentials, reconnect backoff, loop cadence, audio
// clips, the optional quote-of-day notifier and the optional metrics and
// health listeners. Validation problems are reported as *ConfigurationError.
package config
