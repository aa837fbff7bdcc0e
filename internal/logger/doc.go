// Package logger wraps zap with a shared console logger and helpers that
// read the logger from a context.
//
// The alarm loop, the MQTT callbacks and the notifier all receive a context
// and log through the logger stored in it, so every line carries the
// component name set with WithName.
package logger
