// Package mqtt connects the alarm clock to the remote pub/sub service.
//
// Channel wraps a paho MQTT client: it connects with a bounded exponential
// backoff, re-subscribes the inbound feeds on every connect, decodes inbound
// messages into alarm commands at the boundary and publishes outbound state.
// Reconnect waits honour the process context so shutdown is never blocked.
package mqtt
