// Package health implements the gRPC health endpoint of the alarm clock.
//
// The reported status follows the broker connection: SERVING while the
// remote channel is connected, NOT_SERVING otherwise. A small client is
// provided for local probes.
package health
