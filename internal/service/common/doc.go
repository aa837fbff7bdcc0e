// Package common holds helpers shared by the process entry points.
//
// It guards against a second alarm-clock process driving the same speaker
// and broker session.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
