// Package notifier implements the side effect run when a ringing alarm is
// silenced.
//
// The only real notifier is QOD: it fetches a quote of the day, strips its
// HTML and texts it through Twilio. Nop is used when the feature is off.
package notifier
