// Package clock runs the alarm clock: the state machine that owns the alarm
// slot, the reconciliation loop that ticks it, and the process wiring that
// connects both to the broker, the speaker and the optional notifier.
package clock
