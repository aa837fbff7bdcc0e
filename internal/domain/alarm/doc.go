// Package alarm contains core domain types for the alarm clock.
//
// It defines Config (the single alarm slot and its ringing status), the
// "HH:MM" schedule arithmetic, the closed set of inbound commands decoded
// from remote feeds, and the Clock abstraction used to read wall time.
package alarm
