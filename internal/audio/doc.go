// Package audio drives the speaker: it starts, stops and reports a looping
// alarm clip or a one-shot chime.
//
// Two backends exist. ExecPlayer runs an external command such as aplay for
// every loop of a clip; MPDPlayer queues the clip on an MPD daemon.
package audio
