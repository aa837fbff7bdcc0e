package alarm

import (
	"fmt"
	"strings"
)

// Feed is the name of a remote pub/sub topic without any broker prefix.
type Feed string

// Feeds exchanged with the remote service.
const (
	// FeedSet carries the armed flag (ON/OFF) from clients.
	FeedSet Feed = "alarm-set"
	// FeedTime carries the "HH:MM" alarm time from clients.
	FeedTime Feed = "alarm-time"
	// FeedPing carries "ping" from clients and "pong" from the clock.
	FeedPing Feed = "alarm-server-ping"
	// FeedSnoozePoke carries the snooze button "ON" and the clock's "OFF" acknowledgement.
	FeedSnoozePoke Feed = "alarm-snooze-poke"
	// FeedRinging broadcasts the ringing status.
	FeedRinging Feed = "alarm-ringing"
)

// Payload values used on the feeds.
const (
	PayloadOn   = "ON"
	PayloadOff  = "OFF"
	PayloadPing = "ping"
	PayloadPong = "pong"
)

// InboundFeeds returns the feeds the clock subscribes to.
func InboundFeeds() []Feed {
	return []Feed{FeedSet, FeedTime, FeedPing, FeedSnoozePoke}
}

// Command is an inbound remote message decoded into one of
// ArmedChanged, TimeSet, Ping or SnoozePoke.
type Command interface {
	// Feed returns the feed the command arrived on.
	Feed() Feed

	isCommand()
}

// ArmedChanged requests the armed flag to be set to Armed.
type ArmedChanged struct {
	Armed bool
}

// TimeSet requests a new alarm time; Text is the raw "HH:MM" payload.
type TimeSet struct {
	Text string
}

// Ping asks the clock to answer with "pong" and chime.
type Ping struct{}

// SnoozePoke is a snooze button press awaiting acknowledgement.
type SnoozePoke struct{}

// Feed implements Command.
func (ArmedChanged) Feed() Feed { return FeedSet }

// Feed implements Command.
func (TimeSet) Feed() Feed { return FeedTime }

// Feed implements Command.
func (Ping) Feed() Feed { return FeedPing }

// Feed implements Command.
func (SnoozePoke) Feed() Feed { return FeedSnoozePoke }

func (ArmedChanged) isCommand() {}
func (TimeSet) isCommand()      {}
func (Ping) isCommand()         {}
func (SnoozePoke) isCommand()   {}

// Decode turns a feed name and its payload into a Command.
//
// Payloads the clock publishes itself decode to ErrEcho, unknown feeds to
// ErrUnknownTopic and malformed switches to a *ParseError. Time payloads are
// passed through verbatim because the state machine validates them.
//
//nolint:ireturn // Command is a closed sum type.
func Decode(feed Feed, payload []byte) (Command, error) {
	text := strings.TrimSpace(string(payload))

	switch feed {
	case FeedSet:
		armed, err := parseSwitch(text)
		if err != nil {
			return nil, err
		}

		return ArmedChanged{Armed: armed}, nil
	case FeedTime:
		return TimeSet{Text: text}, nil
	case FeedPing:
		switch {
		case strings.EqualFold(text, PayloadPing):
			return Ping{}, nil
		case strings.EqualFold(text, PayloadPong):
			return nil, ErrEcho
		default:
			return nil, &ParseError{Input: text, Reason: "expected ping"}
		}
	case FeedSnoozePoke:
		on, err := parseSwitch(text)
		if err != nil {
			return nil, err
		}

		if !on {
			return nil, ErrEcho
		}

		return SnoozePoke{}, nil
	case FeedRinging:
		return nil, ErrEcho
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, feed)
	}
}

func parseSwitch(text string) (bool, error) {
	switch {
	case strings.EqualFold(text, PayloadOn):
		return true, nil
	case strings.EqualFold(text, PayloadOff):
		return false, nil
	default:
		return false, &ParseError{Input: text, Reason: "expected ON or OFF"}
	}
}
