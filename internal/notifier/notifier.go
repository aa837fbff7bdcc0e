package notifier

import "context"

// Notifier is invoked once per ringing to silent transition.
// Callers log returned errors and carry on.
type Notifier interface {
	Notify(ctx context.Context) error
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context) error

// Notify calls f.
func (f Func) Notify(ctx context.Context) error {
	return f(ctx)
}

// Nop does nothing; it stands in when the quote-of-day feature is disabled.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context) error {
	return nil
}
