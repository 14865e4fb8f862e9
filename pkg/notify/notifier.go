package notify

import (
	"context"
	"errors"
	"fmt"
)

// Message is a rendered notification.
type Message struct {
	Title string
	Text  string
	// Data carries machine-readable fields for channels that support them.
	Data map[string]string
}

// Notifier delivers a message to one channel.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
	Name() string
}

// Multi fans a message out to every channel. All channels are attempted;
// their errors are joined.
type Multi []Notifier

func (m Multi) Name() string {
	return "multi"
}

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Channels lists the names of the configured channels.
func (m Multi) Channels() []string {
	names := make([]string, 0, len(m))
	for _, n := range m {
		names = append(names, n.Name())
	}
	return names
}
