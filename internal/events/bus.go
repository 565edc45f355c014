package events

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// PreCommand fires before a host command runs. Any listener error vetoes the command.
const PreCommand = "pre-command"

type Event struct {
	Type    string
	Command string
	Args    []string
}

// Listener handles one event. A non-nil error stops delivery and is returned from Fire.
type Listener func(ctx context.Context, ev Event) error

type subscription struct {
	id       int
	listener Listener
}

// Bus is a synchronous in-process event bus.
type Bus struct {
	mu        sync.Mutex
	subs      map[string][]subscription
	nextSubID int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers l for eventType and returns a function removing it.
func (b *Bus) Subscribe(eventType string, l Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSubID
	b.nextSubID++
	b.subs[eventType] = append(b.subs[eventType], subscription{id: id, listener: l})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs[eventType] = slices.DeleteFunc(b.subs[eventType], func(s subscription) bool {
			return s.id == id
		})
	}
}

// Fire delivers an event to the listeners of eventType in subscription order.
// Listeners run on the caller's goroutine without the bus lock held, so they
// may fire further events.
func (b *Bus) Fire(ctx context.Context, eventType, command string, args []string) error {
	ev := Event{
		Type:    eventType,
		Command: command,
		Args:    slices.Clone(args),
	}

	b.mu.Lock()
	listeners := slices.Clone(b.subs[eventType])
	b.mu.Unlock()

	for _, s := range listeners {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.listener(ctx, ev); err != nil {
			return fmt.Errorf("%s %s: %w", eventType, command, err)
		}
	}
	return nil
}
