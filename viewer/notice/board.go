// Package notice manages the transient status message shown by the viewer:
// load warnings, screenshot errors, and similar one-off notices that expire
// after a fixed delay.
//
// Expiry is scheduled on a background goroutine, the only concurrency in the
// viewer core. The goroutine shares no mutable state with the main thread; it
// communicates solely through one immutable (event id, epoch) value pushed
// back into the window's event queue. A monotonically increasing epoch
// guards against a delayed expiry clearing a newer message.
package notice

import (
	"sync"
	"time"
)

// ExpiryDelay is how long a transient message stays on screen.
const ExpiryDelay = 5 * time.Second

// PushFunc enqueues a tagged user event into the window backend's event
// queue. It must be safe to call from a background goroutine.
type PushFunc func(eventID, epoch uint32)

// Board holds the current transient message and its epoch.
type Board struct {
	mu *sync.Mutex

	message string
	epoch   uint32

	eventID uint32
	push    PushFunc
	delay   time.Duration
}

// NewBoard creates a message board that schedules expiry events with the
// given tag through push.
//
// Parameters:
//   - eventID: the user-event id carried by expiry events
//   - push: enqueues the expiry event; called from a background goroutine
//   - options: functional options to configure the board
//
// Returns:
//   - *Board: the newly created board
func NewBoard(eventID uint32, push PushFunc, options ...BoardOption) *Board {
	b := &Board{
		mu:      &sync.Mutex{},
		eventID: eventID,
		push:    push,
		delay:   ExpiryDelay,
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// BoardOption is a functional option for configuring a Board.
type BoardOption func(*Board)

// WithExpiryDelay overrides the expiry delay. Values <= 0 keep the default.
func WithExpiryDelay(d time.Duration) BoardOption {
	return func(b *Board) {
		if d > 0 {
			b.delay = d
		}
	}
}

// Post displays a transient message and schedules its expiry. Posting an
// empty message is a no-op. Each post increments the epoch; the scheduled
// wake-up captures the post-increment value, so it can only ever clear the
// message it was posted for.
//
// Parameters:
//   - message: the text to display
func (b *Board) Post(message string) {
	if message == "" {
		return
	}

	b.mu.Lock()
	b.message = message
	b.epoch++
	expectedEpoch := b.epoch
	b.mu.Unlock()

	go func() {
		time.Sleep(b.delay)
		b.push(b.eventID, expectedEpoch)
	}()
}

// Expire clears the message if the carried epoch still matches the live
// epoch. A stale epoch is a silent no-op: a later Post has superseded the
// message this wake-up was scheduled for.
//
// Parameters:
//   - epoch: the epoch captured when the expiry was scheduled
//
// Returns:
//   - bool: true if the message was cleared
func (b *Board) Expire(epoch uint32) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if epoch != b.epoch {
		return false
	}
	b.message = ""
	return true
}

// Message returns the currently displayed message, or "" when none.
func (b *Board) Message() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.message
}

// EventID returns the user-event id expiry events are tagged with.
func (b *Board) EventID() uint32 {
	return b.eventID
}

// Epoch returns the live epoch. It never decreases.
func (b *Board) Epoch() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.epoch
}
