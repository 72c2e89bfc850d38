// Package typing converts keystroke activity into start/stop typing signals
// with a trailing quiet timeout, one timer per conversation.
package typing

import (
	"sync"
	"time"
)

// QuietWindow is how long after the last keystroke a stop signal fires.
const QuietWindow = 3 * time.Second

// Emitter receives the start/stop signals. Signals strictly alternate per
// conversation.
type Emitter func(conversationID string, typing bool)

// quietTimer pairs the pending timer with its deadline. The deadline lets an
// in-flight expiry detect that the timer was re-armed under it.
type quietTimer struct {
	timer    *time.Timer
	deadline time.Time
}

// Debouncer tracks per-conversation quiet timers.
type Debouncer struct {
	emit  Emitter
	quiet time.Duration

	mu     sync.Mutex
	timers map[string]*quietTimer
}

// NewDebouncer creates a debouncer delivering signals to emit.
func NewDebouncer(emit Emitter) *Debouncer {
	return &Debouncer{
		emit:   emit,
		quiet:  QuietWindow,
		timers: map[string]*quietTimer{},
	}
}

// NotifyActivity records a keystroke in a conversation. The first call emits
// a start signal and arms the quiet timer; subsequent calls re-arm it without
// emitting again.
func (d *Debouncer) NotifyActivity(conversationID string) {
	d.mu.Lock()
	if e, ok := d.timers[conversationID]; ok {
		e.timer.Stop()
		e.timer.Reset(d.quiet)
		e.deadline = time.Now().Add(d.quiet)
		d.mu.Unlock()
		return
	}
	d.timers[conversationID] = &quietTimer{
		timer: time.AfterFunc(d.quiet, func() {
			d.expire(conversationID)
		}),
		deadline: time.Now().Add(d.quiet),
	}
	d.mu.Unlock()

	d.emit(conversationID, true)
}

// StopTyping cancels the pending timer and emits stop immediately (user sent
// the message or navigated away). No-op if no timer is outstanding.
func (d *Debouncer) StopTyping(conversationID string) {
	d.mu.Lock()
	e, ok := d.timers[conversationID]
	if ok {
		e.timer.Stop()
		delete(d.timers, conversationID)
	}
	d.mu.Unlock()

	if ok {
		d.emit(conversationID, false)
	}
}

// Reset cancels all timers without emitting anything (logout teardown).
func (d *Debouncer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, e := range d.timers {
		e.timer.Stop()
		delete(d.timers, id)
	}
}

// expire fires on the quiet timeout.
func (d *Debouncer) expire(conversationID string) {
	d.mu.Lock()
	e, ok := d.timers[conversationID]
	if ok && time.Now().Before(e.deadline) {
		// A re-arm won the race while this expiry was pending; the reset
		// timer fires again at the new deadline.
		d.mu.Unlock()
		return
	}
	if ok {
		delete(d.timers, conversationID)
	}
	d.mu.Unlock()

	// ok is false when StopTyping or Reset raced the timer; they own the
	// stop signal in that case.
	if ok {
		d.emit(conversationID, false)
	}
}
