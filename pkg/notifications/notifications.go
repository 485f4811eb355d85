// Package notifications carries emulator lifecycle notices to interested
// listeners.
//
// Notices are delivered synchronously on the goroutine that calls Notify,
// which is usually the emulation goroutine. Listeners must therefore return
// quickly and must not call back into the emulator.
//
// A listener stays registered for as long as its Subscription is held and
// not cancelled. Dropping the subscription with Unsubscribe is the only way
// to stop delivery.
package notifications

import (
	"sync"
)

// Notice identifies a lifecycle event.
type Notice string

// List of defined notices.
const (
	// a game has been loaded and the console is about to run
	GameLoaded Notice = "GameLoaded"

	// emulation has stopped and the game has been unloaded
	EmulationStopped Notice = "EmulationStopped"

	// a save state has been restored
	StateLoaded Notice = "StateLoaded"

	// the console has been reset (soft or hard)
	GameReset Notice = "GameReset"

	// emulation paused or resumed; not acted upon by the streamer
	EmulationPaused  Notice = "EmulationPaused"
	EmulationResumed Notice = "EmulationResumed"
)

// Listener receives notices.
type Listener interface {
	Notify(notice Notice)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(notice Notice)

// Notify calls f(notice).
func (f ListenerFunc) Notify(notice Notice) {
	f(notice)
}

// Bus fans notices out to subscribed listeners. The zero value is not usable;
// use NewBus.
type Bus struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[uint64]Listener
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{
		listeners: make(map[uint64]Listener),
	}
}

// Subscribe registers l and returns the handle that keeps it registered.
func (b *Bus) Subscribe(l Listener) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.listeners[id] = l

	return &Subscription{bus: b, id: id}
}

// Notify delivers notice to every listener subscribed at the time of the
// call. Listeners are called outside the bus lock so they may unsubscribe.
func (b *Bus) Notify(notice Notice) {
	b.mu.RLock()
	targets := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		targets = append(targets, l)
	}
	b.mu.RUnlock()

	for _, l := range targets {
		l.Notify(notice)
	}
}

// Len returns the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	delete(b.listeners, id)
	b.mu.Unlock()
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	once sync.Once
	bus  *Bus
	id   uint64
}

// Unsubscribe stops delivery to the listener. It is safe to call more than
// once and on a nil Subscription.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.bus.remove(s.id)
	})
}
