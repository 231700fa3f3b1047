// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ksignal

import "sync"

// NotifyEvent is the default Event implementation: a broadcast over a
// replaceable channel. Each Notify closes the current channel and
// installs a fresh one, waking every listener registered before the
// close.
//
// The zero value is not usable; construct with NewNotifyEvent.
type NotifyEvent struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewNotifyEvent creates a ready-to-use NotifyEvent.
func NewNotifyEvent() *NotifyEvent {
	return &NotifyEvent{ch: make(chan struct{})}
}

// Notify wakes all current listeners.
// Implements Event interface.
func (e *NotifyEvent) Notify() {
	e.mu.Lock()
	close(e.ch)
	e.ch = make(chan struct{})
	e.mu.Unlock()
}

// Listen returns a channel closed at the next Notify.
// Implements Event interface.
func (e *NotifyEvent) Listen() <-chan struct{} {
	e.mu.Lock()
	ch := e.ch
	e.mu.Unlock()
	return ch
}

// Compile-time interface assertion
var _ Event = (*NotifyEvent)(nil)
