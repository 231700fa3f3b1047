// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ksignal implements POSIX signal delivery for a user-space
// kernel: per-thread and per-process pending state, disposition
// resolution, signal-frame construction on return to user space, and
// the paired sigreturn restore path.
//
// The package owns signal semantics only. The trap-frame register
// layout, user-memory access and the wake primitive are collaborator
// contracts declared here and supplied by the embedding kernel.
package ksignal

// Tid identifies a thread within its process.
type Tid uint32

// Vm provides access to the user address space of a process.
// Implementations must report faults synchronously and must not
// suspend; signal delivery calls Vm while returning to user space.
type Vm interface {
	// Read copies len(b) bytes from the user address addr into b.
	Read(addr uintptr, b []byte) error
	// Write copies len(b) bytes from b to the user address addr.
	Write(addr uintptr, b []byte) error
}

// Event is the wake primitive used to block a thread until a signal
// becomes pending. Signal injection never blocks; senders only Notify.
type Event interface {
	// Notify wakes all current listeners. It must be safe to call from
	// any kernel context and must not block.
	Notify()
	// Listen returns a channel closed at the next Notify.
	// The listener must re-check pending state after registering and
	// before blocking on the channel, or a concurrent send is missed.
	Listen() <-chan struct{}
}
