// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ksignal

// SignalStack describes a thread's alternate signal handler stack,
// bit-exact with the kernel stack_t on 64-bit targets.
//
// A handler runs on this stack when its action has SA_ONSTACK set and
// the stack is not disabled.
type SignalStack struct {
	SP    uintptr
	Flags uint32
	_     [4]byte
	Size  uintptr
}

// DefaultSignalStack returns the initial state: no alternate stack.
func DefaultSignalStack() SignalStack {
	return SignalStack{Flags: SS_DISABLE}
}

// Disabled reports whether the alternate stack cannot be used.
func (s *SignalStack) Disabled() bool {
	return s.Flags&SS_DISABLE != 0 || s.Size == 0
}
