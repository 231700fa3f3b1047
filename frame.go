// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ksignal

import "unsafe"

// SignalFrame is the record written to the user stack when a handler is
// entered: the ucontext handed to the handler, the siginfo, and the
// interrupted trap frame consumed again by Restore.
//
// The frame lives in user memory. User code owns it between
// handleSignal and sigreturn; the kernel re-reads it from wherever the
// stack pointer then points.
type SignalFrame struct {
	UContext UContext
	Info     SignalInfo
	TF       TrapFrame
}

const (
	signalFrameSize = unsafe.Sizeof(SignalFrame{})
	// Frames are placed on 16-byte boundaries, the strictest stack
	// alignment among the supported targets.
	signalFrameAlign = 16

	frameUContextOffset = unsafe.Offsetof(SignalFrame{}.UContext)
	frameInfoOffset     = unsafe.Offsetof(SignalFrame{}.Info)
)

// writeSignalFrame stores the frame at the user address addr.
func writeSignalFrame(vm Vm, addr uintptr, f *SignalFrame) error {
	b := unsafe.Slice((*byte)(unsafe.Pointer(f)), signalFrameSize)
	return vm.Write(addr, b)
}

// readSignalFrame loads the frame from the user address addr.
func readSignalFrame(vm Vm, addr uintptr, f *SignalFrame) error {
	b := unsafe.Slice((*byte)(unsafe.Pointer(f)), signalFrameSize)
	return vm.Read(addr, b)
}
