// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build amd64

package ksignal

import (
	"encoding/binary"
	"unsafe"
)

// TrapFrame is the x86-64 user register file saved at kernel entry,
// laid out like the kernel pt_regs.
type TrapFrame struct {
	R15    uint64
	R14    uint64
	R13    uint64
	R12    uint64
	RBP    uint64
	RBX    uint64
	R11    uint64
	R10    uint64
	R9     uint64
	R8     uint64
	RAX    uint64
	RCX    uint64
	RDX    uint64
	RSI    uint64
	RDI    uint64
	OrigAX uint64
	RIP    uint64
	CS     uint64
	RFLAGS uint64
	RSP    uint64
	SS     uint64
}

// IP returns the instruction pointer.
func (tf *TrapFrame) IP() uintptr { return uintptr(tf.RIP) }

// SetIP sets the instruction pointer.
func (tf *TrapFrame) SetIP(v uintptr) { tf.RIP = uint64(v) }

// SP returns the stack pointer.
func (tf *TrapFrame) SP() uintptr { return uintptr(tf.RSP) }

// SetSP sets the stack pointer.
func (tf *TrapFrame) SetSP(v uintptr) { tf.RSP = uint64(v) }

// Arg0 returns the first function call argument (rdi).
func (tf *TrapFrame) Arg0() uintptr { return uintptr(tf.RDI) }

// SetArg0 sets the first function call argument.
func (tf *TrapFrame) SetArg0(v uintptr) { tf.RDI = uint64(v) }

// Arg1 returns the second function call argument (rsi).
func (tf *TrapFrame) Arg1() uintptr { return uintptr(tf.RSI) }

// SetArg1 sets the second function call argument.
func (tf *TrapFrame) SetArg1(v uintptr) { tf.RSI = uint64(v) }

// Arg2 returns the third function call argument (rdx).
func (tf *TrapFrame) Arg2() uintptr { return uintptr(tf.RDX) }

// SetArg2 sets the third function call argument.
func (tf *TrapFrame) SetArg2(v uintptr) { tf.RDX = uint64(v) }

// pushedRASize is how far the stack pointer moves when the return
// address is installed. x86-64 has no link register; the restorer
// address is pushed onto the user stack.
const pushedRASize = 8

// setReturnAddr pushes the restorer address onto the user stack so the
// handler's ret transfers to it.
func setReturnAddr(tf *TrapFrame, vm Vm, addr uintptr) error {
	sp := tf.SP() - pushedRASize
	var buf [pushedRASize]byte
	binary.NativeEndian.PutUint64(buf[:], uint64(addr))
	if err := vm.Write(sp, buf[:]); err != nil {
		return err
	}
	tf.SetSP(sp)
	return nil
}

// MContext is the x86-64 register snapshot handed to user handlers,
// bit-exact with the kernel struct sigcontext (256 bytes).
type MContext struct {
	R8      uint64
	R9      uint64
	R10     uint64
	R11     uint64
	R12     uint64
	R13     uint64
	R14     uint64
	R15     uint64
	RDI     uint64
	RSI     uint64
	RBP     uint64
	RBX     uint64
	RDX     uint64
	RAX     uint64
	RCX     uint64
	RSP     uint64
	RIP     uint64
	RFLAGS  uint64
	CS      uint16
	GS      uint16
	FS      uint16
	SS      uint16
	Err     uint64
	Trapno  uint64
	Oldmask uint64
	CR2     uint64
	Fpstate uint64
	_       [8]uint64
}

const (
	_ = 256 - unsafe.Sizeof(MContext{})
	_ = unsafe.Sizeof(MContext{}) - 256
)

// NewMContext snapshots the trap frame's registers.
func NewMContext(tf *TrapFrame) MContext {
	return MContext{
		R8: tf.R8, R9: tf.R9, R10: tf.R10, R11: tf.R11,
		R12: tf.R12, R13: tf.R13, R14: tf.R14, R15: tf.R15,
		RDI: tf.RDI, RSI: tf.RSI, RBP: tf.RBP, RBX: tf.RBX,
		RDX: tf.RDX, RAX: tf.RAX, RCX: tf.RCX,
		RSP: tf.RSP, RIP: tf.RIP, RFLAGS: tf.RFLAGS,
		CS: uint16(tf.CS), SS: uint16(tf.SS),
	}
}

// Restore writes the snapshot's general-purpose registers and
// instruction pointer back into the trap frame, leaving unrelated trap
// frame fields intact. Inverse of NewMContext.
func (mc *MContext) Restore(tf *TrapFrame) {
	tf.R8, tf.R9, tf.R10, tf.R11 = mc.R8, mc.R9, mc.R10, mc.R11
	tf.R12, tf.R13, tf.R14, tf.R15 = mc.R12, mc.R13, mc.R14, mc.R15
	tf.RDI, tf.RSI, tf.RBP, tf.RBX = mc.RDI, mc.RSI, mc.RBP, mc.RBX
	tf.RDX, tf.RAX, tf.RCX = mc.RDX, mc.RAX, mc.RCX
	tf.RSP, tf.RIP, tf.RFLAGS = mc.RSP, mc.RIP, mc.RFLAGS
}

// UContext wraps the register snapshot with the stack descriptor and
// the blocked-mask snapshot, in kernel x86-64 ucontext field order:
// flags, link, stack, mcontext, sigmask.
type UContext struct {
	Flags    uint64
	Link     uint64
	Stack    SignalStack
	MContext MContext
	SigMask  SignalSet
	// Remainder of the 1024-bit sigset reservation.
	_ [120]byte
}

// NewUContext captures the trap frame and the given blocked mask.
func NewUContext(tf *TrapFrame, sigmask SignalSet) UContext {
	return UContext{
		MContext: NewMContext(tf),
		SigMask:  sigmask,
	}
}
