// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build arm64

package ksignal

// TrapFrame is the aarch64 user register file saved at kernel entry.
type TrapFrame struct {
	// Regs holds x0..x30; x30 is the link register.
	Regs   [31]uint64
	Sp     uint64
	Pc     uint64
	Pstate uint64
}

// IP returns the instruction pointer.
func (tf *TrapFrame) IP() uintptr { return uintptr(tf.Pc) }

// SetIP sets the instruction pointer.
func (tf *TrapFrame) SetIP(v uintptr) { tf.Pc = uint64(v) }

// SP returns the stack pointer.
func (tf *TrapFrame) SP() uintptr { return uintptr(tf.Sp) }

// SetSP sets the stack pointer.
func (tf *TrapFrame) SetSP(v uintptr) { tf.Sp = uint64(v) }

// Arg0 returns the first function call argument (x0).
func (tf *TrapFrame) Arg0() uintptr { return uintptr(tf.Regs[0]) }

// SetArg0 sets the first function call argument.
func (tf *TrapFrame) SetArg0(v uintptr) { tf.Regs[0] = uint64(v) }

// Arg1 returns the second function call argument (x1).
func (tf *TrapFrame) Arg1() uintptr { return uintptr(tf.Regs[1]) }

// SetArg1 sets the second function call argument.
func (tf *TrapFrame) SetArg1(v uintptr) { tf.Regs[1] = uint64(v) }

// Arg2 returns the third function call argument (x2).
func (tf *TrapFrame) Arg2() uintptr { return uintptr(tf.Regs[2]) }

// SetArg2 sets the third function call argument.
func (tf *TrapFrame) SetArg2(v uintptr) { tf.Regs[2] = uint64(v) }

// pushedRASize is zero: aarch64 delivers the return address through the
// link register, the stack pointer does not move.
const pushedRASize = 0

// setReturnAddr installs the restorer address in the link register.
func setReturnAddr(tf *TrapFrame, _ Vm, addr uintptr) error {
	tf.Regs[30] = uint64(addr)
	return nil
}

// MContext is the aarch64 register snapshot handed to user handlers,
// matching the kernel struct sigcontext.
type MContext struct {
	FaultAddress uint64
	Regs         [31]uint64
	SP           uint64
	PC           uint64
	Pstate       uint64
	// Padding to the reserved area's 16-byte ABI alignment.
	_ [8]byte
	// Reserved area for fp/simd and other context records.
	_ [4096]byte
}

// NewMContext snapshots the trap frame's registers.
func NewMContext(tf *TrapFrame) MContext {
	return MContext{
		Regs:   tf.Regs,
		SP:     tf.Sp,
		PC:     tf.Pc,
		Pstate: tf.Pstate,
	}
}

// Restore writes the snapshot's general-purpose registers and program
// counter back into the trap frame. Inverse of NewMContext.
func (mc *MContext) Restore(tf *TrapFrame) {
	tf.Regs = mc.Regs
	tf.Sp = mc.SP
	tf.Pc = mc.PC
}

// UContext wraps the register snapshot with the stack descriptor and
// the blocked-mask snapshot, in kernel aarch64 ucontext field order:
// flags, link, stack, sigmask, mcontext.
type UContext struct {
	Flags   uint64
	Link    uint64
	Stack   SignalStack
	SigMask SignalSet
	// Remainder of the 1024-bit sigset reservation, plus padding to
	// the mcontext's 16-byte ABI alignment.
	_        [128]byte
	MContext MContext
}

// NewUContext captures the trap frame and the given blocked mask.
func NewUContext(tf *TrapFrame, sigmask SignalSet) UContext {
	return UContext{
		MContext: NewMContext(tf),
		SigMask:  sigmask,
	}
}
