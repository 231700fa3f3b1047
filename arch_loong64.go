// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build loong64

package ksignal

// Register indices within TrapFrame.Regs for loong64.
const (
	regRA = 1 // r1
	regSP = 3 // r3
	regA0 = 4 // r4
	regA1 = 5 // r5
	regA2 = 6 // r6
)

// TrapFrame is the loong64 user register file saved at kernel entry.
type TrapFrame struct {
	// Regs holds r0..r31; r0 is hardwired zero.
	Regs [32]uint64
	Era  uint64
	Prmd uint64
}

// IP returns the instruction pointer.
func (tf *TrapFrame) IP() uintptr { return uintptr(tf.Era) }

// SetIP sets the instruction pointer.
func (tf *TrapFrame) SetIP(v uintptr) { tf.Era = uint64(v) }

// SP returns the stack pointer.
func (tf *TrapFrame) SP() uintptr { return uintptr(tf.Regs[regSP]) }

// SetSP sets the stack pointer.
func (tf *TrapFrame) SetSP(v uintptr) { tf.Regs[regSP] = uint64(v) }

// Arg0 returns the first function call argument (a0).
func (tf *TrapFrame) Arg0() uintptr { return uintptr(tf.Regs[regA0]) }

// SetArg0 sets the first function call argument.
func (tf *TrapFrame) SetArg0(v uintptr) { tf.Regs[regA0] = uint64(v) }

// Arg1 returns the second function call argument (a1).
func (tf *TrapFrame) Arg1() uintptr { return uintptr(tf.Regs[regA1]) }

// SetArg1 sets the second function call argument.
func (tf *TrapFrame) SetArg1(v uintptr) { tf.Regs[regA1] = uint64(v) }

// Arg2 returns the third function call argument (a2).
func (tf *TrapFrame) Arg2() uintptr { return uintptr(tf.Regs[regA2]) }

// SetArg2 sets the third function call argument.
func (tf *TrapFrame) SetArg2(v uintptr) { tf.Regs[regA2] = uint64(v) }

// pushedRASize is zero: loong64 delivers the return address through the
// ra register, the stack pointer does not move.
const pushedRASize = 0

// setReturnAddr installs the restorer address in the ra register.
func setReturnAddr(tf *TrapFrame, _ Vm, addr uintptr) error {
	tf.Regs[regRA] = uint64(addr)
	return nil
}

// MContext is the loong64 register snapshot handed to user handlers,
// matching the kernel struct sigcontext.
type MContext struct {
	PC    uint64
	Regs  [32]uint64
	Flags uint32
	_     [4]byte
	// Extension context area (lsx/lasx records).
	_ [4096]byte
}

// NewMContext snapshots the trap frame's registers.
func NewMContext(tf *TrapFrame) MContext {
	return MContext{
		PC:   tf.Era,
		Regs: tf.Regs,
	}
}

// Restore writes the snapshot's general-purpose registers and program
// counter back into the trap frame. Inverse of NewMContext.
func (mc *MContext) Restore(tf *TrapFrame) {
	tf.Era = mc.PC
	tf.Regs = mc.Regs
}

// UContext wraps the register snapshot with the stack descriptor and
// the blocked-mask snapshot, in kernel loong64 ucontext field order:
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
