// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ksignal

import (
	"encoding/binary"
	"unsafe"
)

// Signal origin codes for the si_code field, matching the kernel ABI.
const (
	// CodeUser identifies a signal sent by kill from user space.
	CodeUser int32 = 0
	// CodeKernel identifies a signal raised by the kernel.
	CodeKernel int32 = 0x80
	// CodeQueue identifies a signal sent by sigqueue with a payload.
	CodeQueue int32 = -1
	// CodeTimer identifies a POSIX timer expiration.
	CodeTimer int32 = -2
	// CodeMesgq identifies message-queue state change.
	CodeMesgq int32 = -3
	// CodeAsyncIO identifies async I/O completion.
	CodeAsyncIO int32 = -4
	// CodeTkill identifies a signal sent by tkill/tgkill.
	CodeTkill int32 = -6
)

// Child-status codes for SIGCHLD, stored in si_code.
const (
	CldExited    int32 = 1
	CldKilled    int32 = 2
	CldDumped    int32 = 3
	CldTrapped   int32 = 4
	CldStopped   int32 = 5
	CldContinued int32 = 6
)

// signalInfoSize is the size of SignalInfo in bytes, fixed by the ABI.
const signalInfoSize = 128

// sifieldsSize is the size of the per-origin union area.
const sifieldsSize = signalInfoSize - 16

// SignalInfo carries the information delivered with a signal.
// The layout is bit-exact with the kernel siginfo_t on the little-endian
// 64-bit targets this module supports: signo, errno and code followed by
// a 112-byte per-origin union.
//
// Per-origin fields are reached through typed accessors; which accessors
// are meaningful depends on Code.
type SignalInfo struct {
	Signo Signo
	_     [3]byte
	Errno int32
	Code  int32
	_     [4]byte
	// fields is the _sifields union: sender pid/uid, child status,
	// fault address, or sigqueue payload depending on Code.
	fields [sifieldsSize]byte
}

// The ABI fixes the siginfo_t size; both constants underflow at compile
// time if the struct drifts.
const (
	_ = signalInfoSize - unsafe.Sizeof(SignalInfo{})
	_ = unsafe.Sizeof(SignalInfo{}) - signalInfoSize
)

// NewSignalInfo creates a SignalInfo with the given signal and origin
// code and zeroed per-origin fields.
func NewSignalInfo(sig Signo, code int32) *SignalInfo {
	return &SignalInfo{Signo: sig, Code: code}
}

// NewUserSignalInfo creates the info for a kill from user space,
// recording the sender's pid and uid.
func NewUserSignalInfo(sig Signo, pid, uid uint32) *SignalInfo {
	si := NewSignalInfo(sig, CodeUser)
	si.SetPid(pid)
	si.SetUid(uid)
	return si
}

// NewKernelSignalInfo creates the info for a signal raised by the kernel.
func NewKernelSignalInfo(sig Signo) *SignalInfo {
	return NewSignalInfo(sig, CodeKernel)
}

// NewTkillSignalInfo creates the info for a tkill/tgkill directed at a
// single thread.
func NewTkillSignalInfo(sig Signo, pid, uid uint32) *SignalInfo {
	si := NewSignalInfo(sig, CodeTkill)
	si.SetPid(pid)
	si.SetUid(uid)
	return si
}

// NewQueueSignalInfo creates the info for a sigqueue send carrying a
// user payload value.
func NewQueueSignalInfo(sig Signo, pid, uid uint32, value uint64) *SignalInfo {
	si := NewSignalInfo(sig, CodeQueue)
	si.SetPid(pid)
	si.SetUid(uid)
	si.SetValue(value)
	return si
}

// NewTimerSignalInfo creates the info for a POSIX timer expiration.
func NewTimerSignalInfo(sig Signo, timerID int32, overrun int32) *SignalInfo {
	si := NewSignalInfo(sig, CodeTimer)
	binary.NativeEndian.PutUint32(si.fields[0:], uint32(timerID))
	binary.NativeEndian.PutUint32(si.fields[4:], uint32(overrun))
	return si
}

// NewChildSignalInfo creates the SIGCHLD info reporting a child state
// change. code is one of the Cld* constants.
func NewChildSignalInfo(code int32, pid, uid uint32, status int32) *SignalInfo {
	si := NewSignalInfo(SIGCHLD, code)
	si.SetPid(pid)
	si.SetUid(uid)
	si.SetStatus(status)
	return si
}

// NewFaultSignalInfo creates the info for a synchronous fault signal
// (SIGSEGV, SIGBUS, SIGILL, SIGFPE) recording the faulting address.
func NewFaultSignalInfo(sig Signo, code int32, addr uintptr) *SignalInfo {
	si := NewSignalInfo(sig, code)
	si.SetFaultAddr(addr)
	return si
}

// Pid returns the sender pid (user, tkill, queue and child origins).
func (si *SignalInfo) Pid() uint32 {
	return binary.NativeEndian.Uint32(si.fields[0:])
}

// SetPid stores the sender pid.
func (si *SignalInfo) SetPid(pid uint32) {
	binary.NativeEndian.PutUint32(si.fields[0:], pid)
}

// Uid returns the sender uid (user, tkill, queue and child origins).
func (si *SignalInfo) Uid() uint32 {
	return binary.NativeEndian.Uint32(si.fields[4:])
}

// SetUid stores the sender uid.
func (si *SignalInfo) SetUid(uid uint32) {
	binary.NativeEndian.PutUint32(si.fields[4:], uid)
}

// Status returns the child exit status or stop signal (child origin).
func (si *SignalInfo) Status() int32 {
	return int32(binary.NativeEndian.Uint32(si.fields[8:]))
}

// SetStatus stores the child exit status.
func (si *SignalInfo) SetStatus(status int32) {
	binary.NativeEndian.PutUint32(si.fields[8:], uint32(status))
}

// Value returns the sigqueue payload (queue and timer origins).
func (si *SignalInfo) Value() uint64 {
	return binary.NativeEndian.Uint64(si.fields[8:])
}

// SetValue stores the sigqueue payload.
func (si *SignalInfo) SetValue(value uint64) {
	binary.NativeEndian.PutUint64(si.fields[8:], value)
}

// TimerID returns the kernel timer id (timer origin).
func (si *SignalInfo) TimerID() int32 {
	return int32(binary.NativeEndian.Uint32(si.fields[0:]))
}

// Overrun returns the timer overrun count (timer origin).
func (si *SignalInfo) Overrun() int32 {
	return int32(binary.NativeEndian.Uint32(si.fields[4:]))
}

// FaultAddr returns the faulting address (fault origins).
func (si *SignalInfo) FaultAddr() uintptr {
	return uintptr(binary.NativeEndian.Uint64(si.fields[0:]))
}

// SetFaultAddr stores the faulting address.
func (si *SignalInfo) SetFaultAddr(addr uintptr) {
	binary.NativeEndian.PutUint64(si.fields[0:], uint64(addr))
}
