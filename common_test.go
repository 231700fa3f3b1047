// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ksignal_test

import (
	"errors"
	"unsafe"

	"code.hybscloud.com/ksignal"
)

// testVM backs user memory with a heap buffer; addresses handed to the
// managers are real addresses inside the buffer, so frame pointers
// written into trap frames stay meaningful.
type testVM struct {
	buf []byte
}

func newTestVM(size int) *testVM {
	return &testVM{buf: make([]byte, size)}
}

func (vm *testVM) base() uintptr {
	return uintptr(unsafe.Pointer(&vm.buf[0]))
}

// top returns the first address past the buffer, used as an initial
// stack pointer (stacks grow down).
func (vm *testVM) top() uintptr {
	return vm.base() + uintptr(len(vm.buf))
}

var errBadAddress = errors.New("bad address")

func (vm *testVM) offset(addr uintptr, n int) (int, error) {
	base := vm.base()
	if addr < base {
		return 0, errBadAddress
	}
	off := int(addr - base)
	if off+n > len(vm.buf) {
		return 0, errBadAddress
	}
	return off, nil
}

func (vm *testVM) Read(addr uintptr, b []byte) error {
	off, err := vm.offset(addr, len(b))
	if err != nil {
		return err
	}
	copy(b, vm.buf[off:])
	return nil
}

func (vm *testVM) Write(addr uintptr, b []byte) error {
	off, err := vm.offset(addr, len(b))
	if err != nil {
		return err
	}
	copy(vm.buf[off:], b)
	return nil
}

// faultVM fails every access, modelling an unmapped user stack.
type faultVM struct{}

func (faultVM) Read(uintptr, []byte) error  { return errBadAddress }
func (faultVM) Write(uintptr, []byte) error { return errBadAddress }

const testTid ksignal.Tid = 7

type testEnv struct {
	vm      *testVM
	actions *ksignal.ActionTable
	proc    *ksignal.ProcessSignalManager
	thr     *ksignal.ThreadSignalManager
}

// newTestEnv builds a process with a 16 MiB user memory pool and a
// single registered thread. The process default restorer is
// testRestorer so return-address checks have a distinctive value.
func newTestEnv() *testEnv {
	vm := newTestVM(16 << 20)
	actions := ksignal.NewActionTable()
	proc := ksignal.NewProcessSignalManager(vm, actions, testRestorer)
	thr := ksignal.NewThreadSignalManager(testTid, proc)
	return &testEnv{vm: vm, actions: actions, proc: proc, thr: thr}
}

// handlerAction installs a user-handler disposition for signo and
// returns the (fake) handler entry address.
func (env *testEnv) handlerAction(signo ksignal.Signo, flags ksignal.ActionFlags) uintptr {
	const handlerAddr = 0x4000_2000
	env.actions.Set(signo, ksignal.SignalAction{
		Disposition: ksignal.DispositionHandler,
		Handler:     handlerAddr,
		Flags:       flags,
	})
	return handlerAddr
}

// userFrame returns a trap frame resuming user code at ip with the
// stack at the top of the vm pool.
func (env *testEnv) userFrame(ip uintptr) *ksignal.TrapFrame {
	tf := &ksignal.TrapFrame{}
	tf.SetIP(ip)
	tf.SetSP(env.vm.top())
	return tf
}

func setOf(signos ...ksignal.Signo) ksignal.SignalSet {
	var set ksignal.SignalSet
	for _, s := range signos {
		set.Add(s)
	}
	return set
}
