// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package ksignal

import "golang.org/x/sys/unix"

// sa_flags bits understood by this core. Values come from the kernel
// header mirror so they stay bit-exact with the host ABI.
const (
	SA_SIGINFO   ActionFlags = unix.SA_SIGINFO
	SA_ONSTACK   ActionFlags = unix.SA_ONSTACK
	SA_RESTART   ActionFlags = unix.SA_RESTART
	SA_NODEFER   ActionFlags = unix.SA_NODEFER
	SA_RESETHAND ActionFlags = unix.SA_RESETHAND
	SA_RESTORER  ActionFlags = unix.SA_RESTORER
)

// Signal stack flags, matching the kernel stack_t ss_flags values.
const (
	SS_ONSTACK uint32 = unix.SS_ONSTACK
	SS_DISABLE uint32 = unix.SS_DISABLE
)
