// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ksignal

import "strconv"

// Signo is the integer identifier of a signal, 1..NumSignals.
// Signals 1..31 are standard signals; SIGRTMIN..SIGRTMAX are real-time
// signals with queuing semantics.
type Signo uint8

// NumSignals is the highest valid signal number.
const NumSignals = 64

// Standard signal numbers matching the Linux generic ABI.
const (
	SIGHUP    Signo = 1
	SIGINT    Signo = 2
	SIGQUIT   Signo = 3
	SIGILL    Signo = 4
	SIGTRAP   Signo = 5
	SIGABRT   Signo = 6
	SIGBUS    Signo = 7
	SIGFPE    Signo = 8
	SIGKILL   Signo = 9
	SIGUSR1   Signo = 10
	SIGSEGV   Signo = 11
	SIGUSR2   Signo = 12
	SIGPIPE   Signo = 13
	SIGALRM   Signo = 14
	SIGTERM   Signo = 15
	SIGSTKFLT Signo = 16
	SIGCHLD   Signo = 17
	SIGCONT   Signo = 18
	SIGSTOP   Signo = 19
	SIGTSTP   Signo = 20
	SIGTTIN   Signo = 21
	SIGTTOU   Signo = 22
	SIGURG    Signo = 23
	SIGXCPU   Signo = 24
	SIGXFSZ   Signo = 25
	SIGVTALRM Signo = 26
	SIGPROF   Signo = 27
	SIGWINCH  Signo = 28
	SIGIO     Signo = 29
	SIGPWR    Signo = 30
	SIGSYS    Signo = 31
)

// Real-time signal range.
const (
	SIGRTMIN Signo = 32
	SIGRTMAX Signo = NumSignals
)

// Valid reports whether s is within 1..NumSignals.
func (s Signo) Valid() bool {
	return s >= 1 && s <= NumSignals
}

// IsRealtime reports whether s is a real-time signal.
// Real-time signals queue every delivery instead of coalescing.
func (s Signo) IsRealtime() bool {
	return s >= SIGRTMIN && s <= SIGRTMAX
}

// DefaultAction is the built-in action a signal takes when its
// disposition is Default.
type DefaultAction uint8

const (
	// ActionTerminate terminates the process.
	ActionTerminate DefaultAction = iota
	// ActionCoreDump terminates the process and dumps core.
	ActionCoreDump
	// ActionStop stops the process.
	ActionStop
	// ActionContinue resumes a stopped process.
	ActionContinue
	// ActionIgnore discards the signal.
	ActionIgnore
)

// DefaultAction returns the default action for the signal.
// Real-time and out-of-range signals default to termination.
func (s Signo) DefaultAction() DefaultAction {
	switch s {
	case SIGQUIT, SIGILL, SIGTRAP, SIGABRT, SIGBUS, SIGFPE, SIGSEGV,
		SIGXCPU, SIGXFSZ, SIGSYS:
		return ActionCoreDump
	case SIGCHLD, SIGURG, SIGWINCH:
		return ActionIgnore
	case SIGSTOP, SIGTSTP, SIGTTIN, SIGTTOU:
		return ActionStop
	case SIGCONT:
		return ActionContinue
	default:
		return ActionTerminate
	}
}

// HasSideEffect reports whether the signal's effect must occur even when
// its disposition is Ignore. True for SIGKILL and SIGCONT; these are
// never reported as ignored and always enqueue.
func (s Signo) HasSideEffect() bool {
	return s == SIGKILL || s == SIGCONT
}

// String returns the conventional name of the signal.
func (s Signo) String() string {
	if s.IsRealtime() {
		return "SIGRT" + strconv.Itoa(int(s-SIGRTMIN))
	}
	if int(s) < len(signames) && signames[s] != "" {
		return signames[s]
	}
	return "SIG" + strconv.Itoa(int(s))
}

var signames = [...]string{
	SIGHUP: "SIGHUP", SIGINT: "SIGINT", SIGQUIT: "SIGQUIT", SIGILL: "SIGILL",
	SIGTRAP: "SIGTRAP", SIGABRT: "SIGABRT", SIGBUS: "SIGBUS", SIGFPE: "SIGFPE",
	SIGKILL: "SIGKILL", SIGUSR1: "SIGUSR1", SIGSEGV: "SIGSEGV", SIGUSR2: "SIGUSR2",
	SIGPIPE: "SIGPIPE", SIGALRM: "SIGALRM", SIGTERM: "SIGTERM", SIGSTKFLT: "SIGSTKFLT",
	SIGCHLD: "SIGCHLD", SIGCONT: "SIGCONT", SIGSTOP: "SIGSTOP", SIGTSTP: "SIGTSTP",
	SIGTTIN: "SIGTTIN", SIGTTOU: "SIGTTOU", SIGURG: "SIGURG", SIGXCPU: "SIGXCPU",
	SIGXFSZ: "SIGXFSZ", SIGVTALRM: "SIGVTALRM", SIGPROF: "SIGPROF", SIGWINCH: "SIGWINCH",
	SIGIO: "SIGIO", SIGPWR: "SIGPWR", SIGSYS: "SIGSYS",
}

// OSAction is the outcome of signal delivery that the containing kernel
// must execute on behalf of the target process.
type OSAction uint8

const (
	// OSActionTerminate kills the process.
	OSActionTerminate OSAction = iota
	// OSActionCoreDump kills the process and dumps core.
	OSActionCoreDump
	// OSActionStop stops all threads of the process.
	OSActionStop
	// OSActionContinue resumes all threads of the process.
	OSActionContinue
	// OSActionHandler indicates a user handler frame was set up; the
	// kernel just returns to user space.
	OSActionHandler
)

// String returns the name of the OS action.
func (a OSAction) String() string {
	switch a {
	case OSActionTerminate:
		return "terminate"
	case OSActionCoreDump:
		return "coredump"
	case OSActionStop:
		return "stop"
	case OSActionContinue:
		return "continue"
	case OSActionHandler:
		return "handler"
	default:
		return "unknown"
	}
}
