// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ksignal

import "go.uber.org/zap"

// Handler sentinels in the ABI sigaction handler field.
const (
	// SIG_DFL requests the default action.
	SIG_DFL uintptr = 0
	// SIG_IGN requests the signal be ignored.
	SIG_IGN uintptr = 1
)

// ActionFlags is the sa_flags bitmask. The SA_* values live in the
// per-OS const file.
type ActionFlags uint64

// knownActionFlags is the set of flag bits this core understands.
// Anything outside it is rejected on conversion.
const knownActionFlags = SA_SIGINFO | SA_ONSTACK | SA_RESTART |
	SA_NODEFER | SA_RESETHAND | SA_RESTORER

// Contains reports whether all bits of other are set in f.
func (f ActionFlags) Contains(other ActionFlags) bool {
	return f&other == other
}

// SignalDisposition selects what happens when a signal is delivered.
type SignalDisposition uint8

const (
	// DispositionDefault runs the signal's built-in default action.
	DispositionDefault SignalDisposition = iota
	// DispositionIgnore discards the signal at delivery.
	DispositionIgnore
	// DispositionHandler invokes a user handler.
	DispositionHandler
)

// SignalAction is the per-(process, signo) disposition record.
// The zero value is the POSIX initial state: default disposition,
// empty mask, no flags.
type SignalAction struct {
	Disposition SignalDisposition
	// Handler is the user handler entry point, meaningful only when
	// Disposition is DispositionHandler.
	Handler uintptr
	Flags   ActionFlags
	// Mask is added to the thread's blocked set for the duration of
	// the handler.
	Mask SignalSet
	// Restorer is the user sigreturn trampoline. Zero means the
	// process default trampoline is used.
	Restorer uintptr
}

// SigAction is the external kernel sigaction layout exchanged with user
// space, bit-exact with struct kernel_sigaction on 64-bit targets.
type SigAction struct {
	Handler  uintptr
	Flags    uint64
	Restorer uintptr
	Mask     SignalSet
}

// ToAbi converts the action to the external layout.
// The handler field carries SIG_DFL, SIG_IGN or the user entry point.
func (a *SignalAction) ToAbi() SigAction {
	out := SigAction{
		Flags:    uint64(a.Flags),
		Restorer: a.Restorer,
		Mask:     a.Mask,
	}
	switch a.Disposition {
	case DispositionIgnore:
		out.Handler = SIG_IGN
	case DispositionHandler:
		out.Handler = a.Handler
	default:
		out.Handler = SIG_DFL
	}
	return out
}

// ActionFromAbi converts an incoming sigaction to the internal form.
//
// Unknown flag bits fail with ErrInvalidFlags (EINVAL) and leave no
// partial result. When SA_RESTORER is clear the restorer is forced to
// defaultRestorer; otherwise the user restorer is used when non-null.
func ActionFromAbi(sa SigAction, defaultRestorer uintptr) (SignalAction, error) {
	flags := ActionFlags(sa.Flags)
	if !knownActionFlags.Contains(flags) {
		logger.Warn("rejecting sigaction with unknown flags",
			zap.Uint64("flags", sa.Flags))
		return SignalAction{}, ErrInvalidFlags
	}

	action := SignalAction{
		Flags: flags,
		Mask:  sa.Mask,
	}
	switch sa.Handler {
	case SIG_DFL:
		action.Disposition = DispositionDefault
	case SIG_IGN:
		action.Disposition = DispositionIgnore
	default:
		action.Disposition = DispositionHandler
		action.Handler = sa.Handler
	}

	if !flags.Contains(SA_RESTORER) || sa.Restorer == 0 {
		action.Restorer = defaultRestorer
	} else {
		action.Restorer = sa.Restorer
	}
	return action, nil
}
