// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ksignal

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"code.hybscloud.com/iox"
	"go.uber.org/zap"
)

// ThreadSignalManager holds one thread's signal state: thread-directed
// pending signals, the blocked mask, the alternate handler stack, and
// the delivery machinery run at return-to-user.
//
// Invariants:
//   - SendSignal may be called from any kernel context.
//   - CheckSignals, Restore and mask mutations run only on the owning
//     thread.
type ThreadSignalManager struct {
	proc *ProcessSignalManager
	tid  Tid

	mu      sync.Mutex
	pending PendingSignals
	// hasSignal mirrors the process-level hint for thread-directed
	// signals; see ProcessSignalManager.hasSignal.
	hasSignal atomic.Bool

	blockedMu sync.Mutex
	blocked   SignalSet

	stackMu sync.Mutex
	stack   SignalStack
}

// NewThreadSignalManager creates a thread-level manager and registers
// it with the process manager's child registry. The registry holds only
// a weak reference; dropping the thread manager needs no unregister.
func NewThreadSignalManager(tid Tid, proc *ProcessSignalManager) *ThreadSignalManager {
	t := &ThreadSignalManager{
		proc:  proc,
		tid:   tid,
		stack: DefaultSignalStack(),
	}
	proc.registerThread(tid, t)
	return t
}

// Tid returns the thread id.
func (t *ThreadSignalManager) Tid() Tid {
	return t.tid
}

// Process returns the process-level manager.
func (t *ThreadSignalManager) Process() *ProcessSignalManager {
	return t.proc
}

// SendSignal enqueues a thread-directed signal.
//
// Side-effect-free signals ignored by process disposition are
// discarded. Returns true iff the calling context should wake this
// thread: the signal was stored and is not currently blocked.
func (t *ThreadSignalManager) SendSignal(sig *SignalInfo) bool {
	signo := sig.Signo
	if t.proc.SignalIgnored(signo) {
		logger.Debug("discarding ignored signal",
			zap.Stringer("signal", signo), zap.Uint32("tid", uint32(t.tid)))
		return false
	}

	t.mu.Lock()
	_, err := t.pending.PutSignal(sig)
	if err != nil {
		t.mu.Unlock()
		logger.Warn("dropping signal",
			zap.Stringer("signal", signo), zap.Error(err))
		return false
	}
	t.hasSignal.Store(true)
	t.mu.Unlock()
	t.proc.event.Notify()

	return !t.SignalBlocked(signo)
}

// DequeueSignal removes and returns the smallest eligible pending
// signal, trying thread-directed signals before process-directed ones.
// Hints are cleared as each store is observed empty.
func (t *ThreadSignalManager) DequeueSignal(mask SignalSet) *SignalInfo {
	t.mu.Lock()
	sig := t.pending.DequeueSignal(mask)
	if t.pending.Empty() {
		t.hasSignal.Store(false)
	}
	t.mu.Unlock()
	if sig != nil {
		return sig
	}
	return t.proc.DequeueSignal(mask)
}

// Blocked returns the current blocked mask.
func (t *ThreadSignalManager) Blocked() SignalSet {
	t.blockedMu.Lock()
	defer t.blockedMu.Unlock()
	return t.blocked
}

// SignalBlocked reports whether signo is currently blocked.
func (t *ThreadSignalManager) SignalBlocked(signo Signo) bool {
	t.blockedMu.Lock()
	defer t.blockedMu.Unlock()
	return t.blocked.Has(signo)
}

// SetBlocked replaces the blocked mask and returns the previous one.
// Unblocking republishes the possibly-has-signal hint so the next
// CheckSignals leaves the fast path.
func (t *ThreadSignalManager) SetBlocked(set SignalSet) SignalSet {
	t.blockedMu.Lock()
	prev := t.blocked
	t.blocked = set
	t.blockedMu.Unlock()
	if prev&^set != 0 {
		t.hasSignal.Store(true)
	}
	return prev
}

// WithBlockedMut applies f to the blocked mask under its lock.
// As with SetBlocked, any reduction republishes the hint.
func (t *ThreadSignalManager) WithBlockedMut(f func(*SignalSet)) {
	t.blockedMu.Lock()
	prev := t.blocked
	f(&t.blocked)
	set := t.blocked
	t.blockedMu.Unlock()
	if prev&^set != 0 {
		t.hasSignal.Store(true)
	}
}

// Stack returns the alternate signal stack.
func (t *ThreadSignalManager) Stack() SignalStack {
	t.stackMu.Lock()
	defer t.stackMu.Unlock()
	return t.stack
}

// SetStack replaces the alternate signal stack.
func (t *ThreadSignalManager) SetStack(stack SignalStack) {
	t.stackMu.Lock()
	t.stack = stack
	t.stackMu.Unlock()
}

// WithStackMut applies f to the alternate stack under its lock.
func (t *ThreadSignalManager) WithStackMut(f func(*SignalStack)) {
	t.stackMu.Lock()
	f(&t.stack)
	t.stackMu.Unlock()
}

// Pending returns the union of thread- and process-directed pending
// signals.
func (t *ThreadSignalManager) Pending() SignalSet {
	t.mu.Lock()
	set := t.pending.Set()
	t.mu.Unlock()
	return set | t.proc.Pending()
}

// CheckSignals dequeues and handles pending signals at return-to-user.
//
// restoreBlocked is the mask recorded into the signal frame for the
// sigreturn path; nil means the current blocked mask. Callers restoring
// a pre-sigsuspend mask pass their snapshot instead.
//
// Returns the delivered signal and the action the containing kernel
// must execute, or nil when nothing is deliverable. The fast path reads
// the two possibly-has-signal hints and touches no locks when both are
// clear.
func (t *ThreadSignalManager) CheckSignals(tf *TrapFrame, restoreBlocked *SignalSet) (*SignalInfo, OSAction) {
	if !t.hasSignal.Load() && !t.proc.hasSignal.Load() {
		return nil, 0
	}

	blocked := t.Blocked()
	mask := blocked.Complement()
	rb := blocked
	if restoreBlocked != nil {
		rb = *restoreBlocked
	}

	for {
		sig := t.DequeueSignal(mask)
		if sig == nil {
			return nil, 0
		}
		action := t.proc.actions.Get(sig.Signo)
		if osAction, deliver := t.handleSignal(tf, rb, sig, &action); deliver {
			return sig, osAction
		}
	}
}

// handleSignal resolves one dequeued signal against its action.
//
// Returns deliver=false when the disposition discards the signal
// (Ignore, or Default for a default-ignore signal); the caller keeps
// dequeuing. For a handler disposition the user stack gains a signal
// frame and the trap frame is rewritten to enter the handler; a fault
// while writing user memory yields CoreDump.
func (t *ThreadSignalManager) handleSignal(tf *TrapFrame, restoreBlocked SignalSet, sig *SignalInfo, action *SignalAction) (OSAction, bool) {
	signo := sig.Signo
	switch action.Disposition {
	case DispositionDefault:
		switch signo.DefaultAction() {
		case ActionTerminate:
			return OSActionTerminate, true
		case ActionCoreDump:
			return OSActionCoreDump, true
		case ActionStop:
			return OSActionStop, true
		case ActionContinue:
			return OSActionContinue, true
		default:
			return 0, false
		}
	case DispositionIgnore:
		return 0, false
	}

	logger.Debug("delivering signal to handler",
		zap.Stringer("signal", signo), zap.Uint32("tid", uint32(t.tid)))

	stack := t.Stack()
	sp := tf.SP()
	if action.Flags.Contains(SA_ONSTACK) && !stack.Disabled() {
		sp = stack.SP
	}
	alignedSP := (sp - signalFrameSize) &^ (signalFrameAlign - 1)

	frame := SignalFrame{
		UContext: NewUContext(tf, restoreBlocked),
		Info:     *sig,
		TF:       *tf,
	}
	if err := writeSignalFrame(t.proc.vm, alignedSP, &frame); err != nil {
		return OSActionCoreDump, true
	}

	tf.SetIP(action.Handler)
	tf.SetSP(alignedSP)
	tf.SetArg0(uintptr(signo))
	tf.SetArg1(alignedSP + frameInfoOffset)
	tf.SetArg2(alignedSP + frameUContextOffset)

	restorer := action.Restorer
	if restorer == 0 {
		restorer = t.proc.defaultRestorer
	}
	if err := setReturnAddr(tf, t.proc.vm, restorer); err != nil {
		return OSActionCoreDump, true
	}

	addBlocked := action.Mask
	if !action.Flags.Contains(SA_NODEFER) {
		addBlocked.Add(signo)
	}
	if action.Flags.Contains(SA_RESETHAND) {
		t.proc.actions.Reset(signo)
	}
	t.blockedMu.Lock()
	t.blocked.AddFrom(addBlocked)
	t.blockedMu.Unlock()

	return OSActionHandler, true
}

// Restore rebuilds the interrupted trap frame from the signal frame the
// current stack pointer addresses. Called on sigreturn.
//
// The saved trap frame is copied back, then the ucontext's register
// snapshot is applied so user modifications to the mcontext propagate.
// The blocked mask is restored from the ucontext; the hint is
// republished because the restored mask may unhide pending signals.
func (t *ThreadSignalManager) Restore(tf *TrapFrame) error {
	var frame SignalFrame
	if err := readSignalFrame(t.proc.vm, tf.SP(), &frame); err != nil {
		return errors.Join(ErrFault, err)
	}

	*tf = frame.TF
	frame.UContext.MContext.Restore(tf)

	t.blockedMu.Lock()
	t.blocked = frame.UContext.SigMask
	t.blockedMu.Unlock()
	t.hasSignal.Store(true)
	return nil
}

// TryWait dequeues a signal from set without blocking.
// Only blocked signals are eligible, matching sigtimedwait: unblocked
// ones are delivered through CheckSignals instead. Returns
// iox.ErrWouldBlock when nothing in set is pending.
func (t *ThreadSignalManager) TryWait(set SignalSet) (*SignalInfo, error) {
	set &= t.Blocked()
	if sig := t.DequeueSignal(set); sig != nil {
		return sig, nil
	}
	return nil, iox.ErrWouldBlock
}

// Wait blocks until a signal in set is pending and dequeues it.
// As with TryWait, only members of set that are currently blocked are
// eligible. Returns ErrInterrupted when ctx is cancelled first.
func (t *ThreadSignalManager) Wait(ctx context.Context, set SignalSet) (*SignalInfo, error) {
	set &= t.Blocked()
	for {
		if sig := t.DequeueSignal(set); sig != nil {
			return sig, nil
		}

		listener := t.proc.event.Listen()

		// Re-check after registering: a send between the dequeue and
		// Listen would otherwise be missed.
		if sig := t.DequeueSignal(set); sig != nil {
			return sig, nil
		}

		select {
		case <-listener:
		case <-ctx.Done():
			return nil, ErrInterrupted
		}
	}
}
