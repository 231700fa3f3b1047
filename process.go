// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ksignal

import (
	"sync"
	"sync/atomic"
	"weak"

	"go.uber.org/zap"
)

// ActionTable is the per-process signal disposition table, shared by
// every thread of the process.
//
// The table is only contended on sigaction and on delivery, so a single
// exclusive lock is sufficient.
type ActionTable struct {
	mu      sync.Mutex
	actions [NumSignals]SignalAction
}

// NewActionTable creates a table with every signal at its POSIX initial
// state (default disposition, empty mask).
func NewActionTable() *ActionTable {
	return &ActionTable{}
}

// Get returns a copy of the action for signo.
// Out-of-range signos yield the zero action.
func (t *ActionTable) Get(signo Signo) SignalAction {
	if !signo.Valid() {
		return SignalAction{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.actions[signo-1]
}

// Set replaces the action for signo.
func (t *ActionTable) Set(signo Signo, action SignalAction) {
	if !signo.Valid() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.actions[signo-1] = action
}

// Reset restores the default action for signo. Used by SA_RESETHAND.
func (t *ActionTable) Reset(signo Signo) {
	t.Set(signo, SignalAction{})
}

// childEntry pairs a thread id with a weak handle to its manager.
// Weak references keep thread teardown free of process-level cleanup;
// dead entries are pruned on each process-directed send.
type childEntry struct {
	tid Tid
	thr weak.Pointer[ThreadSignalManager]
}

// ProcessSignalManager holds the process-directed pending signals, the
// shared action table and the registry of the process's threads.
//
// A ProcessSignalManager must outlive every thread manager registered
// with it; thread managers hold a strong reference back.
type ProcessSignalManager struct {
	actions         *ActionTable
	vm              Vm
	defaultRestorer uintptr
	event           Event

	mu      sync.Mutex
	pending PendingSignals
	// hasSignal is the possibly-has-signal hint: set after every
	// enqueue, cleared only when the store is observed empty under mu.
	// False positives cost a slow-path entry; false negatives would
	// lose a signal, so every unhide path sets it.
	hasSignal atomic.Bool

	childMu  sync.Mutex
	children []childEntry

	jcMu      sync.Mutex
	lastStop  Signo
	stopEvent bool
	contEvent bool
}

// NewProcessSignalManager creates a process-level manager.
//
// vm accesses the process address space for signal-frame I/O, actions
// is the shared disposition table, and defaultRestorer is the kernel
// sigreturn trampoline used when an action carries no restorer.
func NewProcessSignalManager(vm Vm, actions *ActionTable, defaultRestorer uintptr) *ProcessSignalManager {
	return &ProcessSignalManager{
		actions:         actions,
		vm:              vm,
		defaultRestorer: defaultRestorer,
		event:           NewNotifyEvent(),
	}
}

// Actions returns the shared disposition table.
func (m *ProcessSignalManager) Actions() *ActionTable {
	return m.actions
}

// Event returns the wake primitive notified on every send.
func (m *ProcessSignalManager) Event() Event {
	return m.event
}

// registerThread appends a weak registry entry for a new thread.
func (m *ProcessSignalManager) registerThread(tid Tid, thr *ThreadSignalManager) {
	m.childMu.Lock()
	m.children = append(m.children, childEntry{tid: tid, thr: weak.Make(thr)})
	m.childMu.Unlock()
}

// SendSignal enqueues a process-directed signal.
//
// Side-effect-free signals that are ignored by disposition are
// discarded. Otherwise the signal is stored, the possibly-has-signal
// hint is published, and the registry is scanned for a wake target: the
// first registered live thread not blocking the signal. Dead registry
// entries are pruned during the scan even after a target is found.
//
// Returns the wake target's tid, or ok=false when every thread blocks
// the signal (it stays pending) or the signal was discarded.
func (m *ProcessSignalManager) SendSignal(sig *SignalInfo) (tid Tid, ok bool) {
	signo := sig.Signo
	if m.SignalIgnored(signo) {
		logger.Debug("discarding ignored signal", zap.Stringer("signal", signo))
		return 0, false
	}

	m.mu.Lock()
	_, err := m.pending.PutSignal(sig)
	if err != nil {
		m.mu.Unlock()
		logger.Warn("dropping signal", zap.Stringer("signal", signo), zap.Error(err))
		return 0, false
	}
	m.hasSignal.Store(true)
	m.mu.Unlock()
	m.event.Notify()

	m.childMu.Lock()
	defer m.childMu.Unlock()
	kept := m.children[:0]
	for _, entry := range m.children {
		thr := entry.thr.Value()
		if thr == nil {
			continue
		}
		if !ok && !thr.SignalBlocked(signo) {
			tid, ok = entry.tid, true
		}
		kept = append(kept, entry)
	}
	clear(m.children[len(kept):])
	m.children = kept
	return tid, ok
}

// SignalIgnored reports whether a send of signo would be discarded.
// Signals with side effects are never reported ignored.
func (m *ProcessSignalManager) SignalIgnored(signo Signo) bool {
	if signo.HasSideEffect() {
		return false
	}
	action := m.actions.Get(signo)
	switch action.Disposition {
	case DispositionIgnore:
		return true
	case DispositionDefault:
		return signo.DefaultAction() == ActionIgnore
	default:
		return false
	}
}

// CanRestart reports whether an interrupted syscall may transparently
// restart for signo (SA_RESTART).
func (m *ProcessSignalManager) CanRestart(signo Signo) bool {
	return m.actions.Get(signo).Flags.Contains(SA_RESTART)
}

// DequeueSignal removes and returns the smallest eligible
// process-directed pending signal, clearing the hint when the store
// drains.
func (m *ProcessSignalManager) DequeueSignal(mask SignalSet) *SignalInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	sig := m.pending.DequeueSignal(mask)
	if m.pending.Empty() {
		m.hasSignal.Store(false)
	}
	return sig
}

// Pending returns the set of process-directed pending signals.
func (m *ProcessSignalManager) Pending() SignalSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending.Set()
}

// HasSignal reports whether signo is pending at process level.
func (m *ProcessSignalManager) HasSignal(signo Signo) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending.HasSignal(signo)
}

// RemoveSignal discards all process-directed pending instances of signo.
func (m *ProcessSignalManager) RemoveSignal(signo Signo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending.RemoveSignal(signo)
	if m.pending.Empty() {
		m.hasSignal.Store(false)
	}
}

// FlushStopSignals discards every pending signal whose default action
// is Stop. Called after a continue takes effect.
func (m *ProcessSignalManager) FlushStopSignals() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, signo := range []Signo{SIGSTOP, SIGTSTP, SIGTTIN, SIGTTOU} {
		m.pending.RemoveSignal(signo)
	}
	if m.pending.Empty() {
		m.hasSignal.Store(false)
	}
}

// SetStopSignal records that the process stopped on signo and raises
// the stop event for wait-style collaborators.
func (m *ProcessSignalManager) SetStopSignal(signo Signo) {
	m.jcMu.Lock()
	m.lastStop = signo
	m.stopEvent = true
	m.jcMu.Unlock()
}

// SetContSignal records a continue. The last-stop cell is cleared but a
// raised stop event stays observable until consumed; the independent
// continue event is raised.
func (m *ProcessSignalManager) SetContSignal() {
	m.jcMu.Lock()
	m.lastStop = 0
	m.contEvent = true
	m.jcMu.Unlock()
}

// PeekStopEvent returns the pending stop event without consuming it
// (WNOWAIT semantics). The signo is the last stop signal, zero when a
// continue already cleared it.
func (m *ProcessSignalManager) PeekStopEvent() (Signo, bool) {
	m.jcMu.Lock()
	defer m.jcMu.Unlock()
	return m.lastStop, m.stopEvent
}

// ConsumeStopEvent returns the pending stop event and lowers it.
func (m *ProcessSignalManager) ConsumeStopEvent() (Signo, bool) {
	m.jcMu.Lock()
	defer m.jcMu.Unlock()
	signo, ok := m.lastStop, m.stopEvent
	m.stopEvent = false
	return signo, ok
}

// PeekContEvent reports a pending continue event without consuming it.
func (m *ProcessSignalManager) PeekContEvent() bool {
	m.jcMu.Lock()
	defer m.jcMu.Unlock()
	return m.contEvent
}

// ConsumeContEvent reports a pending continue event and lowers it.
func (m *ProcessSignalManager) ConsumeContEvent() bool {
	m.jcMu.Lock()
	defer m.jcMu.Unlock()
	ok := m.contEvent
	m.contEvent = false
	return ok
}
