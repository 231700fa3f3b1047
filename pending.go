// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ksignal

// maxQueuedSignals bounds the FIFO of each real-time signal.
// Sends beyond the bound fail with ErrQueueFull.
const maxQueuedSignals = 32

// PendingSignals is the pending store of one owner (a thread or a
// process). Standard signals coalesce into a single slot; real-time
// signals queue in FIFO order per signo.
//
// PendingSignals is not self-locking: the owning manager guards it.
//
// Invariants:
//   - set.Has(s) iff the store can yield at least one SignalInfo for s.
//   - For a standard signo in set, exactly one SignalInfo is retained;
//     the first send wins and later sends are dropped.
//   - For a real-time signo in set, a non-empty FIFO is retained.
type PendingSignals struct {
	set SignalSet
	// standard holds the single retained info per standard signo.
	standard [int(SIGRTMIN) - 1]*SignalInfo
	// realtime holds the FIFO per real-time signo.
	realtime [int(SIGRTMAX-SIGRTMIN) + 1][]*SignalInfo
}

// PutSignal stores a pending signal.
//
// Returns true iff a new signo bit was added to the set. A second put
// of a pending standard signal is a no-op returning false. Real-time
// puts enqueue up to maxQueuedSignals, then fail with ErrQueueFull.
func (p *PendingSignals) PutSignal(sig *SignalInfo) (bool, error) {
	signo := sig.Signo
	if !signo.Valid() {
		return false, ErrInvalidSigno
	}
	if signo.IsRealtime() {
		q := &p.realtime[signo-SIGRTMIN]
		if len(*q) >= maxQueuedSignals {
			return false, ErrQueueFull
		}
		*q = append(*q, sig)
		return p.set.Add(signo), nil
	}
	if p.set.Has(signo) {
		return false, nil
	}
	p.standard[signo-1] = sig
	p.set.Add(signo)
	return true, nil
}

// DequeueSignal removes and returns the info of the smallest signo that
// is both pending and in mask. Returns nil when no eligible signal
// exists.
//
// For real-time signals the queue head is popped and the bit stays set
// while the queue remains non-empty.
func (p *PendingSignals) DequeueSignal(mask SignalSet) *SignalInfo {
	avail := p.set & mask
	if avail.Empty() {
		return nil
	}
	signo := avail.Dequeue(mask)
	if signo.IsRealtime() {
		q := &p.realtime[signo-SIGRTMIN]
		sig := (*q)[0]
		*q = (*q)[1:]
		if len(*q) == 0 {
			p.set.Remove(signo)
			*q = nil
		}
		return sig
	}
	sig := p.standard[signo-1]
	p.standard[signo-1] = nil
	p.set.Remove(signo)
	return sig
}

// RemoveSignal discards all pending instances of signo.
func (p *PendingSignals) RemoveSignal(signo Signo) {
	if !signo.Valid() {
		return
	}
	if signo.IsRealtime() {
		p.realtime[signo-SIGRTMIN] = nil
	} else {
		p.standard[signo-1] = nil
	}
	p.set.Remove(signo)
}

// HasSignal reports whether signo is pending.
func (p *PendingSignals) HasSignal(signo Signo) bool {
	return p.set.Has(signo)
}

// Set returns the set of pending signos.
func (p *PendingSignals) Set() SignalSet {
	return p.set
}

// Empty reports whether nothing is pending.
func (p *PendingSignals) Empty() bool {
	return p.set.Empty()
}
