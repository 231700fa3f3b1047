// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ksignal_test

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"code.hybscloud.com/iox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/ksignal"
)

// =============================================================================
// Send / block / dequeue
// =============================================================================

func TestThread_SendSignal(t *testing.T) {
	env := newTestEnv()

	ok := env.thr.SendSignal(ksignal.NewUserSignalInfo(ksignal.SIGINT, 0, 1))
	assert.True(t, ok, "unblocked send should request a wake")
	assert.True(t, env.thr.Pending().Has(ksignal.SIGINT))
	assert.False(t, env.proc.Pending().Has(ksignal.SIGINT),
		"thread-directed signals never land in the process store")
}

func TestThread_SendIgnoredDiscards(t *testing.T) {
	env := newTestEnv()
	env.actions.Set(ksignal.SIGINT, ksignal.SignalAction{
		Disposition: ksignal.DispositionIgnore,
	})

	ok := env.thr.SendSignal(ksignal.NewUserSignalInfo(ksignal.SIGINT, 0, 1))
	assert.False(t, ok)
	assert.False(t, env.thr.Pending().Has(ksignal.SIGINT))
}

func TestThread_BlockHidesButPreserves(t *testing.T) {
	env := newTestEnv()

	prev := env.thr.SetBlocked(setOf(ksignal.SIGINT))
	assert.True(t, prev.Empty())
	assert.True(t, env.thr.SignalBlocked(ksignal.SIGINT))

	ok := env.thr.SendSignal(ksignal.NewUserSignalInfo(ksignal.SIGINT, 0, 1))
	assert.False(t, ok, "blocked send should not request a wake")
	assert.True(t, env.thr.Pending().Has(ksignal.SIGINT), "signal stays pending")

	tf := env.userFrame(0x4000_1000)
	sig, _ := env.thr.CheckSignals(tf, nil)
	assert.Nil(t, sig, "blocked signal must not deliver")

	env.thr.SetBlocked(0)
	assert.False(t, env.thr.SignalBlocked(ksignal.SIGINT))

	sig, osAction := env.thr.CheckSignals(tf, nil)
	require.NotNil(t, sig)
	assert.Equal(t, ksignal.SIGINT, sig.Signo)
	assert.Equal(t, ksignal.OSActionTerminate, osAction)
}

func TestThread_DequeueThreadBeforeProcess(t *testing.T) {
	env := newTestEnv()
	mask := ksignal.SignalSet(0).Complement()

	require.True(t, env.thr.SendSignal(ksignal.NewUserSignalInfo(ksignal.SIGINT, 9, 9)))
	tid, ok := env.proc.SendSignal(ksignal.NewUserSignalInfo(ksignal.SIGTERM, 9, 9))
	require.True(t, ok)
	assert.Equal(t, testTid, tid)

	first := env.thr.DequeueSignal(mask)
	require.NotNil(t, first)
	assert.Equal(t, ksignal.SIGINT, first.Signo, "thread store drains first")

	second := env.thr.DequeueSignal(mask)
	require.NotNil(t, second)
	assert.Equal(t, ksignal.SIGTERM, second.Signo)

	assert.Nil(t, env.thr.DequeueSignal(mask))
}

func TestThread_WithBlockedMut(t *testing.T) {
	env := newTestEnv()
	env.thr.WithBlockedMut(func(set *ksignal.SignalSet) {
		set.Add(ksignal.SIGUSR1)
	})
	assert.True(t, env.thr.SignalBlocked(ksignal.SIGUSR1))
	env.thr.WithBlockedMut(func(set *ksignal.SignalSet) {
		set.Remove(ksignal.SIGUSR1)
	})
	assert.False(t, env.thr.SignalBlocked(ksignal.SIGUSR1))
}

// =============================================================================
// Handler delivery
// =============================================================================

func TestThread_HandlerRewritesTrapFrame(t *testing.T) {
	env := newTestEnv()
	handler := env.handlerAction(ksignal.SIGTERM, 0)

	tf := env.userFrame(0x4000_1000)
	initialSP := tf.SP()

	require.True(t, env.thr.SendSignal(ksignal.NewUserSignalInfo(ksignal.SIGTERM, 9, 9)))
	sig, osAction := env.thr.CheckSignals(tf, nil)
	require.NotNil(t, sig)
	assert.Equal(t, ksignal.OSActionHandler, osAction)

	assert.Equal(t, handler, tf.IP(), "ip enters the handler")
	assert.True(t, tf.SP() < initialSP, "frame grows the stack down")
	assert.Equal(t, uintptr(ksignal.SIGTERM), tf.Arg0())

	// arg1 addresses the embedded siginfo: its first field is the
	// signal number.
	var signoCell [4]byte
	require.NoError(t, env.vm.Read(tf.Arg1(), signoCell[:]))
	assert.Equal(t, uint32(ksignal.SIGTERM), binary.NativeEndian.Uint32(signoCell[:]))

	// arg2 addresses the ucontext at the frame base.
	assert.Equal(t, tf.SP()+ksignal.PushedRASize, tf.Arg2())

	// The delivered signal is deferred for the handler's duration.
	assert.True(t, env.thr.SignalBlocked(ksignal.SIGTERM))

	// On targets without a link register the restorer was pushed at
	// the new stack top.
	if ksignal.PushedRASize > 0 {
		var ra [8]byte
		require.NoError(t, env.vm.Read(tf.SP(), ra[:]))
		assert.Equal(t, uint64(testRestorer), binary.NativeEndian.Uint64(ra[:]))
	}
}

func TestThread_RestoreInvertsHandler(t *testing.T) {
	env := newTestEnv()
	env.handlerAction(ksignal.SIGTERM, 0)

	tf := env.userFrame(0x4000_1000)
	initialIP, initialSP := tf.IP(), tf.SP()

	require.True(t, env.thr.SendSignal(ksignal.NewUserSignalInfo(ksignal.SIGTERM, 0, 1)))
	sig, osAction := env.thr.CheckSignals(tf, nil)
	require.NotNil(t, sig)
	require.Equal(t, ksignal.OSActionHandler, osAction)

	// The restorer trampoline runs after the handler returned; the
	// return-address pop has advanced the stack pointer.
	tf.SetSP(tf.SP() + ksignal.PushedRASize)
	require.NoError(t, env.thr.Restore(tf))

	assert.Equal(t, initialIP, tf.IP())
	assert.Equal(t, initialSP, tf.SP())
	assert.False(t, env.thr.SignalBlocked(ksignal.SIGTERM),
		"blocked mask restored from the frame")
}

func TestThread_HandlerMaskAndNodefer(t *testing.T) {
	env := newTestEnv()
	env.actions.Set(ksignal.SIGTERM, ksignal.SignalAction{
		Disposition: ksignal.DispositionHandler,
		Handler:     0x4000_2000,
		Flags:       ksignal.SA_NODEFER,
		Mask:        setOf(ksignal.SIGUSR1, ksignal.SIGUSR2),
	})

	tf := env.userFrame(0x4000_1000)
	require.True(t, env.thr.SendSignal(ksignal.NewUserSignalInfo(ksignal.SIGTERM, 0, 1)))
	sig, _ := env.thr.CheckSignals(tf, nil)
	require.NotNil(t, sig)

	assert.True(t, env.thr.SignalBlocked(ksignal.SIGUSR1), "action mask applies")
	assert.True(t, env.thr.SignalBlocked(ksignal.SIGUSR2))
	assert.False(t, env.thr.SignalBlocked(ksignal.SIGTERM),
		"SA_NODEFER leaves the delivered signal unblocked")
}

func TestThread_ResetHand(t *testing.T) {
	env := newTestEnv()
	env.actions.Set(ksignal.SIGTERM, ksignal.SignalAction{
		Disposition: ksignal.DispositionHandler,
		Handler:     0x4000_2000,
		Flags:       ksignal.SA_RESETHAND,
	})

	tf := env.userFrame(0x4000_1000)
	require.True(t, env.thr.SendSignal(ksignal.NewUserSignalInfo(ksignal.SIGTERM, 0, 1)))
	sig, _ := env.thr.CheckSignals(tf, nil)
	require.NotNil(t, sig)

	after := env.actions.Get(ksignal.SIGTERM)
	assert.Equal(t, ksignal.DispositionDefault, after.Disposition,
		"SA_RESETHAND restores the default action")
}

func TestThread_AlternateStack(t *testing.T) {
	env := newTestEnv()
	env.handlerAction(ksignal.SIGUSR1, ksignal.SA_ONSTACK)

	altTop := env.vm.base() + 96*1024
	env.thr.SetStack(ksignal.SignalStack{
		SP:   altTop,
		Size: 32 * 1024,
	})

	tf := env.userFrame(0x4000_1000)
	require.True(t, env.thr.SendSignal(ksignal.NewUserSignalInfo(ksignal.SIGUSR1, 0, 1)))
	sig, osAction := env.thr.CheckSignals(tf, nil)
	require.NotNil(t, sig)
	require.Equal(t, ksignal.OSActionHandler, osAction)

	assert.True(t, tf.SP() < altTop, "frame lands on the alternate stack")
	assert.True(t, tf.SP() > altTop-64*1024)
}

func TestThread_AlternateStackDisabled(t *testing.T) {
	env := newTestEnv()
	env.handlerAction(ksignal.SIGUSR1, ksignal.SA_ONSTACK)

	stack := ksignal.DefaultSignalStack()
	require.True(t, stack.Disabled())
	env.thr.SetStack(stack)

	tf := env.userFrame(0x4000_1000)
	initialSP := tf.SP()
	require.True(t, env.thr.SendSignal(ksignal.NewUserSignalInfo(ksignal.SIGUSR1, 0, 1)))
	sig, _ := env.thr.CheckSignals(tf, nil)
	require.NotNil(t, sig)

	assert.True(t, tf.SP() < initialSP)
	assert.True(t, tf.SP() > initialSP-2*ksignal.SignalFrameSize,
		"disabled alternate stack falls back to the current stack")
}

func TestThread_FrameWriteFaultDumpsCore(t *testing.T) {
	actions := ksignal.NewActionTable()
	proc := ksignal.NewProcessSignalManager(faultVM{}, actions, 0)
	thr := ksignal.NewThreadSignalManager(1, proc)
	actions.Set(ksignal.SIGTERM, ksignal.SignalAction{
		Disposition: ksignal.DispositionHandler,
		Handler:     0x4000_2000,
	})

	tf := &ksignal.TrapFrame{}
	tf.SetSP(0x8000_0000)
	require.True(t, thr.SendSignal(ksignal.NewUserSignalInfo(ksignal.SIGTERM, 0, 1)))

	sig, osAction := thr.CheckSignals(tf, nil)
	require.NotNil(t, sig)
	assert.Equal(t, ksignal.OSActionCoreDump, osAction)
}

// =============================================================================
// Delivery loop and default actions
// =============================================================================

func TestThread_DefaultActionMapping(t *testing.T) {
	tests := []struct {
		signo ksignal.Signo
		want  ksignal.OSAction
	}{
		{ksignal.SIGTERM, ksignal.OSActionTerminate},
		{ksignal.SIGQUIT, ksignal.OSActionCoreDump},
		{ksignal.SIGTSTP, ksignal.OSActionStop},
		{ksignal.SIGCONT, ksignal.OSActionContinue},
	}
	for _, tt := range tests {
		env := newTestEnv()
		tf := env.userFrame(0x4000_1000)
		env.thr.SendSignal(ksignal.NewKernelSignalInfo(tt.signo))

		sig, osAction := env.thr.CheckSignals(tf, nil)
		require.NotNil(t, sig, "signal %v", tt.signo)
		assert.Equal(t, tt.signo, sig.Signo)
		assert.Equal(t, tt.want, osAction)
	}
}

func TestThread_LoopSkipsIgnoredAndDelivers(t *testing.T) {
	env := newTestEnv()

	// Enqueue while deliverable, then flip the disposition: the
	// delivery loop must discard it and keep going.
	require.True(t, env.thr.SendSignal(ksignal.NewUserSignalInfo(ksignal.SIGINT, 0, 1)))
	require.True(t, env.thr.SendSignal(ksignal.NewUserSignalInfo(ksignal.SIGTERM, 0, 1)))
	env.actions.Set(ksignal.SIGINT, ksignal.SignalAction{
		Disposition: ksignal.DispositionIgnore,
	})

	tf := env.userFrame(0x4000_1000)
	sig, osAction := env.thr.CheckSignals(tf, nil)
	require.NotNil(t, sig)
	assert.Equal(t, ksignal.SIGTERM, sig.Signo, "ignored signal is skipped")
	assert.Equal(t, ksignal.OSActionTerminate, osAction)
	assert.False(t, env.thr.Pending().Has(ksignal.SIGINT), "skipped signal is consumed")
}

func TestThread_CheckSignalsEmpty(t *testing.T) {
	env := newTestEnv()
	tf := env.userFrame(0x4000_1000)
	sig, _ := env.thr.CheckSignals(tf, nil)
	assert.Nil(t, sig)
}

func TestThread_SigsuspendRestoreMask(t *testing.T) {
	env := newTestEnv()
	env.handlerAction(ksignal.SIGTERM, 0)

	// A sigsuspend-style caller delivers with a temporary mask but
	// records its pre-suspend mask in the frame.
	saved := setOf(ksignal.SIGUSR2)
	tf := env.userFrame(0x4000_1000)
	require.True(t, env.thr.SendSignal(ksignal.NewUserSignalInfo(ksignal.SIGTERM, 0, 1)))
	sig, _ := env.thr.CheckSignals(tf, &saved)
	require.NotNil(t, sig)

	tf.SetSP(tf.SP() + ksignal.PushedRASize)
	require.NoError(t, env.thr.Restore(tf))
	assert.Equal(t, saved, env.thr.Blocked(),
		"restore reinstates the caller-provided mask")
}

// =============================================================================
// Wait paths
// =============================================================================

func TestThread_TryWait(t *testing.T) {
	env := newTestEnv()
	env.thr.SetBlocked(setOf(ksignal.SIGUSR1))

	_, err := env.thr.TryWait(setOf(ksignal.SIGUSR1))
	assert.ErrorIs(t, err, iox.ErrWouldBlock)

	env.thr.SendSignal(ksignal.NewUserSignalInfo(ksignal.SIGUSR1, 0, 1))
	sig, err := env.thr.TryWait(setOf(ksignal.SIGUSR1))
	require.NoError(t, err)
	assert.Equal(t, ksignal.SIGUSR1, sig.Signo)

	// Only blocked signals are eligible.
	env.thr.SetBlocked(0)
	env.thr.SendSignal(ksignal.NewUserSignalInfo(ksignal.SIGUSR1, 0, 1))
	_, err = env.thr.TryWait(setOf(ksignal.SIGUSR1))
	assert.ErrorIs(t, err, iox.ErrWouldBlock)
}

func TestThread_WaitDeliversConcurrentSend(t *testing.T) {
	env := newTestEnv()
	env.thr.SetBlocked(setOf(ksignal.SIGUSR1))

	go func() {
		time.Sleep(10 * time.Millisecond)
		env.thr.SendSignal(ksignal.NewUserSignalInfo(ksignal.SIGUSR1, 0, 1))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sig, err := env.thr.Wait(ctx, setOf(ksignal.SIGUSR1))
	require.NoError(t, err)
	assert.Equal(t, ksignal.SIGUSR1, sig.Signo)
}

func TestThread_WaitInterrupted(t *testing.T) {
	env := newTestEnv()
	env.thr.SetBlocked(setOf(ksignal.SIGUSR1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := env.thr.Wait(ctx, setOf(ksignal.SIGUSR1))
	assert.ErrorIs(t, err, ksignal.ErrInterrupted)
}
