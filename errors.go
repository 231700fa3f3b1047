// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ksignal

import (
	"errors"

	"code.hybscloud.com/zcall"
)

// Error definitions for signal operations.
// These errors provide semantic meaning for delivery and ABI failures.
var (
	// ErrInvalidFlags indicates unknown bits in an incoming sigaction.
	ErrInvalidFlags = errors.New("ksignal: invalid sigaction flags")

	// ErrInvalidSigno indicates a signal number outside 1..NumSignals.
	ErrInvalidSigno = errors.New("ksignal: invalid signal number")

	// ErrQueueFull indicates the real-time signal queue limit was hit.
	ErrQueueFull = errors.New("ksignal: real-time signal queue full")

	// ErrFault indicates a user-memory access failed while building or
	// reading a signal frame.
	ErrFault = errors.New("ksignal: user memory fault")

	// ErrInterrupted indicates a wait was cancelled before a signal
	// became pending.
	ErrInterrupted = errors.New("ksignal: interrupted")
)

// AsErrno maps a semantic error to the ABI errno reported to user space.
// Returns 0 for nil.
func AsErrno(err error) zcall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInvalidFlags), errors.Is(err, ErrInvalidSigno):
		return zcall.EINVAL
	case errors.Is(err, ErrQueueFull):
		return zcall.EAGAIN
	case errors.Is(err, ErrFault):
		return zcall.EFAULT
	case errors.Is(err, ErrInterrupted):
		return zcall.EINTR
	default:
		return zcall.EINVAL
	}
}
