// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ksignal

import "go.uber.org/zap"

// logger is the package logger. Silent unless the embedding kernel
// installs one; delivery paths only emit debug and warn records.
var logger = zap.NewNop()

// SetLogger installs the logger used by the signal core.
// Passing nil restores the no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}
