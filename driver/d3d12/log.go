// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package d3d12

import (
	"log/slog"
	"sync/atomic"
)

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.Default().With("driver", driverName))
}

// SetLogger replaces the logger used by the package.
// A nil l restores the default logger.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default().With("driver", driverName)
	}
	logger.Store(l)
}

func log() *slog.Logger { return logger.Load() }
