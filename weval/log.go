// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package weval

import "log/slog"

// LevelTrace is one notch below slog.LevelDebug, for the very verbose
// per-block/per-value tracing the evaluator can emit. The standard
// library ships no such level; this bolts one on the way
// minutes3/minutes.go's custom severities do, via ReplaceAttr in the
// handler that formats it.
const LevelTrace = slog.Level(-8)

// ReplaceTraceLevel is a slog.HandlerOptions.ReplaceAttr function that
// renders LevelTrace as "TRACE" instead of slog's default "DEBUG-4".
func ReplaceTraceLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}
