// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command weval partially evaluates a set of functions in a module
// against directive-supplied constant arguments, writing the
// specialized module back out.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"golang.org/x/crypto/ssh/terminal"

	"github.com/aclements/weval/intrinsics"
	"github.com/aclements/weval/load"
	"github.com/aclements/weval/modfile"
	"github.com/aclements/weval/report"
	"github.com/aclements/weval/weval"
)

var (
	modulePath     string
	imagePath      string
	directivesPath string
	outPath        string
	reportPath     string
	verbose        bool
	veryVerbose    bool
)

func main() {
	flag.StringVar(&modulePath, "module", "", "input module `file`")
	flag.StringVar(&imagePath, "image", "", "input memory image `file`")
	flag.StringVar(&directivesPath, "directives", "", "directive list `file`")
	flag.StringVar(&outPath, "out", "", "output module `file`")
	flag.StringVar(&reportPath, "report", "", "if set, write a specialization report to `file`")
	flag.BoolVar(&verbose, "v", false, "raise log level to debug")
	flag.BoolVar(&veryVerbose, "vv", false, "raise log level to trace")
	flag.Parse()
	if flag.NArg() > 0 {
		flag.Usage()
		os.Exit(2)
	}
	if modulePath == "" || imagePath == "" || directivesPath == "" || outPath == "" {
		fmt.Fprintln(os.Stderr, "weval: -module, -image, -directives, and -out are all required")
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       logLevel(),
		ReplaceAttr: weval.ReplaceTraceLevel,
	}))

	if err := run(logger); err != nil {
		logger.Error("weval failed", "err", err)
		os.Exit(1)
	}
}

func logLevel() slog.Level {
	switch {
	case veryVerbose:
		return weval.LevelTrace
	case verbose:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func run(logger *slog.Logger) error {
	mod, img, directives, err := load.All(context.Background(), modulePath, imagePath, directivesPath, load.Decoder{
		DecodeModule: modfile.DecodeModule,
		DecodeImage:  modfile.DecodeImage,
	})
	if err != nil {
		return err
	}

	in := intrinsics.Resolve(mod)
	rep := newProgress(len(directives))
	defer rep.stop()

	var stats []report.Stat
	for i, d := range directives {
		origBody := mod.FuncBody(d.Func)

		rep.status(i, d.Func)
		if derr := weval.PartiallyEvaluate(logger, mod, img, in, []weval.Directive{d}); derr != nil {
			return derr
		}

		if reportPath != "" {
			newBody := mod.FuncBody(len(mod.Funcs) - 1)
			stats = append(stats, report.StatFor(fmt.Sprintf("func%d", d.Func), origBody, newBody))
		}
	}

	out, err := modfile.EncodeModule(mod)
	if err != nil {
		return fmt.Errorf("encoding output module: %w", err)
	}
	if err := os.WriteFile(outPath, out, 0644); err != nil {
		return fmt.Errorf("writing output module: %w", err)
	}

	if reportPath != "" {
		summary := report.Summarize(stats)
		logger.Info("specialization report", "summary", summary.String())
		f, err := os.Create(reportPath)
		if err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		defer f.Close()
		if err := report.WriteSVG(f, stats); err != nil {
			return fmt.Errorf("rendering report: %w", err)
		}
	}
	return nil
}

// progress mirrors stress2/reporter.go's VT100-vs-dumb split: a status
// line per directive when stdout is a terminal, one log line per
// directive otherwise.
type progress struct {
	total      int
	isTerminal bool
}

func newProgress(total int) *progress {
	return &progress{total: total, isTerminal: terminal.IsTerminal(syscall.Stdout)}
}

func (p *progress) status(i, funcID int) {
	if p.isTerminal {
		fmt.Fprintf(os.Stderr, "\rspecializing %d/%d (func %d)...", i+1, p.total, funcID)
	} else {
		fmt.Fprintf(os.Stderr, "specializing %d/%d (func %d)\n", i+1, p.total, funcID)
	}
}

func (p *progress) stop() {
	if p.isTerminal {
		fmt.Fprintln(os.Stderr)
	}
}
