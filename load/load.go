// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package load reads the three inputs a weval run needs — a module, an
// image, and a directive file — and parses the directive file's text
// format (§11.3). Decoding the module and image binaries themselves is
// out of scope (§13 Non-goals: no WebAssembly binary format parser);
// callers supply the decode step so this package can concentrate on
// doing the three reads concurrently and then parsing directives
// against the decoded module.
package load

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/aclements/weval/abstractval"
	"github.com/aclements/weval/image"
	"github.com/aclements/weval/ir"
	"github.com/aclements/weval/module"
	"github.com/aclements/weval/weval"
)

// Decoder turns raw file bytes into the collaborator types. Supplying
// these lets this package stay agnostic to whatever module/image
// encoding a particular embedder uses.
type Decoder struct {
	DecodeModule func([]byte) (*module.Module, error)
	DecodeImage  func([]byte) (*image.Image, error)
}

// All reads modulePath, imagePath, and directivesPath concurrently
// (grounded in dashquery/main.go's errgroup.WithContext fan-out over
// independent HTTP fetches), decodes the module and image, and parses
// the directive file against the decoded module's exports.
func All(ctx context.Context, modulePath, imagePath, directivesPath string, dec Decoder) (*module.Module, *image.Image, []weval.Directive, error) {
	var mod *module.Module
	var img *image.Image
	var directiveBytes []byte

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := os.ReadFile(modulePath)
		if err != nil {
			return fmt.Errorf("reading module: %w", err)
		}
		mod, err = dec.DecodeModule(b)
		if err != nil {
			return fmt.Errorf("decoding module: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		b, err := os.ReadFile(imagePath)
		if err != nil {
			return fmt.Errorf("reading image: %w", err)
		}
		img, err = dec.DecodeImage(b)
		if err != nil {
			return fmt.Errorf("decoding image: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		b, err := os.ReadFile(directivesPath)
		if err != nil {
			return fmt.Errorf("reading directives: %w", err)
		}
		directiveBytes = b
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}

	directives, err := ParseDirectives(bytes.NewReader(directiveBytes), mod)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parsing directives: %w", err)
	}
	return mod, img, directives, nil
}

// ParseDirectives reads one directive per non-blank, non-comment line
// of r, in the format documented in §11.3:
//
//	<func-name> <out-addr-hex> <arg>...
//
// where each <arg> is either "_" (runtime) or a hex literal optionally
// suffixed with "c" to tag it const_memory (meaningful only for i32
// arguments used as pointers).
func ParseDirectives(r io.Reader, mod *module.Module) ([]weval.Directive, error) {
	var out []weval.Directive
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		d, err := parseDirectiveLine(mod, line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, d)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseDirectiveLine(mod *module.Module, line string) (weval.Directive, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return weval.Directive{}, fmt.Errorf("expected \"<func> <out-addr> <arg>...\", got %q", line)
	}

	name := fields[0]
	id, ok := mod.FindExport(name)
	if !ok {
		return weval.Directive{}, fmt.Errorf("no such export %q", name)
	}
	fsig := mod.FuncSig(id)

	addr, err := strconv.ParseUint(fields[1], 0, 32)
	if err != nil {
		return weval.Directive{}, fmt.Errorf("bad out-addr %q: %w", fields[1], err)
	}

	argFields := fields[2:]
	if len(argFields) != len(fsig.Params) {
		return weval.Directive{}, fmt.Errorf("function %s takes %d params, directive supplies %d", name, len(fsig.Params), len(argFields))
	}

	params := make([]weval.ParamInit, len(argFields))
	for i, f := range argFields {
		p, err := parseParam(fsig.Params[i], f)
		if err != nil {
			return weval.Directive{}, fmt.Errorf("arg %d (%q): %w", i, f, err)
		}
		params[i] = p
	}

	return weval.Directive{
		Func:             id,
		ConstParams:      params,
		FuncIndexOutAddr: uint32(addr),
	}, nil
}

func parseParam(typ ir.Type, field string) (weval.ParamInit, error) {
	if field == "_" {
		return weval.ParamInit{Concrete: false}, nil
	}

	tags := abstractval.Tags(0)
	lit := field
	if strings.HasSuffix(lit, "c") {
		tags |= abstractval.ConstMemory
		lit = strings.TrimSuffix(lit, "c")
	}

	n, err := strconv.ParseUint(lit, 0, 64)
	if err != nil {
		return weval.ParamInit{}, err
	}

	var val abstractval.WasmVal
	switch typ.String() {
	case "i32":
		val = abstractval.I32Val(uint32(n))
	case "i64":
		val = abstractval.I64Val(n)
	default:
		return weval.ParamInit{}, fmt.Errorf("concrete float directive arguments are not supported")
	}

	return weval.ParamInit{Concrete: true, Val: val, Tags: tags}, nil
}
