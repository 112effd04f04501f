// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package report summarizes and plots the outcome of a specialization
// run: how many blocks and values each directive's output grew to
// relative to the original function, and how many branches and loads
// folded away. It is modeled on benchplot/plot.go's table.Grouping/
// ggstat pipeline, adapted from "commit over time" to "directive over
// function".
package report

import (
	"fmt"
	"image/color"
	"io"

	"github.com/aclements/go-gg/gg"
	"github.com/aclements/go-gg/ggstat"
	"github.com/aclements/go-gg/table"
	"github.com/aclements/go-moremath/stats"

	"github.com/aclements/weval/ir"
)

// Stat is one directive's specialization outcome, gathered by the
// driver as it runs (§4.1).
type Stat struct {
	FuncName       string
	OrigBlocks     int
	NewBlocks      int
	OrigValues     int
	NewValues      int
	BranchesFolded int
	LoadsFolded    int
}

// row is the flattened, plot-ready shape of a Stat; table.TableFromStructs
// (benchplot's convention for turning a Go slice into a table.Grouping)
// needs exported fields with simple types.
type row struct {
	Func           string
	BlockGrowth    float64
	ValueGrowth    float64
	BranchesFolded float64
	LoadsFolded    float64
}

func toRows(stats []Stat) []row {
	rows := make([]row, len(stats))
	for i, s := range stats {
		rows[i] = row{
			Func:           s.FuncName,
			BlockGrowth:    ratio(s.NewBlocks, s.OrigBlocks),
			ValueGrowth:    ratio(s.NewValues, s.OrigValues),
			BranchesFolded: float64(s.BranchesFolded),
			LoadsFolded:    float64(s.LoadsFolded),
		}
	}
	return rows
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// FoldCounts walks a function body and counts the residual conditional
// terminators (CondBr, Select) and load operators it still contains.
// Comparing the counts from an original body against its specialized
// counterpart gives the number of branches and loads weval folded away.
func FoldCounts(body *ir.Func) (condBranches, loads int) {
	if body == nil {
		return 0, 0
	}
	for _, b := range body.Blocks {
		switch b.Term.Kind {
		case ir.TermCondBr, ir.TermSelect:
			condBranches++
		}
		for _, v := range b.Insts {
			switch body.Defs[v].Op {
			case ir.OpI32Load, ir.OpI32Load8S, ir.OpI32Load8U, ir.OpI32Load16S, ir.OpI32Load16U,
				ir.OpI64Load, ir.OpI64Load8S, ir.OpI64Load8U, ir.OpI64Load16S, ir.OpI64Load16U, ir.OpI64Load32S, ir.OpI64Load32U:
				loads++
			}
		}
	}
	return condBranches, loads
}

// StatFor builds a Stat comparing an original function body to its
// specialized counterpart.
func StatFor(name string, orig, specialized *ir.Func) Stat {
	origBranches, origLoads := FoldCounts(orig)
	newBranches, newLoads := FoldCounts(specialized)

	origValues, newValues := 0, 0
	if orig != nil {
		origValues = len(orig.Defs)
	}
	if specialized != nil {
		newValues = len(specialized.Defs)
	}

	origBlocks, newBlocks := 0, 0
	if orig != nil {
		origBlocks = len(orig.Blocks)
	}
	if specialized != nil {
		newBlocks = len(specialized.Blocks)
	}

	return Stat{
		FuncName:       name,
		OrigBlocks:     origBlocks,
		NewBlocks:      newBlocks,
		OrigValues:     origValues,
		NewValues:      newValues,
		BranchesFolded: clampNonNeg(origBranches - newBranches),
		LoadsFolded:    clampNonNeg(origLoads - newLoads),
	}
}

func clampNonNeg(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// WriteSVG renders a run's Plot to w, following benchplot/main.go's
// p.WriteSVG(f, 500*ncols, 350*nrows) convention; this report is always
// one row of one metric, so it fixes a single-panel size.
func WriteSVG(w io.Writer, ss []Stat) error {
	return Plot(ss).WriteSVG(w, 500, 350)
}

// Summary is the aggregate view across every directive in a run.
type Summary struct {
	N                 int
	MeanBlockGrowth   float64
	MeanBranchesFolded float64
	MeanLoadsFolded   float64
}

// Summarize computes the aggregate Summary of a set of per-directive
// Stats using go-moremath/stats, the same library benchmany/readlog.go
// uses to average benchmark samples.
func Summarize(ss []Stat) Summary {
	if len(ss) == 0 {
		return Summary{}
	}
	growth := make([]float64, len(ss))
	branches := make([]float64, len(ss))
	loads := make([]float64, len(ss))
	for i, s := range ss {
		growth[i] = ratio(s.NewBlocks, s.OrigBlocks)
		branches[i] = float64(s.BranchesFolded)
		loads[i] = float64(s.LoadsFolded)
	}
	return Summary{
		N:                  len(ss),
		MeanBlockGrowth:    stats.Mean(growth),
		MeanBranchesFolded: stats.Mean(branches),
		MeanLoadsFolded:    stats.Mean(loads),
	}
}

// Table builds the table.Grouping a Plot (or any further go-gg
// pipeline) operates on.
func Table(ss []Stat) table.Grouping {
	return table.TableFromStructs(toRows(ss))
}

// Plot renders one tile per function name, y = mean block count growth
// ratio, following the facet/layer style of benchplot/plot.go's gg.Plot
// construction. The folded branch and load means are carried in the
// table but are not drawn.
func Plot(ss []Stat) *gg.Plot {
	t := Table(ss)

	// Aggregate in case the same function name appears under more
	// than one directive.
	t = ggstat.Agg("Func")(ggstat.AggMean("BlockGrowth"), ggstat.AggMean("BranchesFolded"), ggstat.AggMean("LoadsFolded")).F(t)
	t = table.Rename(t, "mean BlockGrowth", "BlockGrowth")
	t = table.Rename(t, "mean BranchesFolded", "BranchesFolded")
	t = table.Rename(t, "mean LoadsFolded", "LoadsFolded")

	plot := gg.NewPlot(t)
	plot.SetScale("y", gg.NewLinearScaler().Include(0))
	plot.Add(gg.LayerTiles{
		X:    "Func",
		Y:    "BlockGrowth",
		Fill: plot.Const(color.Gray{128}),
	})
	return plot
}

// String renders a Summary the way benchmany's textual reports do:
// plain, single-line stats, no tabwriter alignment.
func (s Summary) String() string {
	return fmt.Sprintf("%d directives, mean block growth %.2fx, mean branches folded %.1f, mean loads folded %.1f",
		s.N, s.MeanBlockGrowth, s.MeanBranchesFolded, s.MeanLoadsFolded)
}
