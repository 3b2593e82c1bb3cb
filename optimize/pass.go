package optimize

import (
	"log/slog"

	"github.com/llir/llvm/ir"
)

// FunctionPass rewrites a single function in place and reports whether it changed anything.
// Passes never fail: a rewrite that does not apply leaves the IR untouched.
type FunctionPass interface {
	Name() string
	RunOnFunction(f *ir.Func, stats *Stats) bool
}

// ModulePass rewrites a whole module in place
type ModulePass interface {
	Name() string
	RunOnModule(m *ir.Module, stats *Stats) bool
}

// passInfo describes a registered pass and the lowest level it runs at
type passInfo struct {
	name  string
	level Level
	// exactly one of the constructors is set
	function func(logger *slog.Logger, cfg *config) FunctionPass
	module   func(logger *slog.Logger, cfg *config) ModulePass
}

// registry lists every pass in pipeline order
var registry = []passInfo{
	{name: "constfold", level: O1, function: func(l *slog.Logger, _ *config) FunctionPass { return &ConstantFolding{Logger: l} }},
	{name: "dce", level: O1, function: func(l *slog.Logger, _ *config) FunctionPass { return &DeadCodeElimination{Logger: l} }},
	{name: "reassoc", level: O2, function: func(l *slog.Logger, _ *config) FunctionPass { return &Reassociate{Logger: l} }},
	{name: "gvn", level: O2, function: func(l *slog.Logger, _ *config) FunctionPass { return &ValueNumbering{Logger: l} }},
	{name: "inline", level: O2, module: func(l *slog.Logger, cfg *config) ModulePass {
		return &Inliner{Logger: l, Threshold: cfg.inlineThreshold}
	}},
	{name: "arith", level: O3, function: func(l *slog.Logger, _ *config) FunctionPass { return &ArithmeticSimplification{Logger: l} }},
	{name: "typedirected", level: O3, function: func(l *slog.Logger, _ *config) FunctionPass { return &TypeDirected{Logger: l} }},
}

// llText and identText render IR only when a log record is written
type llText struct{ node interface{ LLString() string } }

func (t llText) LogValue() slog.Value { return slog.StringValue(t.node.LLString()) }

type identText struct{ v interface{ Ident() string } }

func (t identText) LogValue() slog.Value { return slog.StringValue(t.v.Ident()) }
