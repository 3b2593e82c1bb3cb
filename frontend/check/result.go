package check

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/quill-lang/quill/frontend/ast"
	"github.com/quill-lang/quill/frontend/qerr"
	"github.com/quill-lang/quill/frontend/types"
	"github.com/samber/lo"
)

// Warning is a diagnostic that never blocks compilation
type Warning struct {
	ast.Positioner
	Message string
}

func (w Warning) String() string {
	return "warning: " + w.Message
}

// Result is the outcome of checking a single statement, expression or function.
// Type is always set, to types.Error when checking failed.
type Result struct {
	Type     types.Type
	Errors   *qerr.Errors
	Warnings []Warning
}

func ok(t types.Type) Result {
	return Result{Type: t}
}

func failed(err qerr.QuillError) Result {
	return Result{Type: types.NewError("%s", err.Error()), Errors: (*qerr.Errors)(nil).With(err)}
}

func (r Result) HasErrors() bool {
	return r.Errors.HasError()
}

// absorb moves the diagnostics of other into r
func (r *Result) absorb(other Result) {
	r.Errors = r.Errors.Merge(other.Errors)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// Specialization is the signature a function takes for one tuple of argument types at a call site
type Specialization struct {
	Function  string
	Signature *types.Function
}

func (s Specialization) String() string {
	return s.Function + ": " + s.Signature.String()
}

// ProgramResult collects the outcome of checking a whole program.
// Errors in one function never prevent the others from being checked.
type ProgramResult struct {
	// Signatures holds the default signature of every function, by name, in declaration order
	Signatures      []NamedSignature
	Specializations []Specialization
	Errors          *qerr.Errors
	Warnings        []Warning
}

type NamedSignature struct {
	Name      string
	Signature *types.Function
}

func (r *ProgramResult) HasErrors() bool {
	return r.Errors.HasError()
}

// Signature returns the default signature of name with the given arity, or of the last
// declaration of name when arity is negative
func (r *ProgramResult) Signature(name string, arity int) (*types.Function, bool) {
	for _, s := range slices.Backward(r.Signatures) {
		if s.Name == name && (arity < 0 || len(s.Signature.Params) == arity) {
			return s.Signature, true
		}
	}
	return nil, false
}

// SpecializationsOf returns the specialized signatures recorded for name
func (r *ProgramResult) SpecializationsOf(name string) []*types.Function {
	return lo.FilterMap(r.Specializations, func(s Specialization, _ int) (*types.Function, bool) {
		return s.Signature, s.Function == name
	})
}

// HasSpecialization reports whether some call of name was specialized with arguments of the given types
func (r *ProgramResult) HasSpecialization(name string, args []types.Type) bool {
	return lo.ContainsBy(r.SpecializationsOf(name), func(sig *types.Function) bool {
		return len(args) == len(sig.Params) && lo.EveryBy(lo.Range(len(args)), func(i int) bool {
			return sig.Params[i].Equals(args[i])
		})
	})
}

// Summary renders every signature and specialization, one per line
func (r *ProgramResult) Summary() string {
	sb := &strings.Builder{}
	for _, s := range r.Signatures {
		fmt.Fprintf(sb, "%s: %v\n", s.Name, s.Signature)
	}
	for _, s := range r.Specializations {
		fmt.Fprintf(sb, "%s [specialized]: %v\n", s.Function, s.Signature)
	}
	return sb.String()
}

func (r *ProgramResult) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("functions", len(r.Signatures)),
		slog.Int("specializations", len(r.Specializations)),
		slog.Any("errors", r.Errors),
		slog.Int("warnings", len(r.Warnings)),
	)
}
