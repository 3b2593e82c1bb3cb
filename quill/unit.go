// Package quill runs the compilation pipeline of a single Quill source file:
// parse, type check, emit LLVM IR and optimize.
package quill

import (
	"go/token"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"testing/fstest"
	"time"

	"github.com/llir/llvm/ir"
	"github.com/pkg/errors"
	"github.com/quill-lang/quill/backend"
	"github.com/quill-lang/quill/frontend/ast"
	"github.com/quill-lang/quill/frontend/check"
	"github.com/quill-lang/quill/frontend/qerr"
	"github.com/quill-lang/quill/internal/log"
	"github.com/quill-lang/quill/irutil"
	"github.com/quill-lang/quill/optimize"
	"github.com/quill-lang/quill/parser"
	"github.com/samber/lo"
)

// EntryPoint is the function `quill run` executes
const EntryPoint = "main"

var ErrNoEntryPoint = errors.New("program has no main function")

var unitLogger = log.DefaultLogger.With("section", "quill")

// Settings configures LoadFile
type Settings struct {
	Level optimize.Level
	// SkipTypeCheck emits code without running the type checker
	SkipTypeCheck bool
	// KeepGoing emits code even when the type checker reported errors
	KeepGoing       bool
	InlineThreshold int
	EnablePasses    []string
	DisablePasses   []string
}

// Timing is the wall time spent in one phase of the pipeline
type Timing struct {
	Phase    string
	Duration time.Duration
}

// Unit is a single compiled source file.
// Stages that did not run leave their field nil: a file with syntax errors has no Check,
// and a file with type errors has no Module unless Settings.KeepGoing is set.
type Unit struct {
	Name    string
	Level   optimize.Level
	Program *ast.Program
	Check   *check.ProgramResult
	Module  *ir.Module
	Stats   optimize.Stats
	Timings []Timing

	fset   *token.FileSet
	errors *qerr.Errors
}

// LoadFile compiles the file at filePath in fsys.
// Diagnostics in the source are reported by Unit.Errors; the returned error is reserved
// for failures that are not the program's fault, such as I/O.
func LoadFile(fsys fs.FS, filePath string, settings Settings) (*Unit, error) {
	src, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", filePath)
	}
	unit := &Unit{
		Name:  path.Base(filePath),
		Level: settings.Level,
		fset:  token.NewFileSet(),
	}
	return unit, unit.compile(src, settings)
}

// NewUnitFromBytes compiles src as a file called name, meant for tests and the REPL
func NewUnitFromBytes(src []byte, name string, settings Settings) (*Unit, error) {
	filesystem := fstest.MapFS{
		name: &fstest.MapFile{Data: src},
	}
	return LoadFile(filesystem, name, settings)
}

func (u *Unit) timed(phase string, f func()) {
	start := time.Now()
	f()
	u.Timings = append(u.Timings, Timing{Phase: phase, Duration: time.Since(start)})
}

func (u *Unit) compile(src []byte, settings Settings) error {
	var parseErrs *qerr.Errors
	u.timed("parse", func() {
		u.Program, parseErrs = parser.ParseToAST(u.fset, u.Name, src)
	})
	u.errors = u.errors.Merge(parseErrs)
	if u.errors.HasError() {
		unitLogger.Debug("stopping after syntax errors", "file", u.Name, "errors", u.errors)
		return nil
	}

	if !settings.SkipTypeCheck {
		u.timed("check", func() {
			u.Check = check.NewChecker().CheckProgram(u.Program)
		})
		u.errors = u.errors.Merge(u.Check.Errors)
		if u.Check.HasErrors() && !settings.KeepGoing {
			unitLogger.Debug("stopping after type errors", "file", u.Name, "check", u.Check)
			return nil
		}
	}

	var err error
	u.timed("emit", func() {
		u.Module, err = backend.NewEmitter(u.fset).EmitProgram(u.Program)
	})
	if err != nil {
		return errors.Wrap(err, "could not emit IR")
	}

	opts := []optimize.Option{}
	if settings.InlineThreshold > 0 {
		opts = append(opts, optimize.WithInlineThreshold(settings.InlineThreshold))
	}
	manager := optimize.NewManager(settings.Level, opts...)
	for _, name := range settings.EnablePasses {
		if err := manager.EnablePass(name); err != nil {
			return err
		}
	}
	for _, name := range settings.DisablePasses {
		if err := manager.DisablePass(name); err != nil {
			return err
		}
	}
	u.timed("optimize", func() {
		u.Stats = manager.RunOptimizations(u.Module)
	})
	unitLogger.Debug("compiled unit", "file", u.Name, "level", settings.Level, slog.Any("stats", u.Stats))
	return nil
}

// Errors returns the diagnostics of every stage that ran
func (u *Unit) Errors() *qerr.Errors {
	return u.errors
}

// Warnings returns the type checker's warnings
func (u *Unit) Warnings() []check.Warning {
	if u.Check == nil {
		return nil
	}
	return u.Check.Warnings
}

// FileSet resolves the positions of Program and of the diagnostics
func (u *Unit) FileSet() *token.FileSet {
	return u.fset
}

// FormatErrors renders every diagnostic as file:line:col: (E000) message, one per line
func (u *Unit) FormatErrors() string {
	return strings.Join(lo.Map(u.errors.Errors(), func(e qerr.QuillError, _ int) string {
		return qerr.FormatWithCodeAndSource(e, u.fset)
	}), "\n")
}

// WriteLLVM writes the optimized module as LLVM assembly
func (u *Unit) WriteLLVM(w io.Writer) error {
	if u.Module == nil {
		return errors.New("unit was not compiled to IR")
	}
	return backend.WriteModule(w, u.Module)
}

// Run executes main with the IR interpreter, writing what the program prints to out.
// A fuel of zero uses the interpreter's default.
func (u *Unit) Run(out io.Writer, fuel int) (float64, error) {
	if u.Module == nil {
		return 0, errors.New("unit was not compiled to IR")
	}
	if u.Program.Function(EntryPoint) == nil {
		return 0, ErrNoEntryPoint
	}
	vm := irutil.NewMachine(u.Module, out)
	vm.Fuel = fuel
	ret, err := vm.Run(EntryPoint)
	return ret, errors.Wrap(err, "runtime error")
}
