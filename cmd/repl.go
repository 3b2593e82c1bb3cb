package cmd

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/quill-lang/quill/frontend/ast"
	"github.com/quill-lang/quill/irutil"
	"github.com/quill-lang/quill/optimize"
	"github.com/quill-lang/quill/quill"
	"github.com/spf13/cobra"
)

var ReplCmd = &cobra.Command{
	Use:          "repl",
	Short:        "Start an interactive Quill session",
	RunE:         runRepl,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
}

var replFlags *compileFlags

func init() {
	replFlags = addCompileFlags(ReplCmd)
}

const (
	promptMain = "quill> "
	promptCont = "  ...> "
)

var assignment = regexp.MustCompile(`^([\p{L}_][\p{L}\p{N}_]*)\s*=[^=]`)

type binding struct {
	name  string
	value float64
}

// session accumulates the definitions entered so far and the values of assigned variables.
// Every input is compiled as a fresh program whose main first rebinds those variables.
type session struct {
	defs     []string
	bindings []binding
	settings quill.Settings
	showIR   bool
	out      io.Writer
}

// literal renders v as a Quill expression
func literal(v float64) string {
	switch {
	case math.IsNaN(v):
		return "(0 / 0)"
	case math.IsInf(v, 1):
		return "(1 / 0)"
	case math.IsInf(v, -1):
		return "(-1 / 0)"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (s *session) source(input string, result string) string {
	sb := &strings.Builder{}
	for _, def := range s.defs {
		sb.WriteString(def)
		sb.WriteString("\n\n")
	}
	if strings.HasPrefix(input, "def ") {
		sb.WriteString(input)
		sb.WriteString("\n")
		return sb.String()
	}
	sb.WriteString("def main():\n")
	for _, b := range s.bindings {
		fmt.Fprintf(sb, "    %s = %s\n", b.name, literal(b.value))
	}
	for _, l := range strings.Split(input, "\n") {
		sb.WriteString("    ")
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	if result != "" {
		fmt.Fprintf(sb, "    %s\n", result)
	}
	return sb.String()
}

func (s *session) bind(name string, value float64) {
	for i := range s.bindings {
		if s.bindings[i].name == name {
			s.bindings[i].value = value
			return
		}
	}
	s.bindings = append(s.bindings, binding{name: name, value: value})
}

// eval compiles and runs input, keeping its definitions and assignments when it succeeds
func (s *session) eval(input string) error {
	var assigned string
	if m := assignment.FindStringSubmatch(input); m != nil && !strings.Contains(input, "\n") {
		assigned = m[1]
	}
	unit, err := quill.NewUnitFromBytes([]byte(s.source(input, assigned)), "<repl>", s.settings)
	if err != nil {
		return err
	}
	if unit.Errors().HasError() {
		return errors.New(unit.FormatErrors())
	}
	if strings.HasPrefix(input, "def ") {
		s.defs = append(s.defs, input)
		return nil
	}
	if s.showIR {
		if err := unit.WriteLLVM(s.out); err != nil {
			return err
		}
	}
	ret, err := unit.Run(s.out, fuelFromEnv())
	if err != nil {
		return err
	}
	if assigned != "" {
		s.bind(assigned, ret)
		return nil
	}
	main := unit.Program.Function(quill.EntryPoint)
	if body, ok := main.Body.(*ast.Block); ok && len(body.Stmts) > 0 {
		if _, isExpr := body.Stmts[len(body.Stmts)-1].(*ast.ExprStmt); isExpr {
			_, _ = fmt.Fprintln(s.out, irutil.FormatDouble(ret))
		}
	}
	return nil
}

func (s *session) command(line string) (quit bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":q":
		return true
	case ":reset":
		s.defs, s.bindings = nil, nil
	case ":defs":
		for _, def := range s.defs {
			_, _ = fmt.Fprintln(s.out, def)
		}
		for _, b := range s.bindings {
			_, _ = fmt.Fprintf(s.out, "%s = %s\n", b.name, irutil.FormatDouble(b.value))
		}
	case ":ir":
		s.showIR = !s.showIR
		_, _ = fmt.Fprintf(s.out, "show IR: %v\n", s.showIR)
	case ":opt":
		if len(fields) < 2 {
			_, _ = fmt.Fprintf(s.out, "optimization level: %v\n", s.settings.Level)
			break
		}
		level, err := optimize.ParseLevel(fields[1])
		if err != nil {
			_, _ = fmt.Fprintln(s.out, err)
			break
		}
		s.settings.Level = level
	default:
		_, _ = fmt.Fprintln(s.out, "unknown command. Commands: :quit :reset :defs :ir :opt [0-3]")
	}
	return false
}

// readInput reads one line, or a whole indented block when the line opens one
func readInput(ln *liner.State) (string, bool) {
	line, err := ln.Prompt(promptMain)
	if errors.Is(err, io.EOF) {
		return "", false
	}
	if err != nil {
		return "", true
	}
	if !strings.HasSuffix(strings.TrimSpace(line), ":") {
		return line, true
	}
	b := &strings.Builder{}
	b.WriteString(line)
	for {
		more, err := ln.Prompt(promptCont)
		if err != nil || strings.TrimSpace(more) == "" {
			return b.String(), true
		}
		b.WriteByte('\n')
		b.WriteString(more)
	}
}

func runRepl(cmd *cobra.Command, _ []string) error {
	replFlags.setupLogging()
	settings, err := replFlags.settings()
	if err != nil {
		return err
	}
	s := &session{settings: settings, out: cmd.OutOrStdout()}

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	histPath := historyPath()
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	_, _ = fmt.Fprintln(s.out, "quill repl: :quit to exit")
	for {
		input, ok := readInput(ln)
		if !ok {
			_, _ = fmt.Fprintln(s.out)
			return nil
		}
		trimmed := strings.TrimSpace(input)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(input, "\n", " "))
		if strings.HasPrefix(trimmed, ":") {
			if s.command(trimmed) {
				return nil
			}
			continue
		}
		if err := s.eval(input); err != nil {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), err)
		}
	}
}
