package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/quill-lang/quill/internal/log"
	"github.com/quill-lang/quill/optimize"
	"github.com/quill-lang/quill/quill"
	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"
)

// compileFlags are shared by every subcommand that compiles a file.
// Defaults come from the environment so that flags override QUILL_* variables.
type compileFlags struct {
	level       *string
	report      *bool
	timing      *bool
	noTypecheck *bool
	typeErrors  *bool
	logLevel    *int
	logSections *string
}

func addCompileFlags(cmd *cobra.Command) *compileFlags {
	f := cmd.Flags()
	return &compileFlags{
		level:       f.StringP("opt", "O", env.Str("QUILL_OPT_LEVEL", "0"), "optimization level, 0 to 3"),
		report:      f.Bool("opt-report", false, "print the optimization report"),
		timing:      f.Bool("timing", false, "print the time spent in each phase"),
		noTypecheck: f.Bool("no-typecheck", false, "skip type checking"),
		typeErrors:  f.Bool("type-errors", false, "print type errors but keep compiling"),
		logLevel:    f.IntP("log-level", "l", env.Int("QUILL_LOG_LEVEL", int(slog.LevelError)), "log level"),
		logSections: f.String("log-sections", env.Str("QUILL_LOG_SECTIONS", "check,optimize"), "comma-separated log sections to show below warning level"),
	}
}

// setupLogging applies the log flags to the shared logger
func (c *compileFlags) setupLogging() {
	log.SetLevel(slog.Level(*c.logLevel))
	log.EnableSections(strings.Split(*c.logSections, ",")...)
}

func (c *compileFlags) settings() (quill.Settings, error) {
	level, err := optimize.ParseLevel(*c.level)
	if err != nil {
		return quill.Settings{}, err
	}
	return quill.Settings{
		Level:         level,
		SkipTypeCheck: *c.noTypecheck,
		KeepGoing:     *c.typeErrors,
	}, nil
}

func fuelFromEnv() int {
	return env.Int("QUILL_FUEL", 0)
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return env.Str("QUILL_HISTORY", filepath.Join(home, ".quill_history"))
}

// compileFile loads target and reports diagnostics. A unit with errors is only returned
// when type errors were asked to be printed and compilation went on regardless.
func (c *compileFlags) compileFile(target string, stdout io.Writer) (*quill.Unit, error) {
	c.setupLogging()
	settings, err := c.settings()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute path of target: %w", err)
	}
	unit, err := quill.LoadFile(os.DirFS(filepath.Dir(abs)), filepath.Base(abs), settings)
	if err != nil {
		return nil, fmt.Errorf("could not compile %s (this is a bug and not a compile error): %w", target, err)
	}
	if unit.Errors().HasError() {
		if unit.Module == nil {
			return nil, fmt.Errorf("errors found during compilation:\n%s", unit.FormatErrors())
		}
		_, _ = fmt.Fprintf(stdout, "Type Checking Results:\n%s\n", unit.FormatErrors())
	}
	if *c.typeErrors {
		for _, w := range unit.Warnings() {
			_, _ = fmt.Fprintf(stdout, "Warning: %v\n", w)
		}
		if !unit.Errors().HasError() && unit.Check != nil {
			_, _ = fmt.Fprintln(stdout, "Type checking passed successfully")
		}
	}
	return unit, nil
}

// afterCompile prints the reports the flags asked for
func (c *compileFlags) afterCompile(unit *quill.Unit, stdout io.Writer) error {
	if *c.report {
		if err := unit.Stats.WriteReport(stdout, unit.Level); err != nil {
			return err
		}
	}
	if *c.timing {
		_, _ = fmt.Fprintln(stdout, "=== Quill Compiler Performance Analysis ===")
		var total float64
		for _, timing := range unit.Timings {
			ms := float64(timing.Duration.Microseconds()) / 1000
			total += ms
			_, _ = fmt.Fprintf(stdout, "%s: %.3f ms\n", timing.Phase, ms)
		}
		_, _ = fmt.Fprintf(stdout, "Total Compilation: %.3f ms\n", total)
	}
	return nil
}
