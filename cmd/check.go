package cmd

import (
	"fmt"
	"go/token"
	"os"

	"github.com/quill-lang/quill/frontend/check"
	"github.com/quill-lang/quill/parser"
	"github.com/spf13/cobra"
)

var CheckCmd = &cobra.Command{
	Use:          "check file.ql",
	Short:        "Type check a Quill program and print the inferred signatures",
	RunE:         runCheck,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

var checkFlags *compileFlags

func init() {
	checkFlags = addCompileFlags(CheckCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	checkFlags.setupLogging()
	src, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("could not read %s: %w", args[0], err)
	}
	fset := token.NewFileSet()
	prog, errs := parser.ParseToAST(fset, args[0], src)
	if errs.HasError() {
		return fmt.Errorf("syntax errors:\n%s", formatErrors(errs, fset))
	}
	res := check.NewChecker().CheckProgram(prog)

	stdout := cmd.OutOrStdout()
	_, _ = fmt.Fprint(stdout, res.Summary())
	for _, w := range res.Warnings {
		_, _ = fmt.Fprintf(stdout, "Warning: %v\n", w)
	}
	if res.HasErrors() {
		return fmt.Errorf("type errors:\n%s", formatErrors(res.Errors, fset))
	}
	return nil
}
