package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/quill-lang/quill/backend"
	"github.com/spf13/cobra"
)

var BuildCmd = &cobra.Command{
	Use:          "build file.ql",
	Short:        "Compile a Quill program to LLVM IR",
	RunE:         runBuild,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

var (
	buildOutPath *string
	emitLLVM     *bool
	buildFlags   *compileFlags
)

func init() {
	buildOutPath = BuildCmd.Flags().StringP("out", "o", "", "output path, defaults to the input with a .ll extension")
	emitLLVM = BuildCmd.Flags().Bool("emit-llvm", false, "also print the generated LLVM IR")
	buildFlags = addCompileFlags(BuildCmd)
}

func defaultOutPath(target string) string {
	return strings.TrimSuffix(target, filepath.Ext(target)) + ".ll"
}

func runBuild(cmd *cobra.Command, args []string) error {
	stdout := cmd.OutOrStdout()
	unit, err := buildFlags.compileFile(args[0], stdout)
	if err != nil {
		return err
	}
	if err := buildFlags.afterCompile(unit, stdout); err != nil {
		return err
	}
	if *emitLLVM {
		_, _ = fmt.Fprintln(stdout, "\n=== Generated LLVM IR ===")
		if err := unit.WriteLLVM(stdout); err != nil {
			return fmt.Errorf("could not print IR: %w", err)
		}
	}

	out := *buildOutPath
	if out == "" {
		out = defaultOutPath(args[0])
	}
	if err := backend.WriteFile(out, unit.Module); err != nil {
		return fmt.Errorf("could not write output: %w", err)
	}
	if !*buildFlags.timing {
		_, _ = fmt.Fprintf(stdout, "Successfully compiled '%s' with -%s\nOutput written to: %s\n", args[0], unit.Level, out)
	}
	return nil
}
