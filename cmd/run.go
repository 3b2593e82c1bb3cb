package cmd

import (
	"fmt"

	"github.com/quill-lang/quill/irutil"
	"github.com/spf13/cobra"
)

var RunCmd = &cobra.Command{
	Use:          "run file.ql",
	Short:        "Compile a Quill program and run its main function",
	RunE:         runRun,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

var (
	runFlags *compileFlags
	runFuel  *int
	showExit *bool
)

func init() {
	runFlags = addCompileFlags(RunCmd)
	runFuel = RunCmd.Flags().Int("fuel", fuelFromEnv(), "instruction budget of the interpreter, 0 for the default")
	showExit = RunCmd.Flags().Bool("show-result", false, "print the value main returns")
}

func runRun(cmd *cobra.Command, args []string) error {
	stdout := cmd.OutOrStdout()
	unit, err := runFlags.compileFile(args[0], stdout)
	if err != nil {
		return err
	}
	ret, err := unit.Run(stdout, *runFuel)
	if err != nil {
		return fmt.Errorf("could not run %s: %w", args[0], err)
	}
	if *showExit {
		_, _ = fmt.Fprintf(stdout, "main returned %s\n", irutil.FormatDouble(ret))
	}
	return runFlags.afterCompile(unit, stdout)
}
