package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "hitfetch",
	Short: "Send HTTP calls. Every result is an envelope.",
	Long: `hitfetch sends HTTP calls and reports each one as an envelope: the
parsed body, the status and headers, and a problem code that says what went
wrong when something did. Nothing is thrown; failures are data.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	os.Exit(run(os.Args[1:]))
}

// run executes the root command and maps the outcome to an exit code.
func run(args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", exitErr.Err)
		}
		return exitErr.Code
	}
	fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	return ExitUsageError
}

func init() {
	bindGlobalFlags(rootCmd)

	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}
