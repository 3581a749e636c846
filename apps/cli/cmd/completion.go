package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for hitfetch.

Bash:
  $ source <(hitfetch completion bash)

Zsh:
  $ hitfetch completion zsh > "${fpath[1]}/_hitfetch"

Fish:
  $ hitfetch completion fish > ~/.config/fish/completions/hitfetch.fish

PowerShell:
  PS> hitfetch completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(out)
		case "zsh":
			return cmd.Root().GenZshCompletion(out)
		case "fish":
			return cmd.Root().GenFishCompletion(out, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

var completionMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS", "LINK", "UNLINK"}

// completeMethod offers HTTP methods for the first positional argument.
func completeMethod(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var out []string
	for _, m := range completionMethods {
		if strings.HasPrefix(m, strings.ToUpper(toComplete)) {
			out = append(out, m)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	requestCmd.ValidArgsFunction = completeMethod
	watchCmd.ValidArgsFunction = completeMethod
	benchCmd.ValidArgsFunction = completeMethod
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"console", "json"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("notify-on", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"always", "failure", "success", "recovery"}, cobra.ShellCompDirectiveNoFileComp
	})
	rootCmd.AddCommand(completionCmd)
}
