// Package app contains the Cobra command tree for codehint.
package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var appVersion = "dev"

// SetVersion sets the application version (called from main with ldflags value).
func SetVersion(v string) {
	appVersion = v
	rootCmd.Version = v
}

var (
	flagNoColor bool
	flagJSON    bool
	flagVerbose bool
	flagConfig  string
	flagProfile string
)

var rootCmd = &cobra.Command{
	Use:   "codehint",
	Short: "Adaptive code suggestions that learn from your feedback",
	Long: `codehint scans source files for security issues, leftover markers,
magic numbers and structural smells, ranks what it finds by severity, and
adapts the ranking to the suggestions you apply or dismiss.

Run 'codehint' with no arguments to see the available commands.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "codehint", appVersion)
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Use a subcommand:")
		fmt.Fprintln(out, "  analyze   Analyze files and print ranked suggestions")
		fmt.Fprintln(out, "  feedback  Apply or dismiss a suggestion so the ranking adapts")
		fmt.Fprintln(out, "  profile   Inspect and tune the learning profile")
		fmt.Fprintln(out, "  history   List recent analysis runs")
		fmt.Fprintln(out, "  watch     Re-analyze files as they change and alert on new findings")
		fmt.Fprintln(out, "  mcp       Serve suggestions to an MCP client over stdio")
		return nil
	},
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: ~/.config/codehint/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagProfile, "profile", "", "Learning profile to use (overrides the config file)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging on stderr")
}
