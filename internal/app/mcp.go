package app

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/codehint/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve suggestions to an MCP client over stdio",
	Long: `Start a Model Context Protocol stdio server that an editor or agent can
query while code is being written. The server exposes these tools:

  analyze_file     Analyze a file and return its ranked suggestions
  get_suggestions  Cached suggestions filtered by line, type or priority
  record_feedback  Apply or dismiss a suggestion; the ranking adapts
  get_profile      Learned weights and counters of the active profile
  get_history      Recent analysis runs (sqlite backend only)

Add to an MCP client configuration:
  {"mcpServers":{"codehint":{"command":"codehint","args":["mcp"]}}}`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	e.serveMetrics(ctx)

	opts := []mcp.Option{
		mcp.WithVersion(appVersion),
		mcp.WithLogger(e.logger.Named("mcp")),
	}
	// A nil *store.DB must not become a non-nil RunHistory.
	if e.db != nil {
		opts = append(opts, mcp.WithHistory(e.db))
	}
	srv := mcp.NewServer(e.svc, opts...)
	return srv.Run(ctx, os.Stdin, os.Stdout)
}
