package app

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/codehint/internal/output"
	"github.com/blackwell-systems/codehint/internal/store"
)

var (
	historyFile  string
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent analysis runs",
	Long: `List the most recent analysis passes recorded in the SQLite database,
newest first: how many findings each pass produced, how many survived the
learning profile and how long it took.

Examples:
  codehint history
  codehint history --file src/Auth.java --limit 5`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyFile, "file", "", "Only show runs for this file")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

var errNoHistory = errors.New("history requires the sqlite storage backend")

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if e.db == nil {
		return errNoHistory
	}
	runs, err := e.db.RecentRuns(ctx, historyFile, historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		if runs == nil {
			runs = []store.AnalysisRun{}
		}
		return writeJSON(out, runs)
	}
	return renderHistory(out, runs)
}

func renderHistory(w io.Writer, runs []store.AnalysisRun) error {
	fmt.Fprintln(w, output.Section("Analysis history"))
	if len(runs) == 0 {
		fmt.Fprintln(w, " "+output.StyleMuted.Render("no runs recorded"))
		return nil
	}
	tbl := output.NewTable("WHEN", "FILE", "PROFILE", "FOUND", "KEPT", "HIGH", "TOOK")
	tbl.SetMaxWidth(1, 40)
	for _, r := range runs {
		high := strconv.Itoa(r.HighPriority)
		if r.HighPriority > 0 {
			high = output.StyleHigh.Render(high)
		}
		tbl.AddRow(
			r.AnalyzedAt.Local().Format("2006-01-02 15:04:05"),
			r.FilePath,
			r.Profile,
			strconv.Itoa(r.RawCount),
			strconv.Itoa(r.KeptCount),
			high,
			r.Duration.String(),
		)
	}
	return tbl.Fprint(w)
}
