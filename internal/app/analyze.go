package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/codehint/internal/output"
	"github.com/blackwell-systems/codehint/internal/service"
	"github.com/blackwell-systems/codehint/internal/suggest"
)

var (
	analyzeType         string
	analyzeHighPriority bool
	analyzeLine         int
	analyzeLimit        int
	analyzeDetail       bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>...",
	Short: "Analyze files and print ranked suggestions",
	Long: `Analyze one or more source files and print the suggestions that pass
the active learning profile, most severe first. Lines are 1-based; the #
column is the index to pass to 'codehint feedback'.

Examples:
  codehint analyze src/Auth.java
  codehint analyze --type security --detail *.py
  codehint analyze --high-priority --json main.go`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeType, "type", "", "Only show one suggestion type (e.g. SECURITY, TODO)")
	analyzeCmd.Flags().BoolVar(&analyzeHighPriority, "high-priority", false, "Only show HIGH and CRITICAL suggestions")
	analyzeCmd.Flags().IntVar(&analyzeLine, "line", 0, "Only show suggestions covering this 1-based line")
	analyzeCmd.Flags().IntVar(&analyzeLimit, "limit", 0, "Maximum suggestions per file (0 = all)")
	analyzeCmd.Flags().BoolVar(&analyzeDetail, "detail", false, "Print descriptions and reasons instead of a table")
	rootCmd.AddCommand(analyzeCmd)
}

// fileResult is the analysis of one file as printed by analyze.
type fileResult struct {
	File        string               `json:"file"`
	Suggestions []suggest.Suggestion `json:"suggestions"`
}

// suggestionFilter narrows an analysis result for display.
type suggestionFilter struct {
	Type         suggest.SuggestionType
	HighPriority bool
	Line         int // 1-based; 0 means every line
	Limit        int
}

func (f suggestionFilter) apply(list []suggest.Suggestion) []suggest.Suggestion {
	out := make([]suggest.Suggestion, 0, len(list))
	for _, s := range list {
		if f.Type != "" && s.Type != f.Type {
			continue
		}
		if f.HighPriority && s.Priority < suggest.PriorityHigh {
			continue
		}
		if f.Line > 0 && !s.CoversLine(f.Line-1) {
			continue
		}
		out = append(out, s)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	filter := suggestionFilter{
		HighPriority: analyzeHighPriority,
		Line:         analyzeLine,
		Limit:        analyzeLimit,
	}
	if analyzeType != "" {
		t, err := suggest.ParseType(analyzeType)
		if err != nil {
			return err
		}
		filter.Type = t
	}

	ctx := cmd.Context()
	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	results, err := analyzeFiles(ctx, e.svc, args, e.cfg.Analysis.Workers)
	if err != nil {
		return err
	}
	for i := range results {
		results[i].Suggestions = filter.apply(results[i].Suggestions)
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		return writeJSON(out, results)
	}
	return renderResults(out, results, e.cfg.Output.Width, analyzeDetail)
}

// analyzeFiles reads and analyzes paths concurrently, at most workers at a
// time. Results keep the order of paths.
func analyzeFiles(ctx context.Context, svc *service.Service, paths []string, workers int) ([]fileResult, error) {
	results := make([]fileResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, path := range paths {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			results[i] = fileResult{File: path, Suggestions: svc.Analyze(gctx, path, string(data))}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func renderResults(w io.Writer, results []fileResult, width int, detail bool) error {
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if !detail {
			if err := output.WriteSuggestions(w, r.File, r.Suggestions, width); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintln(w, output.Section(fmt.Sprintf("%s (%d)", r.File, len(r.Suggestions))))
		for n, s := range r.Suggestions {
			fmt.Fprintf(w, "%2d. ", n+1)
			if err := output.WriteDetail(w, s); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
