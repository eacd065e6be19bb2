package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/codehint/internal/output"
	"github.com/blackwell-systems/codehint/internal/service"
	"github.com/blackwell-systems/codehint/internal/suggest"
)

var (
	feedbackApplied bool
	feedbackDismiss bool
	feedbackReason  string
	feedbackRef     string
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback <file> <n>",
	Short: "Apply or dismiss a suggestion so the ranking adapts",
	Long: `Re-analyze a file and record feedback on its n-th suggestion, using the
# column printed by 'codehint analyze'. Applying raises the weight of the
suggestion's type and priority; dismissing lowers it and raises the
confidence threshold.

Examples:
  codehint feedback src/Auth.java 1 --applied
  codehint feedback src/Auth.java 3 --dismiss --reason "false positive"
  codehint feedback main.go 2 --applied --ref PR-481`,
	Args: cobra.ExactArgs(2),
	RunE: runFeedback,
}

func init() {
	feedbackCmd.Flags().BoolVar(&feedbackApplied, "applied", false, "The suggestion was applied")
	feedbackCmd.Flags().BoolVar(&feedbackDismiss, "dismiss", false, "The suggestion was not useful")
	feedbackCmd.Flags().StringVar(&feedbackReason, "reason", "", "Free-form reason stored with the feedback")
	feedbackCmd.Flags().StringVar(&feedbackRef, "ref", "", "Reference to the change the suggestion became (applied only)")
	feedbackCmd.MarkFlagsMutuallyExclusive("applied", "dismiss")
	feedbackCmd.MarkFlagsOneRequired("applied", "dismiss")
	rootCmd.AddCommand(feedbackCmd)
}

// pickSuggestion returns the n-th (1-based) suggestion of list.
func pickSuggestion(list []suggest.Suggestion, arg string) (suggest.Suggestion, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return suggest.Suggestion{}, fmt.Errorf("invalid suggestion number %q", arg)
	}
	if n < 1 || n > len(list) {
		return suggest.Suggestion{}, fmt.Errorf("suggestion %d out of range (file has %d)", n, len(list))
	}
	return list[n-1], nil
}

// judgeSuggestion records applied or dismissed feedback for s.
func judgeSuggestion(svc *service.Service, s suggest.Suggestion, applied bool, reason, ref string) error {
	if applied && ref != "" {
		if reason == "" {
			reason = "applied"
		}
		return svc.MarkApplied(s.ID, ref, reason)
	}
	if ref != "" {
		return errors.New("--ref only applies to applied suggestions")
	}
	return svc.RecordFeedback(s.ID, applied, reason)
}

func runFeedback(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	ctx := cmd.Context()
	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	list := e.svc.Analyze(ctx, path, string(data))
	s, err := pickSuggestion(list, args[1])
	if err != nil {
		return err
	}

	before := e.engine.Stats()
	if err := judgeSuggestion(e.svc, s, feedbackApplied, feedbackReason, feedbackRef); err != nil {
		return err
	}
	if err := e.save(ctx); err != nil {
		return err
	}
	after := e.engine.Stats()

	out := cmd.OutOrStdout()
	if flagJSON {
		return writeJSON(out, map[string]any{
			"suggestion": s,
			"applied":    feedbackApplied,
			"profile":    after,
		})
	}

	verb := "Dismissed"
	if feedbackApplied {
		verb = "Applied"
	}
	fmt.Fprintf(out, "%s %s %s\n", output.StyleSuccess.Render(verb), s.RuleID, output.StyleMuted.Render(path+":"+output.LineRange(s)))
	fmt.Fprintf(out, "  %s weight %.2f %s\n", s.Type, after.TypeWeights[s.Type],
		output.TrendArrow(after.TypeWeights[s.Type]-before.TypeWeights[s.Type], true))
	fmt.Fprintf(out, "  confidence threshold %.2f %s\n", after.ConfidenceThreshold,
		output.TrendArrow(after.ConfidenceThreshold-before.ConfidenceThreshold, false))
	return nil
}
