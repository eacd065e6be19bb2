package app

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/codehint/internal/learning"
	"github.com/blackwell-systems/codehint/internal/output"
	"github.com/blackwell-systems/codehint/internal/suggest"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect and tune the learning profile",
	Long: `Show the learned type and priority weights of the active profile, or
adjust it by hand. Select a profile with --profile or the 'profile' key in
the config file.`,
	RunE: runProfileShow,
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show weights, threshold and feedback counters",
	Args:  cobra.NoArgs,
	RunE:  runProfileShow,
}

var profileResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore default weights and clear the feedback log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateProfile(cmd, "Profile reset", func(e *learning.Engine) error {
			e.Reset()
			return nil
		})
	},
}

var profileDisableCmd = &cobra.Command{
	Use:   "disable <type>",
	Short: "Stop reporting a suggestion type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := suggest.ParseType(args[0])
		if err != nil {
			return err
		}
		return updateProfile(cmd, "Disabled "+string(t), func(e *learning.Engine) error {
			return e.DisableType(t)
		})
	},
}

var profileEnableCmd = &cobra.Command{
	Use:   "enable <type>",
	Short: "Report a disabled suggestion type again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := suggest.ParseType(args[0])
		if err != nil {
			return err
		}
		return updateProfile(cmd, "Enabled "+string(t), func(e *learning.Engine) error {
			return e.EnableType(t)
		})
	},
}

var profileThresholdCmd = &cobra.Command{
	Use:   "threshold <value>",
	Short: "Set the confidence threshold (0 to 1)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid threshold %q", args[0])
		}
		return updateProfile(cmd, "Threshold updated", func(e *learning.Engine) error {
			return e.SetConfidenceThreshold(v)
		})
	},
}

func init() {
	profileCmd.AddCommand(profileShowCmd, profileResetCmd, profileDisableCmd, profileEnableCmd, profileThresholdCmd)
	rootCmd.AddCommand(profileCmd)
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	st := e.engine.Stats()
	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), st)
	}
	return renderProfile(cmd.OutOrStdout(), st)
}

// updateProfile applies change to the active profile, saves it and prints
// the resulting state.
func updateProfile(cmd *cobra.Command, done string, change func(*learning.Engine) error) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := change(e.engine); err != nil {
		return err
	}
	if err := e.save(ctx); err != nil {
		return err
	}

	st := e.engine.Stats()
	out := cmd.OutOrStdout()
	if flagJSON {
		return writeJSON(out, st)
	}
	fmt.Fprintln(out, output.StyleSuccess.Render(done))
	return renderProfile(out, st)
}

func renderProfile(w io.Writer, st learning.Stats) error {
	fmt.Fprintln(w, output.Section("Profile: "+st.Profile))
	fmt.Fprintln(w)
	fmt.Fprintf(w, " %s%s\n", output.StyleLabel.Render("Confidence threshold"), output.StyleValue.Render(fmt.Sprintf("%.2f", st.ConfidenceThreshold)))
	fmt.Fprintf(w, " %s%s\n", output.StyleLabel.Render("Suggestions judged"), output.StyleValue.Render(strconv.Itoa(st.TotalSuggestions)))
	fmt.Fprintf(w, " %s%s\n", output.StyleLabel.Render("Applied / dismissed"),
		output.StyleValue.Render(fmt.Sprintf("%d / %d", st.AppliedSuggestions, st.DismissedSuggestions)))
	fmt.Fprintf(w, " %s%s\n", output.StyleLabel.Render("Acceptance rate"), output.ScoreBar(st.AcceptanceRate*100, 20))

	disabled := make(map[suggest.SuggestionType]bool, len(st.DisabledTypes))
	for _, t := range st.DisabledTypes {
		disabled[t] = true
	}

	fmt.Fprintln(w, output.Section("Type weights"))
	types := output.NewTable("TYPE", "WEIGHT", "STATUS")
	for _, t := range suggest.AllTypes {
		status := output.StyleSuccess.Render("enabled")
		if disabled[t] {
			status = output.StyleMuted.Render("disabled")
		}
		types.AddRow(string(t), output.WeightBar(st.TypeWeights[t], learning.MaxTypeWeight, 20), status)
	}
	if err := types.Fprint(w); err != nil {
		return err
	}

	fmt.Fprintln(w, output.Section("Priority weights"))
	priorities := output.NewTable("PRIORITY", "WEIGHT")
	for _, p := range suggest.AllPriorities {
		priorities.AddRow(output.PriorityLabel(p), output.WeightBar(st.PriorityWeights[p.String()], learning.MaxPriorityWeight, 20))
	}
	return priorities.Fprint(w)
}
