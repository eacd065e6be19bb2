package output

import (
	"fmt"
	"strings"
)

// ScoreBar renders a visual progress bar for a 0-100 score.
// Example: "████████░░ 80/100"
func ScoreBar(score float64, width int) string {
	if width <= 0 {
		width = 20
	}
	filled := clampInt(int((score/100.0)*float64(width)), 0, width)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	style := StyleError
	switch {
	case score >= 70:
		style = StyleSuccess
	case score >= 40:
		style = StyleWarning
	}
	return fmt.Sprintf("%s %s", style.Render(bar), StyleMuted.Render(fmt.Sprintf("%.0f/100", score)))
}

// WeightBar renders a learned weight on a bar spanning [0, upper], with the
// neutral weight 1.0 as the reference point for the color.
// Example: "██████░░░░ 1.20"
func WeightBar(weight, upper float64, width int) string {
	if width <= 0 {
		width = 10
	}
	if upper <= 0 {
		upper = 1
	}
	filled := clampInt(int(weight/upper*float64(width)+0.5), 0, width)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	style := StyleMuted
	switch {
	case weight > 1.0:
		style = StyleSuccess
	case weight < 1.0:
		style = StyleError
	}
	return fmt.Sprintf("%s %.2f", style.Render(bar), weight)
}

// TrendArrow returns a styled trend indicator for a delta value.
// Positive delta shows an up arrow, negative shows down, zero shows a dash.
// higherIsBetter decides which direction is colored as an improvement.
func TrendArrow(delta float64, higherIsBetter bool) string {
	if delta > -0.005 && delta < 0.005 {
		return StyleMuted.Render("─")
	}

	isPositive := delta > 0
	isImproved := isPositive == higherIsBetter

	arrow := fmt.Sprintf("▼ %.2f", delta)
	if isPositive {
		arrow = fmt.Sprintf("▲ +%.2f", delta)
	}

	if isImproved {
		return StyleSuccess.Render(arrow)
	}
	return StyleError.Render(arrow)
}

// Section prints a styled section header with a horizontal rule.
func Section(title string) string {
	header := StyleHeader.Render(title)
	rule := StyleMuted.Render(strings.Repeat("─", 66))
	return fmt.Sprintf("\n %s\n %s", header, rule)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
