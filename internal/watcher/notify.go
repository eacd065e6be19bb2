package watcher

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
)

// Notifier delivers alerts as desktop notifications: osascript on macOS,
// notify-send on Linux, and a plain line on Out everywhere else or when the
// native command fails.
type Notifier struct {
	GOOS string
	Out  io.Writer

	// run executes a command; lookPath finds one. Both are replaceable in
	// tests.
	run      func(name string, args ...string) error
	lookPath func(file string) (string, error)
}

// NewNotifier returns a notifier for the current platform writing its
// fallback output to stderr.
func NewNotifier() *Notifier {
	return &Notifier{
		GOOS: runtime.GOOS,
		Out:  os.Stderr,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
		lookPath: exec.LookPath,
	}
}

// Notify sends one alert.
func (n *Notifier) Notify(alert Alert) error {
	switch n.GOOS {
	case "darwin":
		script := fmt.Sprintf(`display notification %q with title "codehint" subtitle %q`, alert.Message, alert.Title)
		if err := n.run("osascript", "-e", script); err == nil {
			return nil
		}
	case "linux":
		if _, err := n.lookPath("notify-send"); err == nil {
			urgency := "normal"
			if alert.Level == "critical" {
				urgency = "critical"
			}
			if err := n.run("notify-send", "-u", urgency, "codehint: "+alert.Title, alert.Message); err == nil {
				return nil
			}
		}
	}
	return n.fallback(alert)
}

func (n *Notifier) fallback(alert Alert) error {
	out := n.Out
	if out == nil {
		out = os.Stderr
	}
	_, err := fmt.Fprintf(out, "[%s] %s: %s\n", alert.Level, alert.Title, alert.Message)
	return err
}
