package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackwell-systems/codehint/internal/config"
	"github.com/blackwell-systems/codehint/internal/suggest"
	"github.com/blackwell-systems/codehint/internal/watcher"
)

var (
	watchDaemon      bool
	watchInterval    string
	watchStop        bool
	watchQuiet       bool
	watchNotify      bool
	watchMinPriority string
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]...",
	Short: "Re-analyze files as they change and alert on new findings",
	Long: `Watch one or more directory trees (default: the current directory) and
re-analyze source files as they are saved. A file is analyzed at most once
per debounce interval; saves inside the interval are coalesced into one
deferred pass. New findings at or above the alert priority are printed and,
with --notify, sent as desktop notifications.

Examples:
  codehint watch                          # watch . in the foreground (ctrl-c to stop)
  codehint watch src test --interval 2s   # two trees, shorter debounce
  codehint watch --notify --min-priority critical
  codehint watch --daemon                 # run in background, write PID file
  codehint watch --stop                   # stop the background daemon`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "Run in background mode (write PID file, log to file)")
	watchCmd.Flags().StringVar(&watchInterval, "interval", "", "Debounce interval as duration string (default: analysis.debounce, 5s)")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "Stop a running background daemon")
	watchCmd.Flags().BoolVar(&watchQuiet, "quiet", false, "Suppress terminal output, only send notifications")
	watchCmd.Flags().BoolVar(&watchNotify, "notify", false, "Send desktop notifications (default: alerts.notify)")
	watchCmd.Flags().StringVar(&watchMinPriority, "min-priority", "", "Lowest priority that raises an alert (default: alerts.min_priority)")
	rootCmd.AddCommand(watchCmd)
}

// pidFilePath returns the path to the daemon PID file.
func pidFilePath() string {
	return filepath.Join(config.ConfigDir(), "watch.pid")
}

// logFilePath returns the path to the daemon log file.
func logFilePath() string {
	return filepath.Join(config.ConfigDir(), "watch.log")
}

// watchOptions are the resolved watch settings.
type watchOptions struct {
	roots       []string
	interval    time.Duration
	minPriority suggest.Priority
	notify      bool
}

func resolveWatchOptions(cmd *cobra.Command, cfg *config.Config, args []string) (watchOptions, error) {
	opts := watchOptions{
		roots:    args,
		interval: cfg.Analysis.Debounce,
		notify:   cfg.Alerts.Notify,
	}
	if len(opts.roots) == 0 {
		opts.roots = []string{"."}
	}
	if watchInterval != "" {
		d, err := time.ParseDuration(watchInterval)
		if err != nil {
			return opts, fmt.Errorf("invalid interval %q: %w", watchInterval, err)
		}
		if d < 0 {
			return opts, fmt.Errorf("interval must not be negative, got %s", d)
		}
		opts.interval = d
	}
	if cmd.Flags().Changed("notify") {
		opts.notify = watchNotify
	}

	name := cfg.Alerts.MinPriority
	if watchMinPriority != "" {
		name = watchMinPriority
	}
	p, err := suggest.ParsePriority(name)
	if err != nil {
		return opts, err
	}
	opts.minPriority = p
	return opts, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchStop {
		return stopDaemon(cmd.OutOrStdout())
	}
	if watchDaemon {
		return runDaemon(cmd, args)
	}
	return runForeground(cmd, args)
}

// runForeground runs the watcher with live terminal output.
func runForeground(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	var notifier *watcher.Notifier

	alertFn := func(a watcher.Alert) {
		if notifier != nil {
			_ = notifier.Notify(a)
		}
		if !watchQuiet {
			printAlert(out, a)
		}
	}

	return watchLoop(cmd, args, alertFn, func(opts watchOptions) {
		if opts.notify {
			notifier = watcher.NewNotifier()
		}
		if !watchQuiet {
			fmt.Fprintf(out, "codehint watching %s (debounce %s, alerts at %s and above)\n",
				strings.Join(opts.roots, ", "), opts.interval, opts.minPriority)
		}
	}, func(analyzed int) {
		if !watchQuiet {
			fmt.Fprintf(out, "\nStopped after %d analyses.\n", analyzed)
		}
	})
}

// runDaemon sets up PID and log files, then runs the watcher. The actual
// backgrounding should be done by the caller (nohup, &, etc.) since Go
// cannot reliably fork.
func runDaemon(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	if pid, err := readPID(); err == nil {
		if processExists(pid) {
			return fmt.Errorf("daemon already running (PID %d). Use --stop to stop it", pid)
		}
		_ = os.Remove(pidFilePath())
	}

	pid := os.Getpid()
	if err := os.WriteFile(pidFilePath(), []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer func() { _ = os.Remove(pidFilePath()) }()

	logFile, err := os.OpenFile(logFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	// Structured logs go to the same file as the alert lines.
	cmd.SetErr(logFile)

	var notifier *watcher.Notifier
	alertFn := func(a watcher.Alert) {
		if notifier != nil {
			_ = notifier.Notify(a)
		}
		writeLog(logFile, "[%s] %s: %s", a.Level, a.Title, a.Message)
	}

	return watchLoop(cmd, args, alertFn, func(opts watchOptions) {
		if opts.notify {
			notifier = watcher.NewNotifier()
			notifier.Out = logFile
		}
		writeLog(logFile, "codehint daemon started (PID %d, watching %s, debounce %s)",
			pid, strings.Join(opts.roots, ", "), opts.interval)
	}, func(analyzed int) {
		writeLog(logFile, "daemon stopped after %d analyses", analyzed)
	})
}

// watchLoop builds the service stack and the scheduler and runs until a
// shutdown signal arrives.
func watchLoop(cmd *cobra.Command, args []string, alertFn func(watcher.Alert), started func(watchOptions), stopped func(analyzed int)) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), shutdownSignals...)
	defer cancel()

	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	opts, err := resolveWatchOptions(cmd, e.cfg, args)
	if err != nil {
		return err
	}
	e.serveMetrics(ctx)

	alerter := watcher.NewAlerter(alertFn, opts.minPriority)
	removeListener := e.svc.AddListener(alerter)
	defer removeListener()

	sched := watcher.New(e.svc,
		watcher.WithInterval(opts.interval),
		watcher.WithWorkers(e.cfg.Analysis.Workers),
		watcher.WithExtensions(e.cfg.Analysis.Extensions),
		watcher.WithLogger(e.logger.Named("watcher")),
		watcher.WithOnRemove(func(path string) {
			e.svc.Clear(path)
			alerter.Forget(path)
		}),
	)

	started(opts)
	err = sched.Run(ctx, opts.roots...)
	if errors.Is(err, context.Canceled) {
		e.logger.Debug("watch stopped", zap.Int("analyzed", sched.Analyzed()))
		stopped(sched.Analyzed())
		return nil
	}
	return err
}

// readPID reads the daemon PID from the PID file.
func readPID() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// writeLog writes a timestamped line to the log file.
func writeLog(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	_, _ = fmt.Fprintf(w, "[%s] %s\n", timestamp, msg)
}

// printAlert formats and prints an alert to the terminal.
func printAlert(w io.Writer, a watcher.Alert) {
	timestamp := a.Time.Format("15:04:05")
	fmt.Fprintf(w, "[%s] %s %s\n", timestamp, alertIcon(a.Level), a.Title)
	if a.Message != "" {
		fmt.Fprintf(w, "           %s\n", a.Message)
	}
}

// alertIcon returns the terminal indicator for an alert level.
func alertIcon(level string) string {
	switch level {
	case "critical":
		return "\xf0\x9f\x94\xb4" // red circle
	case "warning":
		return "\xe2\x9a\xa0\xef\xb8\x8f" // warning sign
	case "info":
		return "\xe2\x9c\x93" // check mark
	default:
		return " "
	}
}
