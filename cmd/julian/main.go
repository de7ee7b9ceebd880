// Julian: a voice assistant that remembers what you tell it about yourself.
//
// Usage:
//
//	julian [--voice] [--wakeword] [--no-speech] [--no-ai] [--user NAME]
//	julian extract [--voice] <text>
//	julian profile show|reset
//	julian history show|clear
package main

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hammamikhairi/julian/internal/config"
	"github.com/hammamikhairi/julian/internal/logger"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:     "julian",
		Short:   "Voice assistant with a personal profile",
		Version: version,
		Long: `Julian listens for its wake phrase, talks to you through a chat model and
remembers personal facts and voice preferences you mention along the way.

Examples:
  julian --voice --wakeword
  julian --no-speech --user Sam
  julian extract "my name is Sam and I am 30 years old"
  julian extract --voice "speaking rate: 1.5"`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runAssistant(ctx, cfg)
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./julian.yaml)")
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newExtractCmd(&cfgFile),
		newProfileCmd(&cfgFile),
		newHistoryCmd(&cfgFile),
	)
	return root
}

// openLog builds the logger. Logs go to a file by default so the UI stays
// clean; Go's standard log package (used by the whisper transcriber) is
// redirected to the same place. The returned func closes the file.
func openLog(cfg *config.Config) (*logger.Logger, func()) {
	level := logger.LevelNormal
	switch {
	case cfg.Quiet:
		level = logger.LevelOff
	case cfg.Verbose:
		level = logger.LevelVerbose
	}

	var out io.Writer = os.Stderr
	closeFn := func() {}
	if cfg.LogFile != "" && cfg.LogFile != "stderr" {
		if dir := filepath.Dir(cfg.LogFile); dir != "" && dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", cfg.LogFile, err)
		} else {
			out = f
			closeFn = func() { f.Close() }
		}
	}

	stdlog.SetOutput(out)
	stdlog.SetFlags(stdlog.Ltime)

	return logger.New(level, out), closeFn
}

// quietLog is used by the one-shot subcommands.
func quietLog(cfg *config.Config) *logger.Logger {
	if cfg.Verbose {
		return logger.New(logger.LevelVerbose, os.Stderr)
	}
	return logger.New(logger.LevelOff, nil)
}

func historyPath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "history.json")
}
