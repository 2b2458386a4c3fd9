package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/revbot/internal/config"
	"github.com/dshills/revbot/internal/providers"
)

const version = "0.1.0"

// Exit codes.
const (
	ExitSuccess      = 0
	ExitRuntimeError = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
)

// Global flags
var (
	flagConfigPath string
	flagVerbose    bool
	flagLogFormat  string
	flagLogLevel   string
)

// logger is built in PersistentPreRunE and shared by all commands.
var (
	logger   = zap.NewNop()
	logLevel = zap.NewAtomicLevel()
)

var rootCmd = &cobra.Command{
	Use:   "revbot",
	Short: "LLM pull request reviewer",
	Long: "revbot reviews a pull request diff with a language model, turns the result into " +
		"a review payload, and keeps a single up-to-date review comment on the pull request.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, level, err := newLogger(loggerOptions{
			Level:   flagLogLevel,
			Format:  flagLogFormat,
			Verbose: flagVerbose,
		})
		if err != nil {
			return usageErr(err)
		}
		logger = l.With(zap.String("command", cmd.Name()))
		logLevel = level
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// exitError carries the exit code for an error returned by a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func runtimeErr(err error) error { return &exitError{code: ExitRuntimeError, err: err} }
func usageErr(err error) error   { return &exitError{code: ExitUsageError, err: err} }
func configErr(err error) error  { return &exitError{code: ExitConfigError, err: err} }

// exitCodeFor maps an error from the command tree to a process exit code.
// Errors not raised by a command handler come from cobra's flag and
// argument parsing and count as usage errors.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if errors.Is(err, config.ErrMissingCredential) || providers.IsAuthError(err) {
		return ExitConfigError
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitUsageError
}

// Run executes the root command with ctx and returns an exit code.
func Run(ctx context.Context, args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return exitCodeFor(err)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print revbot version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "revbot version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Config file path (default: $XDG_CONFIG_HOME/revbot/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log encoding: json or console (default: console on a terminal, json otherwise)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (default: from config)")

	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(payloadCmd)
	rootCmd.AddCommand(outputsCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(versionCmd)
}
