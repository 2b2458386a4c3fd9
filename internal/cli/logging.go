package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

type loggerOptions struct {
	Level   string
	Format  string
	Verbose bool
	// TTY forces terminal detection; nil means inspect stderr.
	TTY *bool
}

// newLogger builds the process logger. Logs always go to stderr so stdout
// carries only command output. Every logger gets a fresh run_id.
// The returned level can be raised or lowered after the config is loaded.
func newLogger(opts loggerOptions) (*zap.Logger, zap.AtomicLevel, error) {
	tty := term.IsTerminal(int(os.Stderr.Fd()))
	if opts.TTY != nil {
		tty = *opts.TTY
	}

	format := strings.ToLower(opts.Format)
	if format == "" {
		format = "json"
		if tty {
			format = "console"
		}
	}

	var cfg zap.Config
	switch format {
	case "json":
		cfg = zap.NewProductionConfig()
	case "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
		if tty {
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	default:
		return nil, zap.AtomicLevel{}, fmt.Errorf("invalid --log-format %q (want json or console)", opts.Format)
	}

	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.Set(opts.Level); err != nil {
			return nil, zap.AtomicLevel{}, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}
	atom := zap.NewAtomicLevelAt(level)
	cfg.Level = atom
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	l, err := cfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return l.With(zap.String("run_id", uuid.NewString())), atom, nil
}
