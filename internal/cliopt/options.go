package cliopt

import (
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// GlobalOptions are bound once on the root command and shared by
// subcommands.
//
// NOTE: This is a separate package to avoid import cycles between the root
// command and per-command code.
type GlobalOptions struct {
	Config    string
	LogLevel  string
	LogFormat string
	Format    string
}

func DefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{
		LogLevel:  "warn",
		LogFormat: "console",
		Format:    "pretty",
	}
}

func BindGlobalFlags(fs *pflag.FlagSet, g *GlobalOptions) {
	fs.StringVar(&g.Config, "config", g.Config, "config file (yaml or json); PIPEQ_* env vars override it")
	fs.StringVar(&g.LogLevel, "log-level", g.LogLevel, "log level: debug|info|warn|error")
	fs.StringVar(&g.LogFormat, "log-format", g.LogFormat, "log format: json|console")
	fs.StringVar(&g.Format, "format", g.Format, "output format: pretty|json")
}

// State is what PersistentPreRunE builds for subcommands.
type State struct {
	Options GlobalOptions
	Logger  *zap.Logger
}

// Log returns the logger, or a no-op logger before PersistentPreRunE ran.
func (s *State) Log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
