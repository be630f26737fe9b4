package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init initializes the global logger. LOG_LEVEL controls the level: debug,
// info, warn, error (default: info). Inside Lambda the output is JSON on
// stdout tagged with the service name; elsewhere it is human-readable on
// stderr.
func Init(service string) {
	SetLevel(os.Getenv("LOG_LEVEL"))
	log.Logger = newLogger(service, os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "", os.Stdout, os.Stderr)
	zerolog.DefaultContextLogger = &log.Logger
}

// SetLevel sets the global level. Unknown values fall back to info.
func SetLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func newLogger(service string, inLambda bool, stdout, stderr io.Writer) zerolog.Logger {
	if !inLambda {
		return zerolog.New(zerolog.ConsoleWriter{Out: stderr}).With().Timestamp().Logger()
	}
	ctx := zerolog.New(stdout).With().Timestamp().Str("service", service)
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		ctx = ctx.Str("env", env)
	}
	return ctx.Logger()
}
