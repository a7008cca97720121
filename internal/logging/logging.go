// Package logging configures the global zerolog logger.
//
// Stdout carries the KEY=VALUE report, so diagnostics always go to stderr.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EnvLevel names the environment variable that overrides the log level.
const EnvLevel = "VISION_LOG_LEVEL"

// Setup installs a console logger on stderr. The level comes from
// VISION_LOG_LEVEL (default warn) and is raised to debug for debugLevel >= 2.
func Setup(debugLevel int) {
	SetupWriter(os.Stderr, debugLevel)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, debugLevel int) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000", NoColor: true}).
		With().Timestamp().Logger()
	zerolog.SetGlobalLevel(Level(os.Getenv(EnvLevel), debugLevel))
}

// Level resolves the effective level from an env value and the debug level.
func Level(env string, debugLevel int) zerolog.Level {
	lvl := zerolog.WarnLevel
	if env = strings.TrimSpace(env); env != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(env)); err == nil && parsed != zerolog.NoLevel {
			lvl = parsed
		}
	}
	if debugLevel >= 2 && lvl > zerolog.DebugLevel {
		lvl = zerolog.DebugLevel
	}
	return lvl
}
