package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		env   string
		debug int
		want  zerolog.Level
	}{
		{"", 0, zerolog.WarnLevel},
		{"", 1, zerolog.WarnLevel},
		{"", 2, zerolog.DebugLevel},
		{"info", 0, zerolog.InfoLevel},
		{"INFO", 2, zerolog.DebugLevel},
		{"trace", 2, zerolog.TraceLevel},
		{"bogus", 0, zerolog.WarnLevel},
		{"error", 1, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Level(tt.env, tt.debug), "env=%q debug=%d", tt.env, tt.debug)
	}
}

func TestSetupWriterTargetsGivenWriter(t *testing.T) {
	t.Setenv(EnvLevel, "info")
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	SetupWriter(&buf, 0)

	log.Debug().Msg("hidden")
	log.Info().Str("mode", "ocr").Msg("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
	assert.Contains(t, out, "mode=ocr")
}
