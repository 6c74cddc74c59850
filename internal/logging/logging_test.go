package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/tj/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("chatty"))
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "rollcall", "info")

	logger.Debug().Msg("hidden")
	logger.Info().Str("class_id", "math").Msg("session started")

	var line map[string]interface{}
	assert.Nil(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "rollcall", line["service"])
	assert.Equal(t, Version, line["version"])
	assert.Equal(t, "math", line["class_id"])
	assert.Equal(t, "session started", line["message"])
}
