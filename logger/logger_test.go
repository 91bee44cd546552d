package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew_JSONAndLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{Level: "warn", Format: FormatJSON, Out: buf})

	log.Info().Msg("dropped")
	log.Warn().Str("job_id", "job-1").Msg("kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"job_id":"job-1"`)
	assert.Contains(t, out, `"message":"kept"`)
}

func TestNew_ConsoleDefault(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{Out: buf})

	log.Info().Msg("hello")

	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf).With().Str("request_id", "req-1").Logger())

	l := FromContext(ctx, zerolog.Nop())
	l.Info().Msg("test")
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)

	// no logger in context: the fallback is used
	fallback := &bytes.Buffer{}
	l = FromContext(context.Background(), NewWithWriter(fallback))
	l.Info().Msg("fallback")
	assert.Contains(t, fallback.String(), "fallback")
}
