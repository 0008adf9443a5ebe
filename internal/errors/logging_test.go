package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger() (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger()
	l.SetOutput(&buf)
	l.SetLevel(logrus.DebugLevel)
	return l, &buf
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_LogError_IncludesAppErrorContext(t *testing.T) {
	l, buf := newBufferedLogger()

	l.LogError(NewInvalidFallbackProgramError("p1", "p2"), "resolve failed", logrus.Fields{"channel": "EMAIL"})

	entry := decodeEntry(t, buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "INVALID_FALLBACK_PROGRAM", entry["error_code"])
	assert.Equal(t, "p1", entry["program_id"])
	assert.Equal(t, "EMAIL", entry["channel"])
}

func TestLogger_LogRoutingError_Levels(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level string
	}{
		{"duplicate", NewDuplicateMessageError("m"), "info"},
		{"transient", NewTransientStorageError("op", errors.New("locked")), "warning"},
		{"fatal", NewTargetNotFoundError(nil, nil), "error"},
		{"plain", errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, buf := newBufferedLogger()
			l.LogRoutingError(tt.err, "routing")
			assert.Equal(t, tt.level, decodeEntry(t, buf)["level"])
		})
	}
}

func TestFromLogrus_SharesOutput(t *testing.T) {
	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)
	base.SetFormatter(&logrus.JSONFormatter{})

	FromLogrus(base).LogWarn(errors.New("x"), "warned")

	assert.Contains(t, buf.String(), "warned")
}
