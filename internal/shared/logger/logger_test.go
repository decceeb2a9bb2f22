package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONLogger(buf *bytes.Buffer, level LogLevel) *Logger {
	cfg := DefaultConfig()
	cfg.Format = FormatJSON
	cfg.Level = level
	cfg.Component = "test-component"
	cfg.Version = "v1"
	return NewWithWriter(cfg, buf)
}

func decodeLast(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestErrorCtx_EnrichesAndOutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, LevelInfo)

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = WithOperation(ctx, "create_server")
	ctx = WithUserID(ctx, "user-7")
	ctx = WithServerID(ctx, "srv-9")

	domainErr := apperrors.NewServerError(apperrors.ErrCodeServerExists, "server already exists", false, nil).
		WithMetadata("existing_server_id", "srv-1")
	l.ErrorCtx(ctx, "create failed", fmt.Errorf("create: %w", domainErr), slog.String("extra", "value"))

	entry := decodeLast(t, &buf)
	for _, k := range []string{
		"error", "error_domain", "error_code", "retryable", "existing_server_id",
		"request_id", "operation", "user_id", "server_id",
		"component", "version", "extra", "msg", "time", "level",
	} {
		assert.Contains(t, entry, k)
	}
	assert.Equal(t, apperrors.ErrCodeServerExists, entry["error_code"])
	assert.Equal(t, "ERROR", entry["level"])
}

func TestWarnErr_PlainError(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, LevelInfo)

	l.WarnErr(context.Background(), "release failed", errors.New("boom"))

	entry := decodeLast(t, &buf)
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "boom", entry["error"])
	assert.NotContains(t, entry, "error_code")
}

func TestHTTPRequest_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "INFO"},
		{404, "WARN"},
		{502, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			l := newJSONLogger(&buf, LevelInfo)

			l.HTTPRequest(context.Background(), "GET", "/api/servers", tt.status, 5*time.Millisecond)

			entry := decodeLast(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.EqualValues(t, tt.status, entry["http_status"])
		})
	}
}

func TestOperation_CompleteAndFail(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, LevelDebug)

	op := l.StartOp(context.Background(), "rotate_ip", slog.String("server_id", "srv-1"))
	op.Complete("rotated", slog.String("new_ip", "203.0.113.7"))

	entry := decodeLast(t, &buf)
	assert.Equal(t, "rotated", entry["msg"])
	assert.Equal(t, "rotate_ip", entry["operation"])
	assert.Equal(t, "srv-1", entry["server_id"])
	assert.Equal(t, "203.0.113.7", entry["new_ip"])

	op.Fail(apperrors.NewServerError(apperrors.ErrCodeRotationFailed, "attach failed", false, nil), "")
	entry = decodeLast(t, &buf)
	assert.Equal(t, "operation failed", entry["msg"])
	assert.Equal(t, apperrors.ErrCodeRotationFailed, entry["error_code"])
}

func TestWithComponent_DoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := newJSONLogger(&buf, LevelInfo)
	child := parent.WithComponent("orchestrator")

	child.InfoContext(context.Background(), "hello")
	child.WithContext(context.Background()).Info("child")
	assert.Equal(t, "orchestrator", decodeLast(t, &buf)["component"])

	parent.WithContext(context.Background()).Info("parent")
	assert.Equal(t, "test-component", decodeLast(t, &buf)["component"])
}
