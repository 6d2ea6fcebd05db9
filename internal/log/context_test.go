package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHandler_InjectsFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewJSONHandler(&buf, nil)
	h := NewContextHandler(base)
	logger := slog.New(h)

	ctx := context.Background()
	ctx = WithState(ctx, "Accepting")
	ctx = WithTrigger(ctx, "IAC")
	ctx = WithOption(ctx, "GMCP")
	ctx = WithByteIndex(ctx, 42)

	logger.InfoContext(ctx, "overflow dropped")

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "Accepting", out["state"])
	assert.Equal(t, "IAC", out["trigger"])
	assert.Equal(t, "GMCP", out["option"])
	assert.Equal(t, float64(42), out["byte_index"])
}

func TestContextHandler_NoFieldsWhenContextBare(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewJSONHandler(&buf, nil)
	h := NewContextHandler(base)
	logger := slog.New(h)

	logger.InfoContext(context.Background(), "plain message")

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	_, hasState := out["state"]
	assert.False(t, hasState)
}
