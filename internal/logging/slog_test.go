package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTextLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return NewText(&buf, slog.LevelDebug), &buf
}

func TestSlogLogger_Levels(t *testing.T) {
	log, buf := newTextLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "tick", "progress", 40)
	log.Info(ctx, "issued", "key", "products/p1/a.jpg")
	log.Warn(ctx, "refresh skipped", "keys", 0)
	log.Error(ctx, "delete failed", "count", 2)

	out := buf.String()
	for _, want := range []string{
		"level=DEBUG", "msg=tick", "progress=40",
		"level=INFO", "msg=issued", "key=products/p1/a.jpg",
		"level=WARN", `msg="refresh skipped"`,
		"level=ERROR", `msg="delete failed"`, "count=2",
	} {
		assert.Contains(t, out, want)
	}
}

func TestSlogLogger_WithAddsAttributes(t *testing.T) {
	log, buf := newTextLogger(t)

	child := log.With("module", "reconciler", "entity", "p1")
	child.Info(context.Background(), "orphans deleted", "n", 3)

	out := buf.String()
	assert.Contains(t, out, "module=reconciler")
	assert.Contains(t, out, "entity=p1")
	assert.Contains(t, out, "n=3")
}

func TestNewJSON_WritesStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(&buf, slog.LevelInfo)

	log.Debug(context.Background(), "hidden")
	log.Info(context.Background(), "visible", "role", "products")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "visible", rec["msg"])
	assert.Equal(t, "products", rec["role"])
}

func TestNop_DiscardsEverything(t *testing.T) {
	log := Nop()
	ctx := context.TODO()
	log.Error(ctx, "nothing")
	log.With("a", 1).Info(ctx, "still nothing")
}
