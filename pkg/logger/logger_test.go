package logger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(WithLevel("loud"))
	assert.Error(t, err)
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	l, err := NewLogger(WithOutputPaths([]string{path}), WithEncoding("console"))
	require.NoError(t, err)

	l.Info("hello", String("k", "v"))
	_ = l.Sync()
	assert.FileExists(t, path)
}

func TestFromContext(t *testing.T) {
	tl := NewTestLogger()

	ctx := WithDocumentID(WithRequestID(context.Background(), "req-1"), "doc-1")
	FromContext(ctx, tl).Info("uploaded")

	entries := tl.GetEntries()
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Fields, 2)
	assert.Equal(t, "request_id", entries[0].Fields[0].Key)
	assert.Equal(t, "req-1", entries[0].Fields[0].String)
	assert.Equal(t, "document_id", entries[0].Fields[1].Key)
	assert.Equal(t, "req-1", RequestID(ctx))
}

func TestFromContext_NoValues(t *testing.T) {
	tl := NewTestLogger()
	assert.Same(t, tl, FromContext(context.Background(), tl))
}

func TestTestLogger_WithSharesEntries(t *testing.T) {
	tl := NewTestLogger()
	tl.With(String("a", "b")).Warn("child")
	tl.Error("parent")

	assert.Equal(t, 1, tl.Count("child"))
	assert.Equal(t, 1, tl.Count("parent"))

	tl.Clear()
	assert.Empty(t, tl.GetEntries())
}
