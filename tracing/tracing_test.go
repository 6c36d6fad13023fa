package tracing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracingFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "span_test.txt")
	require.NoError(t, Init("kproc", "0.0.1", fname))

	ctx, span := StartSpan(context.Background(), "kernel.kill", KindInternal)
	span.WithAttributes(map[string]string{"pid": "3"}).WithInt("limit", 0)
	_, child := StartSpan(ctx, "kernel.procList", KindInternal)
	EndSpan(child, errors.New("not found"))
	EndSpan(span, nil)

	data, err := os.ReadFile(fname)
	require.NoError(t, err)
	assert.Contains(t, string(data), "kernel.kill")
	assert.Contains(t, string(data), "kernel.procList")
}

func TestEndSpan_Nil(t *testing.T) {
	assert.NotPanics(t, func() {
		EndSpan(nil, nil)
		var span *Span
		span.WithAttributes(map[string]string{"a": "b"}).SetStatus(nil)
	})
}
