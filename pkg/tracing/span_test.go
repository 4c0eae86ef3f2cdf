package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_NestsChildrenUnderRoot(t *testing.T) {
	ctx, root := Start(context.Background(), "startup")
	require.NotEmpty(t, root.TraceID)

	err := Run(ctx, "load", func(ctx context.Context) error {
		return Run(ctx, "decode", func(context.Context) error { return nil })
	})
	require.NoError(t, err)
	root.End(nil)

	require.Len(t, root.Children, 1)
	load := root.Children[0]
	assert.Equal(t, "load", load.Name)
	assert.Equal(t, root.TraceID, load.TraceID)
	require.Len(t, load.Children, 1)
	assert.Equal(t, "decode", load.Children[0].Name)
}

func TestRun_RecordsError(t *testing.T) {
	ctx, root := Start(context.Background(), "startup")
	boom := errors.New("boom")
	assert.ErrorIs(t, Run(ctx, "fetch", func(context.Context) error { return boom }), boom)
	assert.ErrorIs(t, root.Children[0].Err, boom)
}

func TestNilSpanIsNoop(t *testing.T) {
	var s *Span
	s.SetAttr("k", "v")
	s.End(nil)
	assert.Nil(t, FromContext(context.Background()))
}

func TestLog_WritesOneRecordPerSpan(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx, root := Start(context.Background(), "startup")
	root.SetAttr("source", "file.json")
	_ = Run(ctx, "decode", func(context.Context) error { return errors.New("bad json") })
	root.End(nil)
	root.Log(logger)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "span=startup")
	assert.Contains(t, lines[0], "source=file.json")
	assert.Contains(t, lines[1], "level=WARN")
	assert.Contains(t, lines[1], "depth=1")
}
