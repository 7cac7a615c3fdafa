package script

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rbright/hifz/internal/align"
	"github.com/rbright/hifz/internal/recognizer"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, s recognizer.Stream) []align.Segment {
	t.Helper()
	var out []align.Segment
	timeout := time.After(2 * time.Second)
	for {
		select {
		case seg, ok := <-s.Segments():
			if !ok {
				return out
			}
			out = append(out, seg)
		case <-timeout:
			t.Fatal("timed out draining stream")
		}
	}
}

func TestParse(t *testing.T) {
	input := `{"result_index":0,"text":"بسم الله","final":false}

{"result_index":0,"text":"بسم الله الرحمن","final":true}
{"end_stream":true}
`
	lines, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, lines, 3)
	require.Equal(t, "بسم الله", lines[0].Text)
	require.True(t, lines[1].Final)
	require.True(t, lines[2].EndStream)
}

func TestParseRejectsBadLines(t *testing.T) {
	_, err := Parse(strings.NewReader("{\"text\":\"ok\"}\n{\"txt\":\"typo\"}\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 2")

	_, err = Parse(strings.NewReader("not json\n"))
	require.Error(t, err)
}

func TestStreamDeliversUntilEndOfInput(t *testing.T) {
	r := New([]Line{
		{ResultIndex: 0, Text: "قل"},
		{ResultIndex: 0, Text: "قل هو", Final: true},
	}, 0)

	s, err := r.Start(context.Background())
	require.NoError(t, err)

	segs := drain(t, s)
	require.Equal(t, []align.Segment{
		{ResultIndex: 0, Text: "قل"},
		{ResultIndex: 0, Text: "قل هو", Final: true},
	}, segs)
	require.ErrorIs(t, s.Err(), recognizer.ErrEndOfInput)

	_, err = r.Start(context.Background())
	require.ErrorIs(t, err, recognizer.ErrEndOfInput)
}

func TestEndStreamResumesOnNextStart(t *testing.T) {
	r := New([]Line{
		{ResultIndex: 0, Text: "قل", Final: true},
		{EndStream: true},
		{ResultIndex: 0, Text: "هو", Final: true},
	}, 0)

	first, err := r.Start(context.Background())
	require.NoError(t, err)
	require.Len(t, drain(t, first), 1)
	require.NoError(t, first.Err())

	second, err := r.Start(context.Background())
	require.NoError(t, err)
	segs := drain(t, second)
	require.Len(t, segs, 1)
	require.Equal(t, "هو", segs[0].Text)
	require.ErrorIs(t, second.Err(), recognizer.ErrEndOfInput)
}

func TestStopEndsStreamWithoutConsumingPending(t *testing.T) {
	r := New([]Line{{Text: "قل"}, {Text: "هو"}}, 50*time.Millisecond)

	s, err := r.Start(context.Background())
	require.NoError(t, err)
	seg := <-s.Segments()
	require.Equal(t, "قل", seg.Text)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	drain(t, s)
	require.NoError(t, s.Err())

	resumed, err := r.Start(context.Background())
	require.NoError(t, err)
	segs := drain(t, resumed)
	require.Equal(t, "هو", segs[0].Text)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ikhlas.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"result_index":0,"text":"قل","final":true}`+"\n"), 0o600))

	r, err := Load(path, 0)
	require.NoError(t, err)
	require.Len(t, r.lines, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.jsonl"), 0)
	require.Error(t, err)
}
