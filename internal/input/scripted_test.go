package input

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSource struct {
	results []Result
	i       int
}

func (f *fixedSource) NextLine(context.Context) (Result, error) {
	if f.i >= len(f.results) {
		return Result{Outcome: EOF}, nil
	}
	r := f.results[f.i]
	f.i++
	return r, nil
}

func TestScriptedReplaysLinesThenFallsBack(t *testing.T) {
	fallback := &fixedSource{results: []Result{{Outcome: Line, Text: "from-fallback"}}}
	s := NewScripted(strings.NewReader("one\ntwo\n"), nil, time.Millisecond, fallback)

	ctx := context.Background()
	r1, err := s.NextLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Outcome: Line, Text: "one"}, r1)

	r2, err := s.NextLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Outcome: Line, Text: "two"}, r2)

	r3, err := s.NextLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Outcome: Line, Text: "from-fallback"}, r3)
}

func TestScriptedAppliesDelayBeforeFirstLine(t *testing.T) {
	fallback := &fixedSource{}
	s := NewScripted(strings.NewReader("only\n"), nil, 20*time.Millisecond, fallback)

	start := time.Now()
	_, err := s.NextLine(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestScriptedContextCancelYieldsEOF(t *testing.T) {
	fallback := &fixedSource{}
	s := NewScripted(strings.NewReader("only\n"), nil, time.Hour, fallback)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := s.NextLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, EOF, r.Outcome)
}
