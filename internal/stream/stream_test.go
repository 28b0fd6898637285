package stream

import (
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oshaberi/internal/llm"
)

func fragments(values ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, v := range values {
			if !yield(v, nil) {
				return
			}
		}
	}
}

func chunks(values ...llm.Chunk) iter.Seq2[llm.Chunk, error] {
	return func(yield func(llm.Chunk, error) bool) {
		for _, v := range values {
			if !yield(v, nil) {
				return
			}
		}
	}
}

func drain(t *testing.T, seq iter.Seq2[string, error]) []string {
	t.Helper()
	out := []string{}
	for text, err := range seq {
		require.NoError(t, err)
		out = append(out, text)
	}
	return out
}

func TestDeltas(t *testing.T) {
	tests := []struct {
		name  string
		chunk llm.Chunk
		want  []string
	}{
		{"no choices", llm.Chunk{}, []string{}},
		{"nil delta", llm.Chunk{Choices: []llm.Choice{{FinishReason: "stop"}}}, []string{}},
		{"empty content", llm.Chunk{Choices: []llm.Choice{{Delta: &llm.Delta{Role: "assistant"}}}}, []string{}},
		{"content", llm.TextChunk("abc"), []string{"abc"}},
		{"only first choice", llm.Chunk{Choices: []llm.Choice{
			{Delta: &llm.Delta{Content: "first"}},
			{Delta: &llm.Delta{Content: "second"}},
		}}, []string{"first"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, drain(t, Deltas(chunks(tt.chunk))))
		})
	}
}

func TestDeltasFromMapShapedChunks(t *testing.T) {
	raw := []map[string]any{
		{"choices": []any{}},
		{"choices": []any{map[string]any{"delta": map[string]any{"content": "ab"}}}},
		{"choices": []any{map[string]any{}}},
		{"choices": []any{map[string]any{"delta": map[string]any{"content": "c"}}}},
	}
	normalized := make([]llm.Chunk, 0, len(raw))
	for _, m := range raw {
		normalized = append(normalized, llm.ChunkFromMap(m))
	}
	assert.Equal(t, []string{"ab", "c"}, drain(t, Deltas(chunks(normalized...))))
}

func TestTrimLeading(t *testing.T) {
	got := drain(t, TrimLeading(fragments("", " \n", "  Hi", " there")))
	assert.Equal(t, []string{"Hi", " there"}, got)
}

func TestTrimLeadingKeepsInnerWhitespace(t *testing.T) {
	got := drain(t, TrimLeading(fragments("\n\nOne", "\n\n", "  two  ", "")))
	assert.Equal(t, []string{"One", "\n\n", "  two  ", ""}, got)
}

func TestTrimLeadingIdempotent(t *testing.T) {
	in := []string{"Hello", " ", "world", "\n"}
	once := drain(t, TrimLeading(fragments(in...)))
	assert.Equal(t, in, once)
	twice := drain(t, TrimLeading(fragments(once...)))
	assert.Equal(t, once, twice)
}

func TestTrimLeadingAllWhitespace(t *testing.T) {
	assert.Empty(t, drain(t, TrimLeading(fragments(" ", "\t", "\n"))))
	assert.Empty(t, drain(t, TrimLeading(fragments())))
}

func TestTrimLeadingFullWidthSpace(t *testing.T) {
	got := drain(t, TrimLeading(fragments("　", "　まいど")))
	assert.Equal(t, []string{"まいど"}, got)
}

func TestErrorsPassThrough(t *testing.T) {
	boom := errors.New("boom")
	source := func(yield func(llm.Chunk, error) bool) {
		if !yield(llm.TextChunk(" a"), nil) {
			return
		}
		if !yield(llm.Chunk{}, boom) {
			return
		}
		yield(llm.TextChunk("never"), nil)
	}

	var texts []string
	var errs []error
	for text, err := range TrimLeading(Deltas(source)) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		texts = append(texts, text)
	}
	assert.Equal(t, []string{"a"}, texts)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)
}

func TestEarlyStopDoesNotPullFurther(t *testing.T) {
	pulled := 0
	source := func(yield func(llm.Chunk, error) bool) {
		for _, v := range []string{"a", "b", "c"} {
			pulled++
			if !yield(llm.TextChunk(v), nil) {
				return
			}
		}
	}
	for range TrimLeading(Deltas(source)) {
		break
	}
	assert.Equal(t, 1, pulled)
}

func TestPipelineOverLiveStream(t *testing.T) {
	stream := llm.NewSliceStream(
		llm.Chunk{},
		llm.TextChunk(""),
		llm.TextChunk(" Hi"),
		llm.TextChunk(" there!"),
	)
	var shown []string
	full, err := Collect(TrimLeading(Deltas(llm.Chunks(stream))), func(s string) error {
		shown = append(shown, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", full)
	assert.Equal(t, []string{"Hi", " there!"}, shown)
	assert.True(t, stream.Closed())
}

func TestCollectStopsOnEmitError(t *testing.T) {
	stop := errors.New("client gone")
	full, err := Collect(fragments("a", "b", "c"), func(s string) error {
		if s == "b" {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, "ab", full)
}

func TestCollectNilEmit(t *testing.T) {
	full, err := Collect(fragments("x", "y"), nil)
	require.NoError(t, err)
	assert.Equal(t, "xy", full)
}
