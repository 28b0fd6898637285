// Package stream post-processes a chat completion response on its way to the
// transcript: it pulls text deltas out of vendor chunks and drops the blank
// run some deployments emit before the first word.
//
// Every transform is lazy and single-pass. Nothing is buffered beyond the
// current fragment, and an upstream error ends the sequence after being
// yielded once.
package stream

import (
	"iter"
	"strings"
	"unicode"

	"oshaberi/internal/llm"
)

// Deltas yields the text content of each chunk. Chunks without choices, whose
// first choice has no delta, or whose delta content is empty produce nothing.
func Deltas(chunks iter.Seq2[llm.Chunk, error]) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for chunk, err := range chunks {
			if err != nil {
				yield("", err)
				return
			}
			text, ok := deltaText(chunk)
			if !ok {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

func deltaText(chunk llm.Chunk) (string, bool) {
	if len(chunk.Choices) == 0 {
		return "", false
	}
	delta := chunk.Choices[0].Delta
	if delta == nil || delta.Content == "" {
		return "", false
	}
	return delta.Content, true
}

// TrimLeading suppresses the leading run of empty or whitespace-only
// fragments and left-trims the first fragment carrying text. Everything after
// that passes through untouched, whitespace included.
func TrimLeading(fragments iter.Seq2[string, error]) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		started := false
		for text, err := range fragments {
			if err != nil {
				yield("", err)
				return
			}
			if !started {
				text = strings.TrimLeftFunc(text, unicode.IsSpace)
				if text == "" {
					continue
				}
				started = true
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

// Collect drains fragments, handing each to emit as it arrives, and returns
// the accumulated text. It stops at the first error from the sequence or emit;
// the text gathered so far is returned alongside that error.
func Collect(fragments iter.Seq2[string, error], emit func(string) error) (string, error) {
	var full strings.Builder
	for text, err := range fragments {
		if err != nil {
			return full.String(), err
		}
		full.WriteString(text)
		if emit != nil {
			if err := emit(text); err != nil {
				return full.String(), err
			}
		}
	}
	return full.String(), nil
}
