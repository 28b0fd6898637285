package llm

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync/atomic"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

// Chunk is the one internal shape every vendor stream record is normalized into.
type Chunk struct {
	ID      string
	Model   string
	Choices []Choice
}

type Choice struct {
	Index        int
	Delta        *Delta
	FinishReason string
}

type Delta struct {
	Role    string
	Content string
}

// ChunkStream is a live response. Recv returns io.EOF once the vendor ends the stream.
type ChunkStream interface {
	Recv() (Chunk, error)
	Close() error
}

type Client interface {
	Stream(ctx context.Context, req ChatRequest) (ChunkStream, error)
}

var ErrStreamConsumed = errors.New("stream already consumed")

// Chunks adapts s into a single-pass sequence. The stream is closed when
// iteration ends; ranging over the result a second time yields ErrStreamConsumed.
func Chunks(s ChunkStream) iter.Seq2[Chunk, error] {
	var used atomic.Bool
	return func(yield func(Chunk, error) bool) {
		if used.Swap(true) {
			yield(Chunk{}, ErrStreamConsumed)
			return
		}
		defer s.Close()
		for {
			chunk, err := s.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Chunk{}, err)
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}
