package llm

import (
	"context"
	"io"
	"sync"
)

// MockClient is a scripted Client for tests of the packages built on Client.
type MockClient struct {
	Chunks    []Chunk // Chunks replayed on every successful Stream call
	Error     error   // Returned by Stream instead of a stream
	StreamErr error   // Returned by Recv after all Chunks were delivered

	mu       sync.Mutex
	requests []ChatRequest
}

// NewMockClient returns a client replaying the given content deltas as chunks.
func NewMockClient(deltas ...string) *MockClient {
	chunks := make([]Chunk, 0, len(deltas))
	for _, d := range deltas {
		chunks = append(chunks, TextChunk(d))
	}
	return &MockClient{Chunks: chunks}
}

// TextChunk builds a single-choice chunk carrying content.
func TextChunk(content string) Chunk {
	return Chunk{Choices: []Choice{{Delta: &Delta{Content: content}}}}
}

func (m *MockClient) Stream(ctx context.Context, req ChatRequest) (ChunkStream, error) {
	m.mu.Lock()
	m.requests = append(m.requests, cloneRequest(req))
	m.mu.Unlock()
	if m.Error != nil {
		return nil, m.Error
	}
	chunks := make([]Chunk, len(m.Chunks))
	copy(chunks, m.Chunks)
	return &SliceStream{ctx: ctx, chunks: chunks, err: m.StreamErr}, nil
}

// Requests returns every request received so far.
func (m *MockClient) Requests() []ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChatRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

func cloneRequest(req ChatRequest) ChatRequest {
	messages := make([]Message, len(req.Messages))
	copy(messages, req.Messages)
	req.Messages = messages
	return req
}

// SliceStream is an in-memory ChunkStream. Closed lets tests check that
// consumers release the stream.
type SliceStream struct {
	ctx    context.Context
	chunks []Chunk
	err    error
	closed bool
}

func NewSliceStream(chunks ...Chunk) *SliceStream {
	return &SliceStream{ctx: context.Background(), chunks: chunks}
}

func (s *SliceStream) Recv() (Chunk, error) {
	if err := s.ctx.Err(); err != nil {
		return Chunk{}, err
	}
	if s.closed {
		return Chunk{}, io.EOF
	}
	if len(s.chunks) == 0 {
		if s.err != nil {
			return Chunk{}, s.err
		}
		return Chunk{}, io.EOF
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return chunk, nil
}

func (s *SliceStream) Close() error {
	s.closed = true
	return nil
}

func (s *SliceStream) Closed() bool {
	return s.closed
}
