package chat

import (
	"context"
	"iter"
	"log/slog"

	"oshaberi/internal/llm"
)

// Kind classifies a failed completion.
type Kind int

const (
	ContentRejected Kind = iota + 1
	ConnectionFailed
	ServiceFault
)

const (
	AdvisoryContentRejected  = "The request was rejected because it includes disallowed content; please rephrase your message."
	AdvisoryConnectionFailed = "A network error occurred; check your connection and try again."
	AdvisoryServiceFault     = "The chat service returned an error; please try again later."
)

func (k Kind) String() string {
	switch k {
	case ContentRejected:
		return "content_rejected"
	case ConnectionFailed:
		return "connection_failed"
	case ServiceFault:
		return "service_fault"
	default:
		return "unknown"
	}
}

// Advisory is the fixed text shown to the user for k.
func (k Kind) Advisory() string {
	switch k {
	case ContentRejected:
		return AdvisoryContentRejected
	case ConnectionFailed:
		return AdvisoryConnectionFailed
	default:
		return AdvisoryServiceFault
	}
}

// Classify maps a vendor failure onto the user-facing taxonomy.
func Classify(err error) Kind {
	switch {
	case llm.IsContentFilter(err):
		return ContentRejected
	case llm.IsConnection(err):
		return ConnectionFailed
	default:
		return ServiceFault
	}
}

// Outcome is either *Streaming or *Alert.
type Outcome interface {
	outcome()
}

// Streaming carries the live, single-pass chunk sequence of an accepted
// request. Close releases the response if Chunks is never drained.
type Streaming struct {
	Chunks iter.Seq2[llm.Chunk, error]
	stream llm.ChunkStream
}

func (*Streaming) outcome() {}

func (s *Streaming) Close() error {
	return s.stream.Close()
}

// Alert replaces a reply the user will never get. Message is one of the fixed
// advisory strings; the underlying error only reaches the operator log.
type Alert struct {
	Kind    Kind
	Message string
}

func (*Alert) outcome() {}

func NewAlert(kind Kind) *Alert {
	return &Alert{Kind: kind, Message: kind.Advisory()}
}

// Completer submits a conversation as one streaming completion request.
type Completer struct {
	client llm.Client
	model  string
	logger *slog.Logger
}

func NewCompleter(client llm.Client, model string, logger *slog.Logger) *Completer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Completer{client: client, model: model, logger: logger}
}

// Complete sends the full history, system prompt included. A temperature
// outside [0, 1] or a cancelled ctx is returned as an error; every vendor
// failure becomes an *Alert.
func (c *Completer) Complete(ctx context.Context, messages []llm.Message, temperature float64) (Outcome, error) {
	if err := ValidateTemperature(temperature); err != nil {
		return nil, err
	}
	stream, err := c.client.Stream(ctx, llm.ChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return c.alert(err), nil
	}
	return &Streaming{Chunks: llm.Chunks(stream), stream: stream}, nil
}

func (c *Completer) alert(err error) *Alert {
	kind := Classify(err)
	c.logger.Error("completion failed", "kind", kind.String(), "model", c.model, "error", err)
	return NewAlert(kind)
}
