package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"oshaberi/internal/stream"
)

// TurnResult reports how a turn ended: with a stored Reply or an Alert.
type TurnResult struct {
	Reply string
	Alert *Alert
	// Stale is set when the conversation was reset while the reply was
	// streaming; the reply was shown but not stored.
	Stale bool
}

// Chat drives turns against one completion backend.
type Chat struct {
	completer *Completer
	logger    *slog.Logger
}

func New(completer *Completer, logger *slog.Logger) *Chat {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Chat{completer: completer, logger: logger}
}

// Turn appends text as a user message, requests a completion over the whole
// history and streams the reply through render fragment by fragment. The
// reply is appended once the stream is exhausted. On an alert nothing is
// appended and the user message stays in history.
//
// Errors are reserved for the caller's side: a cancelled ctx, a render
// failure or an invalid session temperature.
func (c *Chat) Turn(ctx context.Context, sess *Session, text string, render func(string) error) (TurnResult, error) {
	sess.turn.Lock()
	defer sess.turn.Unlock()

	started := time.Now()
	generation, history, temperature := sess.appendUser(text)

	outcome, err := c.completer.Complete(ctx, history, temperature)
	if err != nil {
		return TurnResult{}, err
	}

	switch out := outcome.(type) {
	case *Alert:
		return TurnResult{Alert: out}, nil
	case *Streaming:
		defer out.Close()
		reply, err := stream.Collect(stream.TrimLeading(stream.Deltas(out.Chunks)), renderer(render))
		if err != nil {
			return c.streamFailed(ctx, sess, err)
		}
		stored := sess.appendAssistant(generation, reply)
		c.logger.Info("turn completed",
			"session", sess.ID,
			"reply_bytes", len(reply),
			"duration", time.Since(started),
			"stored", stored,
		)
		return TurnResult{Reply: reply, Stale: !stored}, nil
	default:
		return TurnResult{}, fmt.Errorf("unexpected completion outcome %T", outcome)
	}
}

func (c *Chat) streamFailed(ctx context.Context, sess *Session, err error) (TurnResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return TurnResult{}, ctxErr
	}
	var renderErr *RenderError
	if errors.As(err, &renderErr) {
		return TurnResult{}, err
	}
	alert := c.completer.alert(fmt.Errorf("session %s: stream: %w", sess.ID, err))
	return TurnResult{Alert: alert}, nil
}

// RenderError marks a failure of the UI side while a reply was streaming.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render: %v", e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

func renderer(render func(string) error) func(string) error {
	return func(fragment string) error {
		if render == nil {
			return nil
		}
		if err := render(fragment); err != nil {
			return &RenderError{Err: err}
		}
		return nil
	}
}
