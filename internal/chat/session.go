package chat

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"oshaberi/internal/llm"
	"oshaberi/internal/style"
)

const (
	DefaultTemperature = 0.5
	MinTemperature     = 0.0
	MaxTemperature     = 1.0
)

var ErrTemperatureOutOfRange = errors.New("temperature out of range")

func ValidateTemperature(t float64) error {
	if math.IsNaN(t) || t < MinTemperature || t > MaxTemperature {
		return fmt.Errorf("%w: %v not in [%.1f, %.1f]", ErrTemperatureOutOfRange, t, MinTemperature, MaxTemperature)
	}
	return nil
}

// Session is the per-connection context handed to every UI handler. All
// methods are safe for concurrent use; turns are serialized by Turn.
type Session struct {
	ID string

	styles *style.Registry
	now    func() time.Time

	// turn serializes turns; mu guards everything below it.
	turn sync.Mutex
	mu   sync.Mutex

	conversation *Conversation
	style        string
	temperature  float64
	confirmReset bool
	// generation changes on every reset so a turn that straddles a reset
	// does not write its reply into the fresh conversation.
	generation uint64
	lastActive time.Time
	// conns counts attached live connections; an attached session is never swept.
	conns int
}

func newSession(id string, styles *style.Registry, defaults Defaults, now func() time.Time) (*Session, error) {
	s, err := styles.Lookup(defaults.Style)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:           id,
		styles:       styles,
		now:          now,
		conversation: NewConversation(s),
		style:        s.Key,
		temperature:  defaults.Temperature,
		lastActive:   now(),
	}, nil
}

// Snapshot is an immutable render view of a session.
type Snapshot struct {
	ID           string
	Style        style.Style
	Styles       []style.Style
	Temperature  float64
	ConfirmReset bool
	Messages     []llm.Message
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, _ := s.styles.Lookup(s.style)
	return Snapshot{
		ID:           s.ID,
		Style:        current,
		Styles:       s.styles.All(),
		Temperature:  s.temperature,
		ConfirmReset: s.confirmReset,
		Messages:     s.conversation.Visible(),
	}
}

// History returns the full conversation including the system prompt.
func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversation.Messages()
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversation.Len()
}

func (s *Session) Style() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.style
}

func (s *Session) Temperature() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.temperature
}

func (s *Session) ConfirmResetPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmReset
}

// SelectStyle switches persona. The conversation restarts with the new
// style's prompt and greeting; selecting the current style is a no-op.
func (s *Session) SelectStyle(key string) error {
	next, err := s.styles.Lookup(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.now()
	if next.Key == s.style {
		return nil
	}
	s.style = next.Key
	s.resetLocked(next)
	return nil
}

// CycleStyle selects the style after the current one in registry order,
// wrapping around, and returns its key.
func (s *Session) CycleStyle() (string, error) {
	s.mu.Lock()
	next := s.styles.Next(s.style)
	s.mu.Unlock()
	return next, s.SelectStyle(next)
}

func (s *Session) SetTemperature(t float64) error {
	if err := ValidateTemperature(t); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temperature = t
	s.lastActive = s.now()
	return nil
}

// RequestReset is the first step of the two-step reset.
func (s *Session) RequestReset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmReset = true
	s.lastActive = s.now()
}

// ConfirmReset reinitializes the conversation with the current style.
// Without a pending request it does nothing and reports false.
func (s *Session) ConfirmReset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.now()
	if !s.confirmReset {
		return false
	}
	current, _ := s.styles.Lookup(s.style)
	s.resetLocked(current)
	return true
}

// CancelReset withdraws a pending reset, leaving history untouched.
func (s *Session) CancelReset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmReset = false
	s.lastActive = s.now()
}

func (s *Session) resetLocked(st style.Style) {
	s.conversation.Reset(st)
	s.confirmReset = false
	s.generation++
}

func (s *Session) appendUser(text string) (generation uint64, history []llm.Message, temperature float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversation.AppendUser(text)
	s.lastActive = s.now()
	return s.generation, s.conversation.Messages(), s.temperature
}

func (s *Session) appendAssistant(generation uint64, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.now()
	if generation != s.generation {
		return false
	}
	s.conversation.AppendAssistant(text)
	return true
}

// Touch marks the session as active.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.now()
}

func (s *Session) expired(now time.Time, idle time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns == 0 && now.Sub(s.lastActive) > idle
}
