package chat

import (
	"oshaberi/internal/llm"
	"oshaberi/internal/style"
)

// Conversation is the ordered message history of one session. Index 0 is
// always the system prompt and index 1 the style greeting.
type Conversation struct {
	messages []llm.Message
}

func NewConversation(s style.Style) *Conversation {
	c := &Conversation{}
	c.Reset(s)
	return c
}

// Reset replaces the whole history with the opening pair for s.
func (c *Conversation) Reset(s style.Style) {
	c.messages = []llm.Message{
		{Role: llm.RoleSystem, Content: s.SystemPrompt},
		{Role: llm.RoleAssistant, Content: s.Greeting},
	}
}

func (c *Conversation) AppendUser(text string) {
	c.messages = append(c.messages, llm.Message{Role: llm.RoleUser, Content: text})
}

func (c *Conversation) AppendAssistant(text string) {
	c.messages = append(c.messages, llm.Message{Role: llm.RoleAssistant, Content: text})
}

// Messages returns a copy of the full history, system prompt included. This
// is what goes on the wire.
func (c *Conversation) Messages() []llm.Message {
	out := make([]llm.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Visible returns the history without system messages, for rendering only.
func (c *Conversation) Visible() []llm.Message {
	out := make([]llm.Message, 0, len(c.messages))
	for _, m := range c.messages {
		if m.Role == llm.RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (c *Conversation) Len() int {
	return len(c.messages)
}
