package runtime

import (
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/FabG/chainlit-ui/pkg/types"
)

// ChatContext holds the append-only message transcript of a session. Messages
// are cloned on the way in and out, so callers can never mutate the shared
// history.
type ChatContext struct {
	sessionID string

	mu       sync.RWMutex
	messages []*types.Message
}

// NewChatContext creates an empty chat context.
func NewChatContext(sessionID string) *ChatContext {
	return &ChatContext{sessionID: sessionID}
}

// Append adds a message to the transcript.
func (c *ChatContext) Append(msg *types.Message) {
	clone := msg.Clone()
	c.mu.Lock()
	c.messages = append(c.messages, clone)
	c.mu.Unlock()
}

// Seed replaces the transcript wholesale. Used when resuming a session from
// persisted history, before the session accepts traffic.
func (c *ChatContext) Seed(msgs []*types.Message) {
	clones := make([]*types.Message, len(msgs))
	for i, m := range msgs {
		clones[i] = m.Clone()
	}
	c.mu.Lock()
	c.messages = clones
	c.mu.Unlock()
}

// Messages returns a snapshot of the transcript in append order.
func (c *ChatContext) Messages() []*types.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*types.Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = m.Clone()
	}
	return out
}

// Len returns the number of messages in the transcript.
func (c *ChatContext) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// ProviderMessages renders the transcript in the message schema model
// providers consume, preserving order and content. Messages whose ID is in
// exclude are skipped.
func (c *ChatContext) ProviderMessages(exclude map[string]bool) []*schema.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*schema.Message, 0, len(c.messages))
	for _, m := range c.messages {
		if exclude[m.ID] {
			continue
		}
		out = append(out, &schema.Message{
			Role:    providerRole(m.Author),
			Content: m.Content,
		})
	}
	return out
}

func providerRole(author types.MessageAuthor) schema.RoleType {
	switch author {
	case types.AuthorAssistant:
		return schema.Assistant
	case types.AuthorSystem:
		return schema.System
	default:
		return schema.User
	}
}
