// Package conversations holds the shared conversation state a pipeline
// accumulates across turns.
package conversations

import (
	"sync"

	"github.com/voxflow/voxflow-core/core/llms"
)

// Context is the append-only log of finalized conversation turns. Both
// context aggregators write to the same instance so the model always sees
// user and assistant turns interleaved in completion order.
//
// Context is safe for concurrent use.
type Context struct {
	mu       sync.RWMutex
	messages []llms.Message
}

func NewContext(opts ...ContextOption) *Context {
	c := &Context{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ContextOption func(*Context)

// WithSystemPrompt seeds the context with a system message.
func WithSystemPrompt(prompt string) ContextOption {
	return func(c *Context) {
		if prompt == "" {
			return
		}
		c.messages = append(c.messages, llms.Message{
			Role:    llms.RoleSystem,
			Content: prompt,
		})
	}
}

func (c *Context) AppendUser(content string) {
	c.append(llms.Message{Role: llms.RoleUser, Content: content})
}

func (c *Context) AppendAssistant(content string) {
	c.append(llms.Message{Role: llms.RoleAssistant, Content: content})
}

func (c *Context) append(message llms.Message) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
}

// Snapshot returns a copy of the log. Appends after the snapshot is taken do
// not affect it.
func (c *Context) Snapshot() []llms.Message {
	if c == nil {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	messages := make([]llms.Message, len(c.messages))
	copy(messages, c.messages)
	return messages
}

// Len reports the number of messages in the log.
func (c *Context) Len() int {
	if c == nil {
		return 0
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}
