// Package llms defines the provider-neutral contracts for language model
// backends: conversation messages, streaming, and tool calling.
package llms

// Role describes who a message is from.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single message in a conversation.
type Message struct {
	Role    Role
	Content string

	ToolCalls []ToolCall
	// ToolCallID is set on tool-role messages to identify the call the
	// content responds to.
	ToolCallID string
}

// Response is a single fully assembled response from an LLM.
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *Usage
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments string
	Response  string
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int

	// QueueTime is how long the request waited before processing started.
	//
	// Note: This might be just an approximation.
	QueueTime float64
	// InputProcessingTime is how long the provider spent on the prompt.
	//
	// Note: This might be just an approximation.
	InputProcessingTime float64
	// OutputProcessingTime is how long the provider spent generating.
	//
	// Note: This might be just an approximation.
	OutputProcessingTime float64
	// TotalTime is the total server-side time for the request.
	//
	// Note: This might be just an approximation.
	TotalTime float64
}
