package llms

// PromptOptions collects the per-call options for a prompt.
type PromptOptions struct {
	Instructions string
	Messages     []Message
	Tools        []Tool
	Stream       func(string)
}

// PromptOption modifies the prompt options.
type PromptOption func(*PromptOptions)

// WithSystemPrompt sets the system prompt. Repeating this option overwrites
// the previous system prompt.
func WithSystemPrompt(prompt string) PromptOption {
	return func(opts *PromptOptions) {
		opts.Instructions = prompt
	}
}

// WithMessages appends messages to the prompt. Repeating this option
// sequentially adds more messages.
func WithMessages(messages ...Message) PromptOption {
	return func(opts *PromptOptions) {
		opts.Messages = append(opts.Messages, messages...)
	}
}

// WithTools appends tools available to the model. Repeating this option
// sequentially adds more tools.
func WithTools(tools ...Tool) PromptOption {
	return func(opts *PromptOptions) {
		opts.Tools = append(opts.Tools, tools...)
	}
}

// WithStream sets a callback invoked for each streamed content chunk.
func WithStream(stream func(string)) PromptOption {
	return func(opts *PromptOptions) {
		opts.Stream = stream
	}
}
