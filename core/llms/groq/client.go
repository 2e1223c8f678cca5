// Package groq implements the llms contracts on top of Groq's OpenAI
// compatible chat completions API.
package groq

import (
	"github.com/invopop/jsonschema"
	"github.com/voxflow/voxflow-core/core/llms"
)

// url is a var so tests can point the client at a local server.
var url = "https://api.groq.com/openai/v1/chat/completions"

const (
	defaultModel = "llama-3.3-70b-versatile"

	endMessage  = "[DONE]"
	chunkPrefix = "data:"
)

type Client struct {
	apiKey string
	model  string

	systemPrompt string
	tools        []llms.Tool
}

type ClientOption func(*Client)

func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

func WithSystemPrompt(prompt string) ClientOption {
	return func(c *Client) {
		c.systemPrompt = prompt
	}
}

func WithTools(tools ...llms.Tool) ClientOption {
	return func(c *Client) {
		c.tools = append(c.tools, tools...)
	}
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		apiKey: apiKey,
		model:  defaultModel,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

type Tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

func toTools(tools []llms.Tool) []Tool {
	if len(tools) == 0 {
		return nil
	}

	wire := make([]Tool, 0, len(tools))
	for _, tool := range tools {
		wire = append(wire, Tool{
			Type: "function",
			Function: toolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	return wire
}
