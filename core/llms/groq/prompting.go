package groq

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strings"

	"github.com/jinzhu/copier"
	"github.com/voxflow/voxflow-core/core/llms"
	"github.com/voxflow/voxflow-core/internal/utils"
)

type requestBody struct {
	Model      string    `json:"model"`
	Messages   []message `json:"messages"`
	Stream     bool      `json:"stream"`
	ToolChoice *string   `json:"tool_choice,omitempty"`
	Tools      []Tool    `json:"tools,omitempty"`
}

type streamingResponseBody struct {
	Choices []struct {
		Delta struct {
			Role         string     `json:"role,omitempty"`
			Content      string     `json:"content,omitempty"`
			ToolCalls    []toolCall `json:"tool_calls,omitempty"`
			FinishReason *string    `json:"finish_reason,omitempty"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *struct {
		QueueTime        float64 `json:"queue_time"`
		PromptTokens     int     `json:"prompt_tokens"`
		PromptTime       float64 `json:"prompt_time"`
		CompletionTokens int     `json:"completion_tokens"`
		CompletionTime   float64 `json:"completion_time"`
		TotalTokens      int     `json:"total_tokens"`
		TotalTime        float64 `json:"total_time"`
	} `json:"usage"`
}

// Prompt sends a blocking completion request, executing any tool calls the
// model requests and resubmitting until the model produces a final response.
func (c *Client) Prompt(
	ctx context.Context,
	prompt string,
	opts ...llms.PromptOption,
) ([]llms.Message, error) {
	options := llms.PromptOptions{
		Instructions: c.systemPrompt,
		Tools:        slices.Clone(c.tools),
	}
	for _, opt := range opts {
		opt(&options)
	}

	messages := toMessages(options.Instructions, options.Messages)
	messages = append(messages, message{
		Role:    messageRoleUser,
		Content: prompt,
	})

	var toolChoice *string
	tools := toTools(options.Tools)
	if tools != nil {
		toolChoice = utils.Ptr("auto")
	}

	responses := []llms.Message{}

	for {
		reqBody := requestBody{
			Model:      c.model,
			Messages:   messages,
			Stream:     true,
			Tools:      tools,
			ToolChoice: toolChoice,
		}

		requestBodyBytes, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("error marshalling JSON: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("error creating HTTP request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		client := &http.Client{}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("error sending request: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			log.Println("Non-OK HTTP status:", resp.Status)
		}

		toolCalls := []toolCall{}
		var response strings.Builder
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			chunk := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), chunkPrefix))

			if len(chunk) == 0 {
				continue
			}

			if chunk == endMessage {
				break
			}

			var responseBody streamingResponseBody
			err := json.Unmarshal([]byte(chunk), &responseBody)
			if err != nil {
				log.Println("Error unmarshalling JSON:", err)
				continue
			}
			if len(responseBody.Choices) == 0 {
				continue
			}
			if len(responseBody.Choices[0].Delta.ToolCalls) > 0 {
				toolCalls = append(toolCalls, responseBody.Choices[0].Delta.ToolCalls...)
			}

			content := responseBody.Choices[0].Delta.Content
			response.WriteString(content)
			if options.Stream != nil {
				options.Stream(content)
			}
		}

		if err := scanner.Err(); err != nil {
			log.Println("Error reading streamed response:", err)
		}
		if err := resp.Body.Close(); err != nil {
			log.Println("Error closing response body:", err)
		}

		messages = append(messages, message{
			Role:      messageRoleAssistant,
			Content:   response.String(),
			ToolCalls: toolCalls,
		})
		msg := llms.Message{
			Role:    llms.RoleAssistant,
			Content: response.String(),
		}
		for _, toolCall := range toolCalls {
			msg.ToolCalls = append(msg.ToolCalls, llms.ToolCall{
				ID:        toolCall.ID,
				Name:      toolCall.Function.Name,
				Arguments: toolCall.Function.Arguments,
			})
		}
		responses = append(responses, msg)
		if len(toolCalls) == 0 {
			llmResponses := []llms.Message{}
			copier.Copy(&llmResponses, responses)
			return llmResponses, nil
		}

		for _, toolCall := range toolCalls {
			for _, tool := range options.Tools {
				if tool.Name != toolCall.Function.Name || tool.Execute == nil {
					continue
				}
				resp, err := tool.Execute(ctx, toolCall.Function.Arguments)
				if err != nil {
					log.Println("Error executing tool:", err)
				}
				messages = append(messages, message{
					ToolCallID: toolCall.ID,
					Role:       messageRoleTool,
					Content:    resp,
				})
				responses = append(responses, llms.Message{
					ToolCallID: toolCall.ID,
					Role:       llms.RoleTool,
					Content:    resp,
				})
			}
		}
	}
}
