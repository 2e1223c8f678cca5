package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/voxflow/voxflow-core/core/conversations"
	"github.com/voxflow/voxflow-core/core/frames"
	"github.com/voxflow/voxflow-core/core/llms"
)

// llmStage runs a generation pass per llm run frame, streaming the response
// out as text deltas. Tool calls requested by the model are executed between
// passes and their results fed back until the model answers with content.
// Generation is pinned to the turn number it started under; once an
// interruption bumps the counter the rest of the stream is abandoned without
// emitting.
type llmStage struct {
	model   LLM
	context *conversations.Context
	turns   *turnTaking
	tools   []llms.Tool

	enableMetrics bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

func newLLMStage(model LLM, context *conversations.Context, turns *turnTaking, tools []llms.Tool, enableMetrics bool) *llmStage {
	return &llmStage{
		model:         model,
		context:       context,
		turns:         turns,
		tools:         tools,
		enableMetrics: enableMetrics,
	}
}

func (s *llmStage) Name() string { return "llm" }

func (s *llmStage) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *llmStage) Process(ctx context.Context, frame frames.Frame, emit func(frames.Frame)) error {
	switch frame.(type) {
	case frames.LLMRun:
		return s.generate(ctx, emit)

	default:
		if !frames.IsControl(frame) {
			emit(frame)
		}
	}

	return nil
}

func (s *llmStage) generate(ctx context.Context, emit func(frames.Frame)) error {
	ctx, span := tracer.Start(ctx, "generate response")
	defer span.End()

	turn := s.turns.CurrentTurn()
	span.SetAttributes(attribute.Int64("assistant_turn.number", turn))
	if s.enableMetrics {
		turnsCounter.Add(ctx, 1)
	}

	generationCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()

	messages := s.context.Snapshot()
	started := time.Now()
	firstToken := true
	for {
		stream := s.model.PromptWithStream(generationCtx, nil,
			llms.WithMessages(messages...),
			llms.WithTools(s.tools...),
		)

		var toolCalls []llms.ToolCall
		for chunk, err := range stream.Chunks(generationCtx) {
			if err != nil {
				if generationCtx.Err() != nil {
					// Cancelled by an interruption; not a failure.
					span.AddEvent("generation interrupted")
					return nil
				}
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return CapabilityError{Capability: "llm", Err: err, Fatal: false}
			}

			if s.turns.CurrentTurn() != turn {
				span.AddEvent("generation abandoned, turn superseded")
				return nil
			}

			switch chunk := chunk.(type) {
			case llms.StreamToolCallChunk:
				toolCalls = append(toolCalls, chunk.ToolCall())

			case llms.StreamContentChunk:
				if chunk.Content() == "" {
					continue
				}
				if firstToken {
					firstToken = false
					span.SetAttributes(attribute.Float64("response.time_to_first_token", time.Since(started).Seconds()))
					if s.enableMetrics {
						responseLatencySeconds.Record(ctx, time.Since(started).Seconds())
					}
				}
				emit(frames.NewLLMTextDelta(chunk.Content(), turn))
			}
		}

		if len(toolCalls) == 0 {
			break
		}

		span.AddEvent("executing tool calls",
			trace.WithAttributes(attribute.Int("tool_calls.count", len(toolCalls))))
		for i := range toolCalls {
			response, err := s.callTool(generationCtx, toolCalls[i])
			if err != nil {
				if generationCtx.Err() != nil {
					span.AddEvent("generation interrupted")
					return nil
				}
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return CapabilityError{Capability: "llm", Err: err, Fatal: false}
			}
			toolCalls[i].Response = response
		}

		messages = append(messages, llms.Message{Role: llms.RoleAssistant, ToolCalls: toolCalls})
		for _, call := range toolCalls {
			messages = append(messages, llms.Message{
				Role:       llms.RoleTool,
				Content:    call.Response,
				ToolCallID: call.ID,
			})
		}

		if s.turns.CurrentTurn() != turn {
			span.AddEvent("generation abandoned, turn superseded")
			return nil
		}
	}

	if s.turns.CurrentTurn() != turn {
		return nil
	}

	emit(frames.NewLLMTurnComplete(turn))
	return nil
}

func (s *llmStage) callTool(ctx context.Context, call llms.ToolCall) (string, error) {
	for _, tool := range s.tools {
		if tool.Name != call.Name {
			continue
		}
		if tool.Execute == nil {
			return "", fmt.Errorf("tool %s has no executor", call.Name)
		}
		return tool.Execute(ctx, call.Arguments)
	}
	return "", fmt.Errorf("model called unknown tool %s", call.Name)
}
