package pipeline

import (
	"context"

	"github.com/voxflow/voxflow-core/core/conversations"
	"github.com/voxflow/voxflow-core/core/frames"
)

// userContextAggregator appends finalized user turns to the shared
// conversation context and kicks off a generation pass. Both context
// aggregators write to the same log, so the model sees turns in completion
// order.
type userContextAggregator struct {
	context *conversations.Context
}

func newUserContextAggregator(context *conversations.Context) *userContextAggregator {
	return &userContextAggregator{context: context}
}

func (s *userContextAggregator) Name() string { return "user-context-aggregator" }

func (s *userContextAggregator) Process(_ context.Context, frame frames.Frame, emit func(frames.Frame)) error {
	switch frame := frame.(type) {
	case frames.TranscriptFinal:
		s.context.AppendUser(frame.Transcript())
		emit(frame)
		emit(frames.NewLLMRun())

	default:
		if !frames.IsControl(frame) {
			emit(frame)
		}
	}

	return nil
}

// assistantContextAggregator appends completed assistant responses to the
// shared conversation context. Interrupted responses never complete, so they
// never reach the log.
type assistantContextAggregator struct {
	context *conversations.Context
}

func newAssistantContextAggregator(context *conversations.Context) *assistantContextAggregator {
	return &assistantContextAggregator{context: context}
}

func (s *assistantContextAggregator) Name() string { return "assistant-context-aggregator" }

func (s *assistantContextAggregator) Process(_ context.Context, frame frames.Frame, emit func(frames.Frame)) error {
	switch frame := frame.(type) {
	case frames.AssistantResponse:
		s.context.AppendAssistant(frame.Text())
		emit(frame)

	default:
		if !frames.IsControl(frame) {
			emit(frame)
		}
	}

	return nil
}
