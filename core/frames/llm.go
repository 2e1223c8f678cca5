package frames

// LLMRun requests a generation pass over the current conversation context.
// The user-side context aggregator emits one after appending a finalized user
// turn; it can also be injected externally to open the conversation.
type LLMRun struct{ Base }

func (f LLMRun) String() string { return "LLM Run" }

func NewLLMRun() LLMRun { return LLMRun{Base: NewBase(KindLLMRun)} }

// LLMTextDelta is one streamed token span of the assistant response. Turn
// identifies the assistant turn the delta belongs to; deltas from a
// superseded turn are stale and must not reach synthesis.
type LLMTextDelta struct {
	Base
	delta string
	turn  int64
}

func (f LLMTextDelta) String() string { return f.delta }
func (f LLMTextDelta) Delta() string  { return f.delta }
func (f LLMTextDelta) Turn() int64    { return f.turn }

func NewLLMTextDelta(delta string, turn int64) LLMTextDelta {
	return LLMTextDelta{Base: NewBase(KindLLMTextDelta), delta: delta, turn: turn}
}

// AssistantResponse carries the fully assembled text of one assistant turn,
// emitted by the response aggregator when the stream completes.
type AssistantResponse struct {
	Base
	text string
}

func (f AssistantResponse) String() string { return f.text }
func (f AssistantResponse) Text() string   { return f.text }

func NewAssistantResponse(text string) AssistantResponse {
	return AssistantResponse{Base: NewBase(KindAssistantResponse), text: text}
}

// LLMTurnComplete signals the end of the streamed assistant response for the
// identified turn.
type LLMTurnComplete struct {
	Base
	turn int64
}

func (f LLMTurnComplete) String() string { return "LLM Turn Complete" }
func (f LLMTurnComplete) Turn() int64    { return f.turn }

func NewLLMTurnComplete(turn int64) LLMTurnComplete {
	return LLMTurnComplete{Base: NewBase(KindLLMTurnComplete), turn: turn}
}
