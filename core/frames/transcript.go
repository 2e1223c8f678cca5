package frames

// TranscriptPartial is an interim transcription of the current utterance. A
// later partial with the same utterance ID supersedes this one entirely.
type TranscriptPartial struct {
	Base
	transcript  string
	confidence  float64
	utteranceID string
}

func (f TranscriptPartial) String() string      { return f.transcript + "..." }
func (f TranscriptPartial) Transcript() string  { return f.transcript }
func (f TranscriptPartial) Confidence() float64 { return f.confidence }
func (f TranscriptPartial) UtteranceID() string { return f.utteranceID }

func NewTranscriptPartial(transcript string, confidence float64, utteranceID string) TranscriptPartial {
	return TranscriptPartial{
		Base:        NewBase(KindTranscriptPartial),
		transcript:  transcript,
		confidence:  confidence,
		utteranceID: utteranceID,
	}
}

// TranscriptFinal closes the utterance it belongs to.
type TranscriptFinal struct {
	Base
	transcript  string
	utteranceID string
}

func (f TranscriptFinal) String() string      { return f.transcript }
func (f TranscriptFinal) Transcript() string  { return f.transcript }
func (f TranscriptFinal) UtteranceID() string { return f.utteranceID }

func NewTranscriptFinal(transcript string, utteranceID string) TranscriptFinal {
	return TranscriptFinal{
		Base:        NewBase(KindTranscriptFinal),
		transcript:  transcript,
		utteranceID: utteranceID,
	}
}
