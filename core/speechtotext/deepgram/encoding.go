package deepgram

import (
	"fmt"

	"github.com/voxflow/voxflow-core/core/audio"
)

// deepgramEncoding maps the pipeline's encoding onto the values the listen
// API accepts as query parameters. Companded formats are 8kHz only.
func deepgramEncoding(encoding audio.EncodingInfo) (name string, sampleRate int, err error) {
	switch encoding.SampleRate {
	case 8000, 16000, 24000, 32000, 48000:
		sampleRate = encoding.SampleRate
	default:
		return "", 0, fmt.Errorf("unsupported sample rate %d", encoding.SampleRate)
	}

	switch encoding.Format {
	case audio.EncodingLinear16:
		return "linear16", sampleRate, nil
	case audio.EncodingALaw, audio.EncodingMulaw:
		if sampleRate != 8000 {
			return "", 0, fmt.Errorf("%s audio must be sampled at 8kHz, got %d", encoding.Format.Name(), sampleRate)
		}
		return encoding.Format.Name(), sampleRate, nil
	default:
		return "", 0, fmt.Errorf("unsupported encoding %q", encoding.Format.Name())
	}
}
