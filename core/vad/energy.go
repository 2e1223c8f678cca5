package vad

import (
	"encoding/binary"
	"math"
)

// EnergyScorer is a pure-Go probability model based on RMS energy of
// linear16 PCM. It is a stand-in for model-backed scorers: the normalized
// energy saturates to 1.0 at ReferenceLevel so its output behaves like a
// probability for thresholding purposes.
type EnergyScorer struct {
	// ReferenceLevel is the RMS amplitude (0..1 of full scale) treated as
	// certain speech. Typical close-mic speech sits well above 0.03.
	ReferenceLevel float64
}

func NewEnergyScorer() *EnergyScorer {
	return &EnergyScorer{ReferenceLevel: 0.03}
}

func (s *EnergyScorer) Score(chunk []byte) float64 {
	if len(chunk) < 2 {
		return 0
	}

	var sum float64
	samples := len(chunk) / 2
	for i := 0; i < samples; i++ {
		sample := int16(binary.LittleEndian.Uint16(chunk[2*i:]))
		normalized := float64(sample) / math.MaxInt16
		sum += normalized * normalized
	}

	rms := math.Sqrt(sum / float64(samples))
	reference := s.ReferenceLevel
	if reference <= 0 {
		reference = 0.03
	}

	return math.Min(rms/reference, 1.0)
}
