package sampler

import (
	"math"

	"github.com/gopxl/beep/v2"
)

// Tap is a streamer wrapper that feeds the left channel of everything it passes through
// into a Sampler. It sits between the gain stage and the speaker.
type Tap struct {
	s       beep.Streamer
	sampler *Sampler
}

func NewTap(s beep.Streamer, sampler *Sampler) *Tap {
	return &Tap{s: s, sampler: sampler}
}

func (t *Tap) Stream(samples [][2]float64) (int, bool) {
	n, ok := t.s.Stream(samples)
	for i := range n {
		t.sampler.Consume(toInt16(samples[i][0]))
	}
	return n, ok
}

func (t *Tap) Err() error {
	return t.s.Err()
}

func toInt16(v float64) int16 {
	v = math.Round(v * math.MaxInt16)
	return int16(min(max(v, math.MinInt16), math.MaxInt16))
}
