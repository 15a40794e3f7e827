package audio

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/rs/zerolog/log"
)

const (
	SpeakerBufferSize   = 250 * time.Millisecond
	VolumeCurveExponent = 0.5
	MinVolumeDB         = -10.0
)

// Output is the audio device. The real one is Speaker; tests substitute their own.
type Output interface {
	Init(rate beep.SampleRate) error
	Play(s beep.Streamer)
	Clear()
	Lock()
	Unlock()
}

// Speaker drives the system audio device through beep's speaker package.
type Speaker struct {
	mu          sync.Mutex
	rate        beep.SampleRate
	initialized bool
}

func NewSpeaker() *Speaker {
	return &Speaker{}
}

// Init opens the device, re-opening it when the sample rate changes.
func (s *Speaker) Init(rate beep.SampleRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized && rate == s.rate {
		return nil
	}
	if s.initialized {
		speaker.Close()
	}
	if err := speaker.Init(rate, rate.N(SpeakerBufferSize)); err != nil {
		s.initialized = false
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}
	s.rate = rate
	s.initialized = true
	log.Debug().Msgf("Speaker initialized with sample rate: %d Hz, buffer: %v", rate, SpeakerBufferSize)
	return nil
}

func (s *Speaker) Play(st beep.Streamer) { speaker.Play(st) }

func (s *Speaker) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		speaker.Clear()
	}
}

func (s *Speaker) Lock()   { speaker.Lock() }
func (s *Speaker) Unlock() { speaker.Unlock() }

// volumeToExponent maps a linear volume in [0, 1] onto the decibel-like exponent used by
// effects.Volume with base 2.
func volumeToExponent(v float64) float64 {
	if v <= 0 {
		return MinVolumeDB
	}
	if v >= 1 {
		return 0
	}
	return (1.0 - math.Pow(v, VolumeCurveExponent)) * MinVolumeDB
}
