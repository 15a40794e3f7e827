// Package sampler turns decoded audio samples into the coarse band levels shown by the
// front panel visualizer. Consume runs on the audio output goroutine and never blocks.
package sampler

import (
	"math"
	"runtime/debug"
	"runtime/metrics"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	BufferSize   = 256
	BandCount    = 16
	MaxAmplitude = 15000
	BandHeight   = 32
	MinHeadroom  = 512 // bytes

	warningInterval = 5 * time.Second
)

// Bands holds one level per band, each in [0, BandHeight].
type Bands [BandCount]uint8

// HeadroomFunc reports the free working space, in bytes, available to the processing step.
type HeadroomFunc func() int

// UnlimitedHeadroom is the default probe on hosts where the runtime grows stacks on demand.
func UnlimitedHeadroom() int {
	return 1 << 20
}

// MemoryHeadroom returns a HeadroomFunc measuring the distance between the memory the Go
// runtime holds from the OS and the soft limit set with GOMEMLIMIT. Without a limit it
// reports UnlimitedHeadroom. The returned func is not safe for concurrent use.
func MemoryHeadroom() HeadroomFunc {
	samples := []metrics.Sample{
		{Name: "/memory/classes/total:bytes"},
		{Name: "/memory/classes/heap/released:bytes"},
	}
	return func() int {
		limit := debug.SetMemoryLimit(-1)
		if limit == math.MaxInt64 {
			return UnlimitedHeadroom()
		}
		metrics.Read(samples)
		used := int64(samples[0].Value.Uint64() - samples[1].Value.Uint64())
		return int(min(max(limit-used, 0), 1<<20))
	}
}

// Sampler accumulates the left channel of the output stream and publishes band levels
// once per full buffer. The buffer is touched only by the goroutine calling Consume;
// Bands and Overflows may be read from anywhere.
type Sampler struct {
	buf      [BufferSize]int16
	pos      int
	headroom HeadroomFunc

	overflows atomic.Uint64
	bands     atomic.Pointer[Bands]
	warn      zerolog.Logger
}

// New creates a sampler. A nil headroom probe selects UnlimitedHeadroom.
func New(headroom HeadroomFunc) *Sampler {
	if headroom == nil {
		headroom = UnlimitedHeadroom
	}
	s := &Sampler{
		headroom: headroom,
		warn:     log.Sample(&zerolog.BurstSampler{Burst: 1, Period: warningInterval}),
	}
	s.bands.Store(&Bands{})
	return s
}

// Consume records one sample and processes the buffer when it fills up.
func (s *Sampler) Consume(sample int16) {
	if s.pos >= BufferSize {
		n := s.overflows.Add(1)
		s.warn.Warn().Uint64("overflows", n).Msg("Visualizer buffer overflow")
		return
	}

	s.buf[s.pos] = sample
	s.pos++

	if s.pos >= BufferSize {
		s.process(s.buf[:s.pos])
		s.pos = 0
	}
}

// Bands returns the most recently published band levels.
func (s *Sampler) Bands() Bands {
	return *s.bands.Load()
}

// Overflows reports how many samples or frames were dropped.
func (s *Sampler) Overflows() uint64 {
	return s.overflows.Load()
}

// Reset clears the published levels, used when playback stops.
func (s *Sampler) Reset() {
	s.bands.Store(&Bands{})
}

func (s *Sampler) process(data []int16) {
	if free := s.headroom(); free < MinHeadroom {
		n := s.overflows.Add(1)
		s.warn.Warn().Int("free", free).Int("min", MinHeadroom).Uint64("overflows", n).Msg("Headroom low, skipping visualizer frame")
		return
	}

	bands, ok := ComputeBands(data)
	if !ok {
		return
	}
	s.bands.Store(&bands)
}

// ComputeBands splits data into BandCount equal slices and maps each slice's mean absolute
// amplitude linearly from [0, MaxAmplitude] to [0, BandHeight]. ok is false when there are
// too few samples to fill every band.
func ComputeBands(data []int16) (bands Bands, ok bool) {
	if len(data) < BandCount {
		return bands, false
	}
	width := len(data) / BandCount
	if width == 0 {
		return bands, false
	}

	for i := range BandCount {
		var total int64
		for _, v := range data[i*width : (i+1)*width] {
			total += abs(int64(v))
		}
		avg := total / int64(width)
		level := avg * BandHeight / MaxAmplitude
		bands[i] = uint8(min(max(level, 0), BandHeight))
	}
	return bands, true
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
