package sampler

import (
	"math"
	"runtime/debug"
	"testing"

	"github.com/gopxl/beep/v2"
)

func fill(s *Sampler, n int, v int16) {
	for range n {
		s.Consume(v)
	}
}

func TestComputeBands(t *testing.T) {
	tests := []struct {
		name   string
		data   []int16
		wantOK bool
		want   uint8
	}{
		{"too few samples", make([]int16, BandCount-1), false, 0},
		{"silence", make([]int16, BufferSize), true, 0},
		{"full scale clamps", constant(BufferSize, 32767), true, BandHeight},
		{"negative uses magnitude", constant(BufferSize, -15000), true, BandHeight},
		{"half amplitude", constant(BufferSize, 7500), true, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bands, ok := ComputeBands(tt.data)
			if ok != tt.wantOK {
				t.Fatalf("ComputeBands() ok = %v, want %v", ok, tt.wantOK)
			}
			for i, b := range bands {
				if b != tt.want {
					t.Errorf("band[%d] = %d, want %d", i, b, tt.want)
				}
			}
		})
	}
}

func TestComputeBandsPerSlice(t *testing.T) {
	data := make([]int16, BufferSize)
	width := BufferSize / BandCount
	for i := range width {
		data[3*width+i] = MaxAmplitude
	}

	bands, ok := ComputeBands(data)
	if !ok {
		t.Fatal("ComputeBands() ok = false")
	}
	for i, b := range bands {
		want := uint8(0)
		if i == 3 {
			want = BandHeight
		}
		if b != want {
			t.Errorf("band[%d] = %d, want %d", i, b, want)
		}
	}
}

func TestConsumePublishesOnFullBuffer(t *testing.T) {
	s := New(nil)
	fill(s, BufferSize-1, MaxAmplitude)

	if got := s.Bands(); got != (Bands{}) {
		t.Fatalf("Bands() published before buffer filled: %v", got)
	}

	s.Consume(MaxAmplitude)
	got := s.Bands()
	for i, b := range got {
		if b != BandHeight {
			t.Errorf("band[%d] = %d, want %d", i, b, BandHeight)
		}
	}
	if s.Overflows() != 0 {
		t.Errorf("Overflows() = %d, want 0", s.Overflows())
	}

	s.Reset()
	if s.Bands() != (Bands{}) {
		t.Error("Reset() did not clear bands")
	}
}

func TestLowHeadroomSkipsFrame(t *testing.T) {
	s := New(func() int { return MinHeadroom - 1 })
	fill(s, BufferSize*3, MaxAmplitude)

	if s.Bands() != (Bands{}) {
		t.Errorf("Bands() = %v, want zero levels when headroom is low", s.Bands())
	}
	if s.Overflows() != 3 {
		t.Errorf("Overflows() = %d, want 3", s.Overflows())
	}
}

func TestMemoryHeadroom(t *testing.T) {
	headroom := MemoryHeadroom()

	old := debug.SetMemoryLimit(math.MaxInt64)
	defer debug.SetMemoryLimit(old)
	if got := headroom(); got != UnlimitedHeadroom() {
		t.Errorf("headroom() without a limit = %d, want %d", got, UnlimitedHeadroom())
	}

	debug.SetMemoryLimit(1)
	got := headroom()
	debug.SetMemoryLimit(math.MaxInt64)
	if got != 0 {
		t.Errorf("headroom() over the limit = %d, want 0", got)
	}
}

func TestMemoryLimitSkipsFrame(t *testing.T) {
	old := debug.SetMemoryLimit(1)
	defer debug.SetMemoryLimit(old)

	s := New(MemoryHeadroom())
	fill(s, BufferSize, MaxAmplitude)
	debug.SetMemoryLimit(old)

	if s.Overflows() != 1 {
		t.Errorf("Overflows() = %d, want 1 when the process is over its memory limit", s.Overflows())
	}
}

func TestTapFeedsLeftChannel(t *testing.T) {
	s := New(nil)
	src := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			samples[i] = [2]float64{float64(MaxAmplitude) / 32767, 0}
		}
		return len(samples), true
	})

	tap := NewTap(src, s)
	buf := make([][2]float64, BufferSize)
	n, ok := tap.Stream(buf)
	if n != BufferSize || !ok {
		t.Fatalf("Stream() = (%d, %v), want (%d, true)", n, ok, BufferSize)
	}
	if tap.Err() != nil {
		t.Errorf("Err() = %v, want nil", tap.Err())
	}
	if got := s.Bands()[0]; got != BandHeight {
		t.Errorf("band[0] = %d, want %d", got, BandHeight)
	}
}

func TestToInt16Clamps(t *testing.T) {
	tests := []struct {
		in   float64
		want int16
	}{
		{0, 0},
		{1, 32767},
		{2, 32767},
		{-2, -32768},
		{0.5, 16384},
	}
	for _, tt := range tests {
		if got := toInt16(tt.in); got != tt.want {
			t.Errorf("toInt16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func constant(n int, v int16) []int16 {
	data := make([]int16, n)
	for i := range data {
		data[i] = v
	}
	return data
}
