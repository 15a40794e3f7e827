package player

// Opener creates the stream source, buffer and decoder for a station address.
// Open must return promptly; slow work such as connecting belongs in the Pipeline.
type Opener interface {
	Open(url string) (Pipeline, error)
}

// Pipeline is the narrow view the state machine has of a decoder and its output.
// None of the methods may block.
type Pipeline interface {
	// Begin reports whether the decoder is ready to produce audio. It returns false
	// with a nil error while the stream is still being prepared.
	Begin() (bool, error)
	// Fill and Capacity describe the network prebuffer, in bytes.
	Fill() int
	Capacity() int
	// Play releases buffered audio to the output.
	Play()
	// Step advances decoding and reports false once the stream has ended.
	Step() bool
	// SetGain applies a volume in [0, 1].
	SetGain(v float64)
	// Close releases every resource. It must be safe to call more than once.
	Close()
}

// Titler is implemented by pipelines that know what is currently on air.
type Titler interface {
	Title() string
}

// Gate reports whether playback may open new connections.
type Gate interface {
	Allowed() bool
}

// GateFunc adapts a function to Gate.
type GateFunc func() bool

func (f GateFunc) Allowed() bool { return f() }
