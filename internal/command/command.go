// Package command carries control requests from the web API and the front panel to the
// playback loop, which is the only place they are applied.
package command

import (
	"fmt"
)

// DefaultQueueSize is the number of commands that may be pending at once.
const DefaultQueueSize = 10

type Kind int

const (
	KindVolume Kind = iota
	KindNextStation
	KindPreviousStation
	KindReboot
	KindSaveStations
)

func (k Kind) String() string {
	switch k {
	case KindVolume:
		return "VOLUME"
	case KindNextStation:
		return "NEXT_STATION"
	case KindPreviousStation:
		return "PREVIOUS_STATION"
	case KindReboot:
		return "REBOOT"
	case KindSaveStations:
		return "SAVE_STATIONS"
	default:
		return "UNKNOWN"
	}
}

// Command is a single control request. Value is only meaningful for KindVolume.
type Command struct {
	Kind  Kind
	Value float64
}

func (c Command) String() string {
	if c.Kind == KindVolume {
		return fmt.Sprintf("%s(%.2f)", c.Kind, c.Value)
	}
	return c.Kind.String()
}

func Volume(v float64) Command { return Command{Kind: KindVolume, Value: v} }
func Next() Command            { return Command{Kind: KindNextStation} }
func Previous() Command        { return Command{Kind: KindPreviousStation} }
func Reboot() Command          { return Command{Kind: KindReboot} }
func SaveStations() Command    { return Command{Kind: KindSaveStations} }

// Queue is a bounded FIFO that any goroutine may enqueue into without blocking.
type Queue struct {
	ch chan Command
}

// NewQueue creates a queue holding up to size commands. A non-positive size selects
// DefaultQueueSize.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan Command, size)}
}

// Enqueue adds cmd and reports false immediately when the queue is full.
func (q *Queue) Enqueue(cmd Command) bool {
	select {
	case q.ch <- cmd:
		return true
	default:
		return false
	}
}

// Drain applies the commands pending when it is called, in FIFO order, and returns how
// many were applied. Commands enqueued while fn runs are left for the next call.
func (q *Queue) Drain(fn func(Command)) int {
	pending := len(q.ch)
	for i := range pending {
		select {
		case cmd := <-q.ch:
			fn(cmd)
		default:
			return i
		}
	}
	return pending
}

// Len reports the number of pending commands.
func (q *Queue) Len() int {
	return len(q.ch)
}

func (q *Queue) Cap() int {
	return cap(q.ch)
}
