// Package player drives the audio session for the current station: connect, start the
// decoder, prebuffer, play, and fail over to the next station on error. It is advanced by
// Tick from a single goroutine and never blocks.
package player

import (
	"sync/atomic"
	"time"

	"github.com/glebovdev/radiobox/internal/config"
	"github.com/glebovdev/radiobox/internal/station"
	"github.com/glebovdev/radiobox/internal/urlguard"
	"github.com/rs/zerolog/log"
)

// Timing controls the start-up sequence of a stream.
type Timing struct {
	SettleDelay      time.Duration
	ConnectTimeout   time.Duration // covers Connecting and Starting together
	StartTimeout     time.Duration
	PrebufferTimeout time.Duration
	PrebufferPercent int
}

// TimingFromConfig converts the playback section of the device configuration.
func TimingFromConfig(p config.Playback) Timing {
	return Timing{
		SettleDelay:      p.SettleDelay,
		ConnectTimeout:   p.ConnectTimeout,
		StartTimeout:     p.StartTimeout,
		PrebufferTimeout: p.PrebufferTimeout,
		PrebufferPercent: p.PrebufferPercent,
	}
}

// Status is a read-only view of the session.
type Status struct {
	State         State     `json:"state"`
	Station       string    `json:"station"`
	Index         int       `json:"index"`
	Available     bool      `json:"available"`
	Volume        float64   `json:"volume"`
	Since         time.Time `json:"since"`
	BufferPercent int       `json:"buffer_percent"`
	LastActivity  time.Time `json:"last_activity"`
	Title         string    `json:"title,omitempty"`
}

type Player struct {
	timing   Timing
	registry *station.Registry
	opener   Opener
	gate     Gate

	state        State
	since        time.Time
	connectStart time.Time
	lastActivity time.Time
	station      station.Station
	index        int
	pipeline     Pipeline
	volume       float64

	// decoding is written by the tick goroutine and read by the display refresh.
	decoding  atomic.Bool
	switching atomic.Bool
}

func New(timing Timing, registry *station.Registry, opener Opener, gate Gate) *Player {
	return &Player{
		timing:   timing,
		registry: registry,
		opener:   opener,
		gate:     gate,
		state:    StateIdle,
		volume:   config.DefaultVolume,
	}
}

func (p *Player) State() State {
	return p.state
}

// DecodingActive reports whether a decode step is running right now.
func (p *Player) DecodingActive() bool {
	return p.decoding.Load()
}

func (p *Player) Volume() float64 {
	return p.volume
}

// SetVolume clamps v to [0, 1] and applies it to the live pipeline, if any.
func (p *Player) SetVolume(v float64) {
	p.volume = config.ClampVolume(v)
	if p.pipeline != nil {
		p.pipeline.SetGain(p.volume)
	}
	p.lastActivity = time.Now()
	log.Debug().Msgf("Volume set to %.2f", p.volume)
}

func (p *Player) Status() Status {
	st := Status{
		State:        p.state,
		Station:      p.station.Name,
		Index:        p.index,
		Volume:       p.volume,
		Since:        p.since,
		LastActivity: p.lastActivity,
	}

	if p.state == StateIdle {
		if cur, ok := p.registry.Current(); ok {
			st.Station = cur.Name
			st.Index = p.registry.CurrentIndex()
		}
	}
	for _, s := range p.registry.Snapshot() {
		if s.Name == st.Station {
			st.Available = s.Available
			break
		}
	}

	if p.pipeline != nil {
		if capacity := p.pipeline.Capacity(); capacity > 0 {
			st.BufferPercent = min(p.pipeline.Fill()*100/capacity, 100)
		}
		if t, ok := p.pipeline.(Titler); ok && p.state == StatePlaying {
			st.Title = t.Title()
		}
	}
	return st
}

// Tick advances the state machine by at most one transition.
func (p *Player) Tick(now time.Time) {
	if p.registry.Len() == 0 {
		if p.state != StateIdle {
			log.Info().Msg("Station list is empty, stopping playback")
			p.Reset()
		}
		return
	}

	if p.state != StateIdle && p.currentChanged() {
		log.Info().Str("station", p.station.Name).Msg("Current station changed, restarting session")
		p.Reset()
		return
	}

	switch p.state {
	case StateIdle:
		p.tickIdle(now)
	case StateConnecting:
		p.tickConnecting(now)
	case StateStarting:
		p.tickStarting(now)
	case StateBuffering:
		p.tickBuffering(now)
	case StatePlaying:
		p.tickPlaying(now)
	case StateError:
		p.tickError(now)
	}
}

func (p *Player) currentChanged() bool {
	cur, ok := p.registry.Current()
	return !ok || cur.Name != p.station.Name || cur.URL != p.station.URL
}

func (p *Player) tickIdle(now time.Time) {
	if !p.gate.Allowed() {
		return
	}
	cur, ok := p.registry.Current()
	if !ok {
		return
	}

	p.station = cur
	p.index = p.registry.CurrentIndex()
	p.connectStart = now
	log.Info().Str("station", cur.Name).Msg("Connecting")
	p.setState(StateConnecting, now)
}

func (p *Player) tickConnecting(now time.Time) {
	if !p.gate.Allowed() {
		p.Reset()
		return
	}
	if p.connectTimedOut(now) {
		return
	}
	if now.Sub(p.since) < p.timing.SettleDelay {
		return
	}

	safeURL := urlguard.SanitizeForLog(p.station.URL)
	if result := urlguard.Validate(p.station.URL); result != urlguard.Valid {
		log.Warn().Str("url", safeURL).Str("reason", result.Message()).Msg("Invalid station URL")
		p.markUnavailable()
		p.setState(StateError, now)
		return
	}
	log.Debug().Str("url", safeURL).Msg("Opening stream")

	pipeline, err := p.opener.Open(p.station.URL)
	if err != nil {
		log.Error().Err(err).Str("url", safeURL).Msg("Failed to open stream")
		p.setState(StateError, now)
		return
	}
	p.pipeline = pipeline
	p.setState(StateStarting, now)
}

func (p *Player) tickStarting(now time.Time) {
	if !p.gate.Allowed() {
		p.Reset()
		return
	}

	ready, err := p.pipeline.Begin()
	if err != nil {
		log.Error().Err(err).Str("station", p.station.Name).Msg("Decoder failed to start")
		p.setState(StateError, now)
		return
	}
	if ready {
		p.pipeline.SetGain(p.volume)
		log.Debug().Msg("Decoder ready, filling buffer")
		p.setState(StateBuffering, now)
		return
	}

	if now.Sub(p.since) >= p.timing.StartTimeout {
		log.Warn().Str("station", p.station.Name).Msg("Stream start timed out")
		p.setState(StateError, now)
		return
	}
	p.connectTimedOut(now)
}

// connectTimedOut moves to Error once the whole connection phase has run too long.
func (p *Player) connectTimedOut(now time.Time) bool {
	if now.Sub(p.connectStart) < p.timing.ConnectTimeout {
		return false
	}
	log.Warn().Str("station", p.station.Name).Msg("Connection timed out, forcing reset")
	p.setState(StateError, now)
	return true
}

func (p *Player) tickBuffering(now time.Time) {
	fill, capacity := p.pipeline.Fill(), p.pipeline.Capacity()
	if fill >= capacity*p.timing.PrebufferPercent/100 {
		log.Info().Int("fill", fill).Int("capacity", capacity).Msg("Buffer filled, starting playback")
		p.startPlaying(now)
		return
	}
	if now.Sub(p.since) >= p.timing.PrebufferTimeout {
		log.Info().Int("fill", fill).Int("capacity", capacity).Msg("Prebuffer timed out, starting playback anyway")
		p.startPlaying(now)
	}
}

func (p *Player) startPlaying(now time.Time) {
	p.pipeline.Play()
	if i := p.registry.IndexOf(p.station.Name); i >= 0 {
		p.registry.MarkAvailable(i)
	}
	p.lastActivity = now
	p.setState(StatePlaying, now)
}

func (p *Player) tickPlaying(now time.Time) {
	p.decoding.Store(true)
	alive := p.pipeline.Step()
	p.decoding.Store(false)

	if !alive {
		log.Info().Str("station", p.station.Name).Msg("Stream ended")
		p.teardown()
		p.setState(StateIdle, now)
	}
}

func (p *Player) tickError(now time.Time) {
	log.Warn().Str("station", p.station.Name).Msg("Station failed, switching to the next one")
	p.markUnavailable()
	p.teardown()
	next := p.registry.Advance(1)
	log.Debug().Int("index", next).Msg("Failover target selected")
	p.setState(StateIdle, now)
}

func (p *Player) markUnavailable() {
	if i := p.registry.IndexOf(p.station.Name); i >= 0 {
		p.registry.MarkUnavailable(i)
		log.Info().Str("station", p.station.Name).Msg("Station marked unavailable")
	}
}

// Reset tears down any session and returns to Idle. Safe to call in any state.
func (p *Player) Reset() {
	p.teardown()
	p.setState(StateIdle, time.Now())
}

func (p *Player) teardown() {
	if p.pipeline != nil {
		p.pipeline.Close()
		p.pipeline = nil
	}
	p.decoding.Store(false)
}

// Next switches to the next available station. It reports false when the list is empty
// or another switch is in progress.
func (p *Player) Next() bool {
	return p.switchStation(1)
}

// Previous switches to the previous available station.
func (p *Player) Previous() bool {
	return p.switchStation(-1)
}

func (p *Player) switchStation(dir int) bool {
	if !p.switching.CompareAndSwap(false, true) {
		return false
	}
	defer p.switching.Store(false)

	if p.registry.Len() == 0 {
		return false
	}

	old, _ := p.registry.Current()
	p.Reset()
	p.registry.Advance(dir)
	cur, _ := p.registry.Current()
	p.station = cur
	p.lastActivity = time.Now()

	log.Info().Msgf("Station: %s -> %s", old.Name, cur.Name)
	return true
}

func (p *Player) setState(state State, now time.Time) {
	if p.state != state {
		log.Debug().Msgf("Player state: %s -> %s", p.state.String(), state.String())
		p.state = state
	}
	p.since = now
}
