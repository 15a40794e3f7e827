// Package appliance runs the cooperative control loop of the device. One goroutine owns
// playback and recovery state and advances them from Tick; web handlers and the front
// panel talk to it only through the station registry and the command queue.
package appliance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glebovdev/radiobox/internal/command"
	"github.com/glebovdev/radiobox/internal/config"
	"github.com/glebovdev/radiobox/internal/metrics"
	"github.com/glebovdev/radiobox/internal/player"
	"github.com/glebovdev/radiobox/internal/recovery"
	"github.com/glebovdev/radiobox/internal/sampler"
	"github.com/glebovdev/radiobox/internal/station"
	"github.com/rs/zerolog/log"
)

const (
	TickInterval      = 5 * time.Millisecond
	BusyResetAfter    = 200 * time.Millisecond
	VolumeSaveDelay   = 5 * time.Second
	StatusLogInterval = 60 * time.Second
)

// ErrRebootRequested is returned by Run when the device must be restarted by its supervisor.
var ErrRebootRequested = errors.New("restart requested")

var ErrUnknownVisualizer = errors.New("unknown visualizer style")

// Options wires the appliance to its collaborators. Sampler and Metrics may be nil.
type Options struct {
	Config       *config.Config
	StationsPath string
	Registry     *station.Registry
	Queue        *command.Queue
	Opener       player.Opener
	Link         recovery.Link
	Sampler      *sampler.Sampler
	Metrics      *metrics.Metrics
}

// Status is the snapshot published after every tick.
type Status struct {
	Playback   player.Status   `json:"playback"`
	Recovery   recovery.Status `json:"recovery"`
	Stations   int             `json:"stations"`
	Queued     int             `json:"queued"`
	Visualizer string          `json:"visualizer"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type Appliance struct {
	cfgMu        sync.Mutex
	cfg          *config.Config
	stationsPath string

	registry *station.Registry
	queue    *command.Queue
	player   *player.Player
	recovery *recovery.Controller
	sampler  *sampler.Sampler
	metrics  *metrics.Metrics
	link     recovery.Link

	// busy is set by web handlers serving large payloads and cleared by the tick loop.
	busy      atomic.Bool
	busySince time.Time

	status     atomic.Pointer[Status]
	visualizer atomic.Pointer[string]

	// owned by the tick goroutine
	lastRecovery    time.Time
	lastStatusLog   time.Time
	volumeDirty     bool
	volumeChangedAt time.Time
	savedStation    string
	prevState       player.State
	rebootRequested bool
}

func New(opts Options) *Appliance {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	queue := opts.Queue
	if queue == nil {
		queue = command.NewQueue(cfg.QueueSize)
	}

	a := &Appliance{
		cfg:          cfg,
		stationsPath: opts.StationsPath,
		registry:     opts.Registry,
		queue:        queue,
		sampler:      opts.Sampler,
		metrics:      opts.Metrics,
		link:         opts.Link,
		savedStation: cfg.LastStation,
	}

	a.recovery = recovery.New(opts.Link, recovery.SettingsFromConfig(cfg.Recovery), a.resetPlayback, a.requestReboot)
	a.player = player.New(player.TimingFromConfig(cfg.Playback), opts.Registry, opts.Opener, a.recovery)
	a.player.SetVolume(cfg.Volume)

	if i := opts.Registry.IndexOf(cfg.LastStation); i >= 0 {
		opts.Registry.SetCurrent(i)
		log.Debug().Msgf("Restored last station: %s", cfg.LastStation)
	}

	style := cfg.Visualizer
	a.visualizer.Store(&style)
	a.publish(time.Now())
	return a
}

// Run ticks until ctx is cancelled or a restart is requested.
func (a *Appliance) Run(ctx context.Context) error {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	defer a.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			a.Tick(now)
			if a.rebootRequested {
				return ErrRebootRequested
			}
		}
	}
}

// Tick runs one iteration of the control loop: pending commands, playback unless a web
// handler holds the busy flag, then recovery at its own cadence.
func (a *Appliance) Tick(now time.Time) {
	a.queue.Drain(func(cmd command.Command) {
		a.apply(cmd, now)
	})

	if a.busy.Load() {
		if a.busySince.IsZero() {
			a.busySince = now
		}
		if now.Sub(a.busySince) > BusyResetAfter {
			a.busy.Store(false)
			a.busySince = time.Time{}
		}
	} else {
		a.busySince = time.Time{}
		a.player.Tick(now)
	}

	if now.Sub(a.lastRecovery) >= a.cfg.Recovery.CheckInterval {
		a.recovery.Evaluate(now)
		a.lastRecovery = now
	}

	a.observe()
	a.persist(now)

	if now.Sub(a.lastStatusLog) >= StatusLogInterval {
		a.logStatus()
		a.lastStatusLog = now
	}
	a.publish(now)
}

func (a *Appliance) apply(cmd command.Command, now time.Time) {
	log.Debug().Msgf("Command: %s", cmd)
	if a.metrics != nil {
		a.metrics.IncCommand(cmd.Kind.String())
	}

	switch cmd.Kind {
	case command.KindVolume:
		a.player.SetVolume(cmd.Value)
		a.volumeDirty = true
		a.volumeChangedAt = now
	case command.KindNextStation:
		a.player.Next()
	case command.KindPreviousStation:
		a.player.Previous()
	case command.KindReboot:
		log.Warn().Msg("Restart requested")
		a.rebootRequested = true
	case command.KindSaveStations:
		if err := a.saveStations(); err != nil {
			log.Error().Err(err).Msg("Failed to save stations")
		} else {
			log.Info().Int("count", a.registry.Len()).Msg("Stations saved")
		}
	default:
		log.Warn().Msgf("Unknown command: %s", cmd)
	}
}

// observe reacts to playback transitions made during this tick.
func (a *Appliance) observe() {
	state := a.player.State()
	if state == a.prevState {
		return
	}
	if state == player.StateError && a.metrics != nil {
		a.metrics.IncStationFailures()
	}
	if a.prevState == player.StatePlaying && a.sampler != nil {
		a.sampler.Reset()
	}
	a.prevState = state
}

func (a *Appliance) persist(now time.Time) {
	changed := false

	if a.volumeDirty && now.Sub(a.volumeChangedAt) >= VolumeSaveDelay {
		a.volumeDirty = false
		changed = true
	}

	if a.player.State() == player.StatePlaying {
		if name := a.player.Status().Station; name != a.savedStation {
			a.savedStation = name
			changed = true
		}
	}

	if changed {
		if err := a.saveConfig(); err != nil {
			log.Error().Err(err).Msg("Failed to save config")
		}
	}
}

func (a *Appliance) saveConfig() error {
	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()

	a.cfg.Volume = a.player.Volume()
	a.cfg.LastStation = a.savedStation
	return a.cfg.Save()
}

func (a *Appliance) saveStations() error {
	if a.stationsPath == "" {
		return fmt.Errorf("no stations file configured")
	}
	return config.SaveStations(a.stationsPath, station.Records(a.registry.Snapshot()))
}

func (a *Appliance) resetPlayback() {
	a.player.Reset()
	if a.sampler != nil {
		a.sampler.Reset()
	}
}

func (a *Appliance) requestReboot() {
	a.rebootRequested = true
}

func (a *Appliance) shutdown() {
	a.player.Reset()
	a.recovery.Close()
	if a.volumeDirty {
		a.volumeDirty = false
		if err := a.saveConfig(); err != nil {
			log.Error().Err(err).Msg("Failed to save config on shutdown")
		}
	}
	log.Info().Msg("Appliance stopped")
}

func (a *Appliance) logStatus() {
	st := a.player.Status()
	rs := a.recovery.Status()

	event := log.Info().
		Str("playback", st.State.String()).
		Str("recovery", rs.State.String()).
		Int("stations", a.registry.Len())
	if st.Station != "" {
		event = event.Str("station", st.Station).Bool("available", st.Available)
	}
	if a.sampler != nil {
		event = event.Uint64("sample_overflows", a.sampler.Overflows())
	}
	event.Float64("volume", st.Volume).Msg("Status")
}

func (a *Appliance) publish(now time.Time) {
	a.status.Store(&Status{
		Playback:   a.player.Status(),
		Recovery:   a.recovery.Status(),
		Stations:   a.registry.Len(),
		Queued:     a.queue.Len(),
		Visualizer: a.Visualizer(),
		UpdatedAt:  now,
	})
}

// Status returns the snapshot published by the last tick. Safe from any goroutine.
func (a *Appliance) Status() Status {
	if st := a.status.Load(); st != nil {
		return *st
	}
	return Status{}
}

// Enqueue submits a command without blocking. It reports false when the queue is full.
func (a *Appliance) Enqueue(cmd command.Command) bool {
	if a.queue.Enqueue(cmd) {
		return true
	}
	log.Warn().Msgf("Command queue full, dropped %s", cmd)
	if a.metrics != nil {
		a.metrics.IncDroppedCommands()
	}
	return false
}

// MarkBusy pauses the playback tick until the tick loop clears the flag.
func (a *Appliance) MarkBusy() {
	a.busy.Store(true)
}

func (a *Appliance) Busy() bool {
	return a.busy.Load()
}

func (a *Appliance) Registry() *station.Registry {
	return a.registry
}

// Bands returns the latest visualizer bands, or zeros without a sampler.
func (a *Appliance) Bands() sampler.Bands {
	if a.sampler == nil {
		return sampler.Bands{}
	}
	return a.sampler.Bands()
}

// DecodingActive reports whether the tick goroutine is inside a decode step.
func (a *Appliance) DecodingActive() bool {
	return a.player.DecodingActive()
}

func (a *Appliance) Visualizer() string {
	if v := a.visualizer.Load(); v != nil {
		return *v
	}
	return config.DefaultVisualizer
}

// SetVisualizer switches the band renderer and persists the choice.
func (a *Appliance) SetVisualizer(name string) error {
	if !config.ValidVisualizer(name) {
		return fmt.Errorf("%w: %q", ErrUnknownVisualizer, name)
	}
	a.visualizer.Store(&name)

	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()
	a.cfg.Visualizer = name
	if err := a.cfg.Save(); err != nil {
		return fmt.Errorf("failed to save visualizer style: %w", err)
	}
	log.Info().Msgf("Visualizer style: %s", name)
	return nil
}

// UpdateMetrics refreshes the gauges from the latest snapshot. It is the scrape hook of
// the metrics handler.
func (a *Appliance) UpdateMetrics() {
	if a.metrics == nil {
		return
	}
	st := a.Status()
	snap := metrics.Snapshot{
		PlaybackState: int(st.Playback.State),
		RecoveryState: int(st.Recovery.State),
		Volume:        st.Playback.Volume,
		BufferPercent: st.Playback.BufferPercent,
		Stations:      st.Stations,
	}
	if a.sampler != nil {
		snap.SampleOverflows = a.sampler.Overflows()
	}
	if p, ok := a.link.(interface{ ProbeFailures() uint64 }); ok {
		snap.ProbeFailures = p.ProbeFailures()
	}
	a.metrics.Update(snap)
}
