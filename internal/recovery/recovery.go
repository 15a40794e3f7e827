// Package recovery watches the network link and escalates from waiting, to an explicit
// reconnect, to a supervised restart when the link stays down.
package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/glebovdev/radiobox/internal/config"
	"github.com/rs/zerolog/log"
)

type State int

const (
	StateOk State = iota
	StateAutoReconnecting
	StateManualReconnecting
	StateFailedRebooting
)

func (s State) String() string {
	switch s {
	case StateOk:
		return "OK"
	case StateAutoReconnecting:
		return "AUTO_RECONNECTING"
	case StateManualReconnecting:
		return "MANUAL_RECONNECTING"
	case StateFailedRebooting:
		return "FAILED_REBOOTING"
	default:
		return "UNKNOWN"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Link is the network connection being supervised.
type Link interface {
	Connected() bool
	// Reconnect actively re-establishes the connection. It may block until ctx is done.
	Reconnect(ctx context.Context) error
}

type Settings struct {
	AutoInterval    time.Duration
	AutoChecks      int
	ManualWindow    time.Duration
	RebootCountdown int
}

func SettingsFromConfig(r config.Recovery) Settings {
	return Settings{
		AutoInterval:    r.AutoInterval,
		AutoChecks:      r.AutoChecks,
		ManualWindow:    r.ManualWindow,
		RebootCountdown: r.RebootCountdown,
	}
}

// budget is the time from disconnect after which the device gives up and restarts.
func (s Settings) budget() time.Duration {
	return time.Duration(s.AutoChecks)*s.AutoInterval + s.ManualWindow
}

// Status is a read-only view of the controller.
type Status struct {
	State     State  `json:"state"`
	Checks    int    `json:"checks"`
	Countdown int    `json:"countdown"`
	Message   string `json:"message"`
}

// Controller is owned by the tick goroutine; only Evaluate's reconnect attempt runs elsewhere.
type Controller struct {
	link     Link
	settings Settings
	// resetPlayback stops the audio session; restart requests the supervised restart.
	resetPlayback func()
	restart       func()

	state          State
	disconnectedAt time.Time
	lastCheck      time.Time
	checks         int
	countdown      int
	lastCountdown  time.Time
	restarted      bool

	manualResult chan error
	manualCancel context.CancelFunc
}

func New(link Link, settings Settings, resetPlayback, restart func()) *Controller {
	if resetPlayback == nil {
		resetPlayback = func() {}
	}
	if restart == nil {
		restart = func() {}
	}
	return &Controller{
		link:          link,
		settings:      settings,
		resetPlayback: resetPlayback,
		restart:       restart,
		state:         StateOk,
	}
}

func (c *Controller) State() State {
	return c.state
}

// Allowed reports whether playback may open new connections.
func (c *Controller) Allowed() bool {
	return c.state == StateOk && c.link.Connected()
}

func (c *Controller) Status() Status {
	return Status{
		State:     c.state,
		Checks:    c.checks,
		Countdown: c.countdown,
		Message:   c.message(),
	}
}

func (c *Controller) message() string {
	switch c.state {
	case StateAutoReconnecting:
		return fmt.Sprintf("Network lost, reconnecting (%d/%d)", c.checks, c.settings.AutoChecks)
	case StateManualReconnecting:
		return "Manual reconnect..."
	case StateFailedRebooting:
		return fmt.Sprintf("Network error, restarting in %ds", c.countdown)
	default:
		return ""
	}
}

// Evaluate advances the controller. It is meant to run every few hundred milliseconds
// and never blocks.
func (c *Controller) Evaluate(now time.Time) {
	switch c.state {
	case StateOk:
		if c.link.Connected() {
			return
		}
		c.disconnectedAt = now
		c.lastCheck = now
		c.checks = 0
		log.Warn().Msg("Network lost, waiting for automatic reconnect")
		c.setState(StateAutoReconnecting)
		c.resetPlayback()

	case StateAutoReconnecting:
		if c.link.Connected() {
			log.Info().Dur("downtime", now.Sub(c.disconnectedAt)).Msg("Network restored automatically")
			c.setState(StateOk)
			return
		}
		if now.Sub(c.lastCheck) < c.settings.AutoInterval {
			return
		}
		c.lastCheck = now
		c.checks++
		log.Info().Msgf("Auto reconnect check %d/%d", c.checks, c.settings.AutoChecks)
		if c.checks >= c.settings.AutoChecks {
			log.Warn().Msg("Automatic reconnect failed, reconnecting manually")
			c.resetPlayback()
			c.setState(StateManualReconnecting)
			c.startManual(now)
		}

	case StateManualReconnecting:
		select {
		case err := <-c.manualResult:
			c.stopManual()
			if err == nil {
				log.Info().Dur("downtime", now.Sub(c.disconnectedAt)).Msg("Network restored by manual reconnect")
				c.setState(StateOk)
				return
			}
			log.Error().Err(err).Msg("Manual reconnect failed")
			c.fail(now)
			return
		default:
		}

		if c.link.Connected() {
			c.stopManual()
			log.Info().Msg("Network restored during manual reconnect")
			c.setState(StateOk)
			return
		}
		if now.Sub(c.disconnectedAt) > c.settings.budget() {
			c.stopManual()
			log.Error().Dur("elapsed", now.Sub(c.disconnectedAt)).Msg("Manual reconnect timed out")
			c.fail(now)
		}

	case StateFailedRebooting:
		if c.restarted || now.Sub(c.lastCountdown) < time.Second {
			return
		}
		c.lastCountdown = now
		c.countdown--
		log.Warn().Msgf("Restarting in %d s...", c.countdown)
		if c.countdown <= 0 {
			c.restarted = true
			log.Error().Msg("Network unrecoverable, restarting")
			c.restart()
		}
	}
}

func (c *Controller) startManual(now time.Time) {
	remaining := c.settings.budget() - now.Sub(c.disconnectedAt)
	ctx, cancel := context.WithTimeout(context.Background(), max(remaining, time.Second))
	result := make(chan error, 1)
	c.manualCancel = cancel
	c.manualResult = result

	link := c.link
	go func() {
		result <- link.Reconnect(ctx)
	}()
}

func (c *Controller) stopManual() {
	if c.manualCancel != nil {
		c.manualCancel()
		c.manualCancel = nil
	}
	c.manualResult = nil
}

func (c *Controller) fail(now time.Time) {
	c.countdown = c.settings.RebootCountdown
	c.lastCountdown = now
	log.Error().Msgf("Network recovery failed, restarting in %d s", c.countdown)
	c.setState(StateFailedRebooting)
}

// Close abandons any reconnect in progress.
func (c *Controller) Close() {
	c.stopManual()
}

func (c *Controller) setState(state State) {
	if c.state != state {
		log.Debug().Msgf("Recovery state: %s -> %s", c.state.String(), state.String())
		c.state = state
	}
}
