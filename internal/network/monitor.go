// Package network tracks whether the device can reach the internet by probing a
// connectivity-check endpoint.
package network

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/glebovdev/radiobox/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	probeTimeout        = 5 * time.Second
	reconnectRetries    = 5
	reconnectRetryWait  = 2 * time.Second
	reconnectMaxBackoff = 10 * time.Second

	// downAfter is how many checks in a row must fail before the link is reported down.
	downAfter = 2
)

var ErrProbeFailed = errors.New("connectivity probe failed")

// Monitor periodically probes a URL and exposes the outcome as the link state.
type Monitor struct {
	client    *resty.Client
	reconnect *resty.Client
	probeURL  string
	interval  time.Duration

	connected atomic.Bool
	failures  atomic.Uint64
	streak    atomic.Int32
}

// NewMonitor creates a monitor for probeURL. An empty URL disables probing and the link
// is always reported as up.
func NewMonitor(probeURL string, interval time.Duration) *Monitor {
	userAgent := fmt.Sprintf("%s/%s", config.AppName, config.AppVersion)

	m := &Monitor{
		client: resty.New().
			SetTimeout(probeTimeout).
			SetHeader("User-Agent", userAgent),
		reconnect: resty.New().
			SetTimeout(probeTimeout).
			SetHeader("User-Agent", userAgent).
			SetRetryCount(reconnectRetries).
			SetRetryWaitTime(reconnectRetryWait).
			SetRetryMaxWaitTime(reconnectMaxBackoff).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || !r.IsSuccess()
			}),
		probeURL: probeURL,
		interval: interval,
	}
	m.connected.Store(true)
	return m
}

// Connected reports whether the link is up. It goes down after downAfter failed checks
// in a row or one failed Reconnect, and comes back on the first success.
func (m *Monitor) Connected() bool {
	return m.connected.Load()
}

// ProbeFailures counts failed probes since start.
func (m *Monitor) ProbeFailures() uint64 {
	return m.failures.Load()
}

// Probe checks connectivity once and updates the link state. A request cut short by ctx
// leaves the state untouched.
func (m *Monitor) Probe(ctx context.Context) error {
	err := m.get(ctx, m.client)
	if ctx.Err() == nil {
		m.record(err, downAfter)
	}
	return err
}

// Reconnect drops pooled connections and probes with retries until the link answers or
// ctx is done.
func (m *Monitor) Reconnect(ctx context.Context) error {
	log.Info().Msg("Reconnecting network")
	m.client.GetClient().CloseIdleConnections()
	m.reconnect.GetClient().CloseIdleConnections()

	err := m.get(ctx, m.reconnect)
	if ctx.Err() == nil {
		m.record(err, 1)
	}
	if err != nil {
		return fmt.Errorf("failed to reconnect: %w", err)
	}
	return nil
}

func (m *Monitor) get(ctx context.Context, client *resty.Client) error {
	if m.probeURL == "" {
		return nil
	}

	resp, err := client.R().SetContext(ctx).Get(m.probeURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProbeFailed, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%w: status %d", ErrProbeFailed, resp.StatusCode())
	}
	return nil
}

func (m *Monitor) record(err error, threshold int32) {
	up := err == nil
	if up {
		m.streak.Store(0)
	} else {
		m.failures.Add(1)
		if m.streak.Add(1) < threshold {
			log.Debug().Err(err).Msg("Connectivity check failed")
			return
		}
	}
	if m.connected.Swap(up) != up {
		if up {
			log.Info().Msg("Network link up")
		} else {
			log.Warn().Err(err).Msg("Network link down")
		}
	}
}

// Run probes at the configured interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	if m.probeURL == "" {
		log.Debug().Msg("Connectivity probe disabled")
		return
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	_ = m.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = m.Probe(ctx)
		}
	}
}
