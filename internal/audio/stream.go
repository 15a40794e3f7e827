// Package audio connects a station URL to the speaker: HTTP source, byte prebuffer,
// MP3 decoder, gain and output.
package audio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glebovdev/radiobox/internal/config"
	"github.com/glebovdev/radiobox/internal/player"
	"github.com/glebovdev/radiobox/internal/sampler"
	"github.com/glebovdev/radiobox/internal/urlguard"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/rs/zerolog/log"
)

const (
	NetworkReadSize   = 16384
	SampleChannelSize = 8192
	decodeBatch       = 4096
	maxMetadataLength = 4080
	fadeInDuration    = 50 * time.Millisecond
	maxRedirects      = 10
)

type httpStatusError struct {
	StatusCode int
	Status     string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("stream returned status %d: %s", e.StatusCode, e.Status)
}

// Opener builds a Stream per station. It is safe for concurrent use.
type Opener struct {
	client      *http.Client
	out         Output
	sampler     *sampler.Sampler
	bufferBytes int
	readTimeout time.Duration
}

// NewOpener creates an opener writing to out. s may be nil when no visualizer is attached.
func NewOpener(out Output, s *sampler.Sampler, cfg config.Playback) *Opener {
	client := &http.Client{
		Timeout: 0, // streams are long-lived
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 15 * time.Second,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			DisableCompression:    true,
		},
		CheckRedirect: checkRedirect,
	}

	return &Opener{
		client:      client,
		out:         out,
		sampler:     s,
		bufferBytes: cfg.BufferBytes,
		readTimeout: cfg.ReadTimeout,
	}
}

// checkRedirect applies the station address rules to every redirect target.
func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if result := urlguard.Validate(req.URL.String()); result != urlguard.Valid {
		return fmt.Errorf("redirect to %s refused: %w", urlguard.SanitizeForLog(req.URL.String()), result.Err())
	}
	return nil
}

// Open starts connecting to url in the background and returns immediately.
func (o *Opener) Open(url string) (player.Pipeline, error) {
	if o.bufferBytes <= 0 {
		return nil, fmt.Errorf("invalid prebuffer size %d", o.bufferBytes)
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Stream{
		ctx:     ctx,
		cancel:  cancel,
		out:     o.out,
		sampler: o.sampler,
		buf:     newPrebuffer(o.bufferBytes),
		ready:   make(chan struct{}),
		gain:    config.DefaultVolume,
	}

	go s.fetch(o.client, req.WithContext(ctx), o.readTimeout)
	go s.decodeHeader()
	return s, nil
}

// Stream is one playback session. The tick goroutine calls its player.Pipeline methods;
// the speaker goroutine pulls samples through output.
type Stream struct {
	ctx     context.Context
	cancel  context.CancelFunc
	out     Output
	sampler *sampler.Sampler
	buf     *prebuffer

	// written by decodeHeader before ready is closed
	ready     chan struct{}
	decoder   beep.StreamSeekCloser
	format    beep.Format
	headerErr error

	mu      sync.Mutex
	volume  *effects.Volume
	ctrl    *beep.Ctrl
	gain    float64
	started bool
	playing bool

	sampleCh  chan [2]float64
	ended     atomic.Bool
	closeOnce sync.Once
	title     atomic.Pointer[string]
}

var _ player.Pipeline = (*Stream)(nil)

func (s *Stream) fetch(client *http.Client, req *http.Request, readTimeout time.Duration) {
	req.Header.Set("User-Agent", fmt.Sprintf("%s/%s", config.AppName, config.AppVersion))
	req.Header.Set("Icy-MetaData", "1")

	resp, err := client.Do(req)
	if err != nil {
		s.buf.CloseWrite(fmt.Errorf("failed to fetch stream: %w", err))
		return
	}
	defer resp.Body.Close()

	log.Debug().Msgf("Stream response status: %d, Content-Type: %s", resp.StatusCode, resp.Header.Get("Content-Type"))

	if resp.StatusCode != http.StatusOK {
		s.buf.CloseWrite(&httpStatusError{StatusCode: resp.StatusCode, Status: resp.Status})
		return
	}

	var metaint int
	if val := resp.Header.Get("icy-metaint"); val != "" {
		_, _ = fmt.Sscanf(val, "%d", &metaint)
		log.Debug().Msgf("ICY metadata interval: %d bytes", metaint)
	}

	body := bufio.NewReader(&contextReader{reader: resp.Body, ctx: s.ctx, timeout: readTimeout})
	err = s.copyAudio(body, metaint)
	if s.ctx.Err() != nil {
		return
	}
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, errBufferClosed) {
		log.Warn().Err(err).Msg("Stream read failed")
	}
	s.buf.CloseWrite(err)
}

// copyAudio moves audio bytes into the prebuffer, stripping interleaved ICY metadata blocks.
func (s *Stream) copyAudio(body *bufio.Reader, metaint int) error {
	chunk := int64(metaint)
	if chunk == 0 {
		chunk = NetworkReadSize
	}

	for {
		if _, err := io.CopyN(s.buf, body, chunk); err != nil {
			return err
		}
		if metaint == 0 {
			continue
		}

		lengthByte, err := body.ReadByte()
		if err != nil {
			return err
		}
		length := int(lengthByte) * 16
		if length == 0 {
			continue
		}
		if length > maxMetadataLength {
			log.Warn().Int("metaLen", length).Msg("ICY metadata too large, skipping")
			if _, err := io.CopyN(io.Discard, body, int64(length)); err != nil {
				return err
			}
			continue
		}

		meta := make([]byte, length)
		if _, err := io.ReadFull(body, meta); err != nil {
			return err
		}
		if title, ok := parseStreamTitle(string(meta)); ok {
			s.title.Store(&title)
		}
	}
}

func parseStreamTitle(meta string) (string, bool) {
	const key = "StreamTitle='"
	start := strings.Index(meta, key)
	if start < 0 {
		return "", false
	}
	start += len(key)
	end := strings.Index(meta[start:], "';")
	if end < 0 {
		return "", false
	}
	return meta[start : start+end], true
}

func (s *Stream) decodeHeader() {
	defer close(s.ready)
	decoder, format, err := mp3.Decode(s.buf)
	if err != nil {
		s.headerErr = fmt.Errorf("failed to decode MP3 stream: %w", err)
		return
	}
	s.decoder = decoder
	s.format = format
}

// Begin reports whether the decoder has parsed the stream header. On the first ready
// call the output chain is installed paused.
func (s *Stream) Begin() (bool, error) {
	select {
	case <-s.ready:
	default:
		return false, nil
	}
	if s.headerErr != nil {
		return false, s.headerErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return true, nil
	}

	if err := s.out.Init(s.format.SampleRate); err != nil {
		return false, fmt.Errorf("failed to initialize audio output: %w", err)
	}

	fade := s.format.SampleRate.N(fadeInDuration)
	s.sampleCh = make(chan [2]float64, SampleChannelSize)
	var chain beep.Streamer = &output{stream: s, fadeRemaining: fade, fadeTotal: fade}
	s.volume = &effects.Volume{
		Streamer: chain,
		Base:     2,
		Volume:   volumeToExponent(s.gain),
		Silent:   s.gain <= 0,
	}
	chain = s.volume
	if s.sampler != nil {
		chain = sampler.NewTap(chain, s.sampler)
	}
	s.ctrl = &beep.Ctrl{Streamer: chain, Paused: true}
	s.started = true

	log.Debug().Msgf("Decoder ready (sample rate: %d Hz)", s.format.SampleRate)
	s.out.Play(s.ctrl)
	return true, nil
}

func (s *Stream) Fill() int     { return s.buf.Len() }
func (s *Stream) Capacity() int { return s.buf.Cap() }

// Play unpauses the output and starts draining the prebuffer through the decoder.
func (s *Stream) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.playing {
		return
	}
	s.playing = true

	go s.decode()

	s.out.Lock()
	s.ctrl.Paused = false
	s.out.Unlock()
}

// Step reports whether the stream is still alive.
func (s *Stream) Step() bool {
	return !s.ended.Load() && s.ctx.Err() == nil
}

func (s *Stream) SetGain(v float64) {
	v = config.ClampVolume(v)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gain = v
	if s.volume == nil {
		return
	}
	s.out.Lock()
	s.volume.Volume = volumeToExponent(v)
	s.volume.Silent = v <= 0
	s.out.Unlock()
}

// Title returns the most recent ICY stream title, if any.
func (s *Stream) Title() string {
	if t := s.title.Load(); t != nil {
		return *t
	}
	return ""
}

// Close stops every goroutine of the session and detaches it from the output.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.buf.Close()

		s.mu.Lock()
		started, playing := s.started, s.playing
		s.mu.Unlock()

		if started {
			s.out.Clear()
		}
		if !playing {
			go func() {
				<-s.ready
				if s.decoder != nil {
					_ = s.decoder.Close()
				}
			}()
		}
	})
}

// decode pulls samples off the decoder so the speaker goroutine never blocks on the network.
func (s *Stream) decode() {
	defer func() {
		_ = s.decoder.Close()
		close(s.sampleCh)
		s.ended.Store(true)
		log.Debug().Msg("Decoder goroutine stopped")
	}()

	batch := make([][2]float64, decodeBatch)
	for {
		n, ok := s.decoder.Stream(batch)
		if !ok {
			if err := s.decoder.Err(); err != nil && s.ctx.Err() == nil {
				log.Warn().Err(err).Msg("Stream decoding error")
			}
			return
		}
		for i := 0; i < n; i++ {
			select {
			case <-s.ctx.Done():
				return
			case s.sampleCh <- batch[i]:
			}
		}
	}
}

// output feeds decoded samples to the speaker. An empty channel produces silence instead
// of blocking the speaker lock.
type output struct {
	stream        *Stream
	fadeRemaining int
	fadeTotal     int
	done          bool
}

func (o *output) Stream(samples [][2]float64) (int, bool) {
	filled := 0
fill:
	for !o.done && filled < len(samples) {
		select {
		case sample, more := <-o.stream.sampleCh:
			if !more {
				o.done = true
				break fill
			}
			samples[filled] = sample
			filled++
		default:
			break fill
		}
	}

	for i := filled; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}

	for i := 0; i < filled && o.fadeRemaining > 0; i++ {
		scale := float64(o.fadeTotal-o.fadeRemaining) / float64(o.fadeTotal)
		samples[i][0] *= scale
		samples[i][1] *= scale
		o.fadeRemaining--
	}

	return len(samples), true
}

func (o *output) Err() error { return nil }

// contextReader bounds every Read by timeout. The spawned read goroutine is released when
// ctx is cancelled.
type contextReader struct {
	reader  io.Reader
	ctx     context.Context
	timeout time.Duration
}

func (cr *contextReader) Read(p []byte) (int, error) {
	select {
	case <-cr.ctx.Done():
		return 0, cr.ctx.Err()
	default:
	}
	if cr.timeout <= 0 {
		return cr.reader.Read(p)
	}

	timer := time.NewTimer(cr.timeout)
	defer timer.Stop()

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)

	go func() {
		n, err := cr.reader.Read(p)
		done <- result{n, err}
	}()

	select {
	case res := <-done:
		return res.n, res.err
	case <-timer.C:
		return 0, fmt.Errorf("read timeout: no data received for %v", cr.timeout)
	case <-cr.ctx.Done():
		return 0, cr.ctx.Err()
	}
}
