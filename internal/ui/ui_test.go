package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/radiobox/internal/appliance"
	"github.com/glebovdev/radiobox/internal/command"
	"github.com/glebovdev/radiobox/internal/config"
	"github.com/glebovdev/radiobox/internal/player"
	"github.com/glebovdev/radiobox/internal/recovery"
	"github.com/glebovdev/radiobox/internal/sampler"
	"github.com/glebovdev/radiobox/internal/station"
)

type fakeDevice struct {
	status     appliance.Status
	bands      sampler.Bands
	decoding   bool
	queue      *command.Queue
	registry   *station.Registry
	visualizer string
}

func newFakeDevice() *fakeDevice {
	reg := station.NewRegistry(10)
	reg.Replace([]station.Station{
		{Name: "alpha", URL: "http://alpha.example.com/stream"},
		{Name: "beta", URL: "http://beta.example.com/stream"},
	})
	return &fakeDevice{
		queue:      command.NewQueue(10),
		registry:   reg,
		visualizer: "bars",
	}
}

func (d *fakeDevice) Status() appliance.Status         { return d.status }
func (d *fakeDevice) Bands() sampler.Bands             { return d.bands }
func (d *fakeDevice) DecodingActive() bool             { return d.decoding }
func (d *fakeDevice) Enqueue(cmd command.Command) bool { return d.queue.Enqueue(cmd) }
func (d *fakeDevice) Registry() *station.Registry      { return d.registry }
func (d *fakeDevice) Visualizer() string               { return d.visualizer }
func (d *fakeDevice) SetVisualizer(name string) error  { d.visualizer = name; return nil }

func (d *fakeDevice) drain() []command.Command {
	var cmds []command.Command
	d.queue.Drain(func(cmd command.Command) { cmds = append(cmds, cmd) })
	return cmds
}

func newTestUI(t *testing.T, dev *fakeDevice) *UI {
	t.Helper()
	ui := NewUI(dev, config.DefaultConfig().Theme)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ui.now = func() time.Time { return now }
	ui.setupUI()
	return ui
}

func runeKey(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestJoinParts(t *testing.T) {
	tests := []struct {
		name     string
		parts    []string
		expected string
	}{
		{name: "empty slice", parts: []string{}, expected: ""},
		{name: "single part", parts: []string{"LIVE"}, expected: "LIVE"},
		{name: "two parts", parts: []string{"● LIVE", "▁▁▁▁▁"}, expected: "● LIVE │ ▁▁▁▁▁"},
		{name: "nil slice", parts: nil, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := joinParts(tt.parts)
			if result != tt.expected {
				t.Errorf("joinParts(%v) = %q, want %q", tt.parts, result, tt.expected)
			}
		})
	}
}

func TestStatusRendererFormatBufferHealth(t *testing.T) {
	renderer := NewStatusRenderer()

	tests := []struct {
		percent  int
		expected string
	}{
		{0, "▁▁▁▁▁"},
		{40, "▁▂▁▁▁"},
		{100, "▁▂▃▅▇"},
		{120, "▁▂▃▅▇"},
	}

	for _, tt := range tests {
		result := renderer.formatBufferHealth(tt.percent)
		if result != tt.expected {
			t.Errorf("formatBufferHealth(%d) = %q, want %q", tt.percent, result, tt.expected)
		}
	}
}

func TestStatusRendererAdvanceAnimation(t *testing.T) {
	renderer := NewStatusRenderer()

	initialFrame := renderer.animFrame

	for i := 0; i < renderer.ticksPerFrame-1; i++ {
		renderer.AdvanceAnimation()
	}

	if renderer.animFrame != initialFrame {
		t.Error("Animation frame changed before ticksPerFrame ticks")
	}

	renderer.AdvanceAnimation()

	if renderer.animFrame != (initialFrame+1)%renderer.maxAnimFrame {
		t.Errorf("Animation frame = %d, want %d",
			renderer.animFrame, (initialFrame+1)%renderer.maxAnimFrame)
	}

	if renderer.tickCount != 0 {
		t.Errorf("tickCount = %d, want 0 after frame advance", renderer.tickCount)
	}
}

func TestStatusRendererRender(t *testing.T) {
	tests := []struct {
		name     string
		status   appliance.Status
		contains string
	}{
		{
			name:     "idle without stations",
			status:   appliance.Status{},
			contains: "no stations",
		},
		{
			name:     "idle",
			status:   appliance.Status{Stations: 2},
			contains: "IDLE",
		},
		{
			name:     "connecting",
			status:   appliance.Status{Playback: player.Status{State: player.StateConnecting}},
			contains: "CONNECTING",
		},
		{
			name:     "buffering shows percent",
			status:   appliance.Status{Playback: player.Status{State: player.StateBuffering, BufferPercent: 12}},
			contains: "12%",
		},
		{
			name:     "playing",
			status:   appliance.Status{Playback: player.Status{State: player.StatePlaying, BufferPercent: 100}},
			contains: "● LIVE",
		},
		{
			name:     "error",
			status:   appliance.Status{Playback: player.Status{State: player.StateError}},
			contains: "UNAVAILABLE",
		},
		{
			name: "reconnecting overrides playback",
			status: appliance.Status{
				Playback: player.Status{State: player.StatePlaying},
				Recovery: recovery.Status{State: recovery.StateAutoReconnecting, Message: "Reconnecting 1/4"},
			},
			contains: "RECONNECTING 1/4",
		},
		{
			name: "reboot countdown",
			status: appliance.Status{
				Recovery: recovery.Status{State: recovery.StateFailedRebooting, Countdown: 3},
			},
			contains: "RESTARTING IN 3s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewStatusRenderer().Render(tt.status)
			if !strings.Contains(result, tt.contains) {
				t.Errorf("Render() = %q, want it to contain %q", result, tt.contains)
			}
		})
	}
}

func TestBandLevel(t *testing.T) {
	tests := []struct {
		value  uint8
		height int
		want   int
	}{
		{0, 10, 0},
		{sampler.BandHeight, 10, 10},
		{sampler.BandHeight / 2, 10, 5},
		{255, 10, 10},
		{sampler.BandHeight, 0, 0},
	}

	for _, tt := range tests {
		if got := bandLevel(tt.value, tt.height); got != tt.want {
			t.Errorf("bandLevel(%d, %d) = %d, want %d", tt.value, tt.height, got, tt.want)
		}
	}
}

func TestBarsRender(t *testing.T) {
	var bands sampler.Bands
	bands[0] = sampler.BandHeight
	bands[1] = sampler.BandHeight / 2

	spans := Bars{}.Render(bands, sampler.BandCount, 8)
	if len(spans) != sampler.BandCount {
		t.Fatalf("len(spans) = %d, want %d", len(spans), sampler.BandCount)
	}
	if spans[0] != (Span{Top: 0, Bottom: 8}) {
		t.Errorf("spans[0] = %+v, want full column", spans[0])
	}
	if spans[1] != (Span{Top: 4, Bottom: 8}) {
		t.Errorf("spans[1] = %+v, want lower half", spans[1])
	}
	if spans[2] != (Span{}) {
		t.Errorf("spans[2] = %+v, want empty", spans[2])
	}
}

func TestMirrorRender(t *testing.T) {
	var bands sampler.Bands
	bands[0] = sampler.BandHeight / 2

	spans := Mirror{}.Render(bands, sampler.BandCount, 8)
	if spans[0] != (Span{Top: 2, Bottom: 6}) {
		t.Errorf("spans[0] = %+v, want centred {2 6}", spans[0])
	}
}

func TestRenderLeavesGapsBetweenWideBands(t *testing.T) {
	var bands sampler.Bands
	for i := range bands {
		bands[i] = sampler.BandHeight
	}

	spans := Bars{}.Render(bands, sampler.BandCount*4, 4)
	for x, span := range spans {
		gap := (x+1)%4 == 0
		if gap && span != (Span{}) {
			t.Errorf("column %d = %+v, want gap", x, span)
		}
		if !gap && span.Bottom-span.Top != 4 {
			t.Errorf("column %d = %+v, want full height", x, span)
		}
	}
}

func TestRenderEmptyArea(t *testing.T) {
	if spans := (Bars{}).Render(sampler.Bands{}, 0, 10); spans != nil {
		t.Errorf("Render(width 0) = %v, want nil", spans)
	}
}

func TestVisualizerFor(t *testing.T) {
	if _, ok := VisualizerFor("mirror").(Mirror); !ok {
		t.Error("VisualizerFor(mirror) is not Mirror")
	}
	if _, ok := VisualizerFor("bars").(Bars); !ok {
		t.Error("VisualizerFor(bars) is not Bars")
	}
	if _, ok := VisualizerFor("unknown").(Bars); !ok {
		t.Error("VisualizerFor(unknown) should fall back to Bars")
	}
}

func TestNextStyle(t *testing.T) {
	styles := []string{"bars", "mirror"}
	tests := []struct {
		current string
		want    string
	}{
		{"bars", "mirror"},
		{"mirror", "bars"},
		{"unknown", "bars"},
	}

	for _, tt := range tests {
		if got := nextStyle(styles, tt.current); got != tt.want {
			t.Errorf("nextStyle(%q) = %q, want %q", tt.current, got, tt.want)
		}
	}
}

func TestVolumeBar(t *testing.T) {
	tests := []struct {
		volume float64
		filled int
	}{
		{0, 0},
		{0.5, 5},
		{1, 10},
		{1.5, 10},
		{-1, 0},
	}

	for _, tt := range tests {
		filled, empty := volumeBar(tt.volume, 10)
		if n := strings.Count(filled, "█"); n != tt.filled {
			t.Errorf("volumeBar(%v) filled = %d, want %d", tt.volume, n, tt.filled)
		}
		if n := strings.Count(empty, "░"); n != 10-tt.filled {
			t.Errorf("volumeBar(%v) empty = %d, want %d", tt.volume, n, 10-tt.filled)
		}
	}
}

func TestNowPlayingText(t *testing.T) {
	tests := []struct {
		name     string
		status   appliance.Status
		contains string
	}{
		{"no stations", appliance.Status{}, "No stations"},
		{"no station yet", appliance.Status{Stations: 1}, "Waiting"},
		{
			"title while live",
			appliance.Status{Playback: player.Status{Station: "alpha", State: player.StatePlaying, Available: true, Title: "Artist - Song"}},
			"Artist - Song",
		},
		{
			"state while starting",
			appliance.Status{Playback: player.Status{Station: "alpha", State: player.StateBuffering, Available: true}},
			"BUFFERING",
		},
		{
			"unavailable",
			appliance.Status{Playback: player.Status{Station: "alpha", State: player.StateError}},
			"unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := nowPlayingText(tt.status, "orange", "red")
			if !strings.Contains(text, tt.contains) {
				t.Errorf("nowPlayingText() = %q, want it to contain %q", text, tt.contains)
			}
		})
	}
}

func TestStationKeysEnqueueCommands(t *testing.T) {
	dev := newFakeDevice()
	ui := newTestUI(t, dev)

	ui.globalInputHandler(runeKey('>'))
	ui.globalInputHandler(runeKey('<'))

	cmds := dev.drain()
	if len(cmds) != 2 {
		t.Fatalf("enqueued %d commands, want 2", len(cmds))
	}
	if cmds[0].Kind != command.KindNextStation || cmds[1].Kind != command.KindPreviousStation {
		t.Errorf("commands = %v, want [NEXT_STATION PREVIOUS_STATION]", cmds)
	}
}

func TestVolumeKeysStepFromPendingValue(t *testing.T) {
	dev := newFakeDevice()
	dev.status.Playback.Volume = 0.5
	ui := newTestUI(t, dev)

	ui.globalInputHandler(runeKey('+'))
	ui.globalInputHandler(runeKey('+'))
	ui.globalInputHandler(tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModNone))

	cmds := dev.drain()
	want := []float64{0.52, 0.54, 0.52}
	if len(cmds) != len(want) {
		t.Fatalf("enqueued %d commands, want %d", len(cmds), len(want))
	}
	for i, cmd := range cmds {
		if cmd.Kind != command.KindVolume || cmd.Value != want[i] {
			t.Errorf("cmds[%d] = %v, want VOLUME(%.2f)", i, cmd, want[i])
		}
	}
}

func TestVolumeKeysClamp(t *testing.T) {
	dev := newFakeDevice()
	dev.status.Playback.Volume = config.MaxVolume
	ui := newTestUI(t, dev)

	ui.globalInputHandler(runeKey('+'))

	cmds := dev.drain()
	if len(cmds) != 1 || cmds[0].Value != config.MaxVolume {
		t.Errorf("commands = %v, want VOLUME(1.00)", cmds)
	}
}

func TestVisualizerKeyCycles(t *testing.T) {
	dev := newFakeDevice()
	ui := newTestUI(t, dev)

	ui.globalInputHandler(runeKey('v'))
	if dev.visualizer != "mirror" {
		t.Errorf("visualizer = %q, want mirror", dev.visualizer)
	}
	ui.globalInputHandler(runeKey('v'))
	if dev.visualizer != "bars" {
		t.Errorf("visualizer = %q, want bars", dev.visualizer)
	}
}

func TestHelpKeyOpensModal(t *testing.T) {
	dev := newFakeDevice()
	ui := newTestUI(t, dev)

	if ev := ui.globalInputHandler(runeKey('?')); ev != nil {
		t.Error("help key was not consumed")
	}
	if !ui.pages.HasPage(modalPage) {
		t.Fatal("help modal not shown")
	}

	ui.dismissModal()
	if ui.pages.HasPage(modalPage) {
		t.Error("modal still shown after dismiss")
	}
}

func TestUnknownKeyPassesThrough(t *testing.T) {
	ui := newTestUI(t, newFakeDevice())

	ev := runeKey('z')
	if got := ui.globalInputHandler(ev); got != ev {
		t.Error("unbound key was consumed")
	}
}

func TestStationTableMarksCurrentAndUnavailable(t *testing.T) {
	dev := newFakeDevice()
	dev.registry.MarkUnavailable(0)
	dev.status.Playback.Index = 1
	ui := newTestUI(t, dev)

	if got := ui.stationList.GetRowCount(); got != 3 {
		t.Fatalf("row count = %d, want header + 2", got)
	}
	if got := ui.stationList.GetCell(1, 1).Text; got != "✗" {
		t.Errorf("unavailable marker = %q, want ✗", got)
	}
	if got := ui.stationList.GetCell(2, 0).Text; got != "➤" {
		t.Errorf("current marker = %q, want ➤", got)
	}
	if got := ui.stationList.GetCell(2, 2).Text; got != "beta" {
		t.Errorf("name = %q, want beta", got)
	}

	dev.status.Playback.Index = 0
	ui.refresh()
	if got := ui.stationList.GetCell(1, 0).Text; got != "➤" {
		t.Errorf("current marker after refresh = %q, want ➤", got)
	}
}
