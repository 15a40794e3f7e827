// Package ui is the terminal front panel: station, state, volume and visualizer, with
// key input translated into device commands.
package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/radiobox/internal/appliance"
	"github.com/glebovdev/radiobox/internal/command"
	"github.com/glebovdev/radiobox/internal/config"
	"github.com/glebovdev/radiobox/internal/player"
	"github.com/glebovdev/radiobox/internal/sampler"
	"github.com/glebovdev/radiobox/internal/station"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const (
	RefreshInterval    = 16 * time.Millisecond
	HeaderHeight       = 3
	NowPlayingHeight   = 5
	VolumeHeight       = 3
	FooterHeightWide   = 3
	FooterHeightNarrow = 6
	FooterBreakpoint   = 110
)

// Device is what the panel reads from and sends commands to.
type Device interface {
	Status() appliance.Status
	Bands() sampler.Bands
	DecodingActive() bool
	Enqueue(cmd command.Command) bool
	Registry() *station.Registry
	Visualizer() string
	SetVisualizer(name string) error
}

type UI struct {
	app            *tview.Application
	dev            Device
	pages          *tview.Pages
	contentLayout  *tview.Flex
	nowPlaying     *tview.TextView
	volumeView     *tview.TextView
	visualizerBox  *tview.Box
	stationList    *tview.Table
	footer         *tview.Box
	statusRenderer *StatusRenderer

	// owned by the tview event goroutine
	status          appliance.Status
	bands           sampler.Bands
	shownStations   []station.Station
	shownCurrent    int
	targetVolume    float64
	volumeTouched   time.Time
	lastFooterWidth int
	now             func() time.Time

	stopUpdates chan struct{}
	stopOnce    sync.Once

	colors struct {
		background tcell.Color
		foreground tcell.Color
		borders    tcell.Color
		highlight  tcell.Color
		muted      tcell.Color
		warning    tcell.Color
		bands      tcell.Color
	}
}

func NewUI(dev Device, theme config.Theme) *UI {
	ui := &UI{
		app:          tview.NewApplication(),
		dev:          dev,
		stopUpdates:  make(chan struct{}),
		shownCurrent: -1,
		now:          time.Now,
	}

	ui.colors.background = config.GetColor(theme.Background)
	ui.colors.foreground = config.GetColor(theme.Foreground)
	ui.colors.borders = config.GetColor(theme.Borders)
	ui.colors.highlight = config.GetColor(theme.Highlight)
	ui.colors.muted = config.GetColor(theme.MutedVolume)
	ui.colors.warning = config.GetColor(theme.Warning)
	ui.colors.bands = config.GetColor(theme.Bands)

	ui.statusRenderer = NewStatusRenderer()
	ui.statusRenderer.SetPrimaryColor(ui.colors.highlight.String())
	ui.statusRenderer.SetWarningColor(ui.colors.warning.String())

	ui.status = dev.Status()
	return ui
}

// Run shows the panel and blocks until the user quits or Shutdown is called.
func (ui *UI) Run() error {
	ui.setupUI()
	ui.app.SetRoot(ui.pages, true)
	ui.configureScreen()

	go ui.refreshLoop()

	return ui.app.Run()
}

func (ui *UI) stop() {
	ui.stopOnce.Do(func() { close(ui.stopUpdates) })
	ui.app.Stop()
}

// Shutdown stops the panel from another goroutine, e.g. a signal handler.
func (ui *UI) Shutdown() {
	ui.stopOnce.Do(func() { close(ui.stopUpdates) })
	ui.app.QueueUpdate(ui.app.Stop)
}

func (ui *UI) configureScreen() {
	bgStyle := tcell.StyleDefault.Background(ui.colors.background)
	ui.app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		screen.SetStyle(bgStyle)
		screen.Clear()
		return false
	})

	var titleSet sync.Once
	ui.app.SetAfterDrawFunc(func(screen tcell.Screen) {
		titleSet.Do(func() { screen.SetTitle(config.AppName) })
	})
}

// refreshLoop redraws the panel every RefreshInterval. A frame is skipped while the
// playback loop is decoding.
func (ui *UI) refreshLoop() {
	ticker := time.NewTicker(RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ui.stopUpdates:
			return
		case <-ticker.C:
			if ui.dev.DecodingActive() {
				continue
			}
			ui.app.QueueUpdateDraw(ui.refresh)
		}
	}
}

func (ui *UI) refresh() {
	ui.status = ui.dev.Status()
	ui.bands = ui.dev.Bands()
	ui.statusRenderer.AdvanceAnimation()

	ui.updateNowPlaying()
	ui.updateVolumeDisplay()
	if ui.visualizerBox != nil {
		ui.visualizerBox.SetTitle(" " + ui.status.Visualizer + " ")
	}
	ui.refreshStationTable()
}

func (ui *UI) setupUI() {
	header := ui.createHeader()
	ui.nowPlaying = ui.createNowPlaying()
	ui.volumeView = ui.createVolumeView()
	ui.visualizerBox = ui.createVisualizerBox()
	ui.stationList = ui.createStationListTable()
	ui.footer = ui.createFooter()

	left := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.nowPlaying, NowPlayingHeight, 0, false).
		AddItem(ui.volumeView, VolumeHeight, 0, false).
		AddItem(ui.visualizerBox, 0, 1, false)
	left.SetBackgroundColor(ui.colors.background)

	body := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(left, 0, 2, false).
		AddItem(nil, 1, 0, false).
		AddItem(ui.stationList, 0, 1, true)
	body.SetBackgroundColor(ui.colors.background)

	ui.contentLayout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(header, HeaderHeight, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(body, 0, 1, true).
		AddItem(ui.footer, FooterHeightWide, 0, false)
	ui.contentLayout.SetBackgroundColor(ui.colors.background)

	wrapper := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(nil, 2, 0, false).
		AddItem(ui.contentLayout, 0, 1, true).
		AddItem(nil, 2, 0, false)
	wrapper.SetBackgroundColor(ui.colors.background)

	mainLayout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 1, 0, false).
		AddItem(wrapper, 0, 1, true).
		AddItem(nil, 1, 0, false)
	mainLayout.SetBackgroundColor(ui.colors.background)

	ui.pages = tview.NewPages().
		AddPage("main", mainLayout, true, true)
	ui.pages.SetBackgroundColor(ui.colors.background)

	ui.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if ui.pages.HasPage(modalPage) {
			return event
		}
		return ui.globalInputHandler(event)
	})

	ui.refresh()
}

func (ui *UI) createHeader() tview.Primitive {
	titleView := tview.NewTextView()
	titleView.SetText(" " + config.AppName)
	titleView.SetTextAlign(tview.AlignLeft)
	titleView.SetTextColor(ui.colors.background)
	titleView.SetBackgroundColor(ui.colors.highlight)

	versionView := tview.NewTextView()
	versionView.SetText("v" + config.AppVersion + " ")
	versionView.SetTextAlign(tview.AlignRight)
	versionView.SetTextColor(ui.colors.background)
	versionView.SetBackgroundColor(ui.colors.highlight)

	textFlex := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(titleView, 0, 1, false).
		AddItem(versionView, 16, 0, false)
	textFlex.SetBackgroundColor(ui.colors.highlight)

	headerFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(tview.NewBox().SetBackgroundColor(ui.colors.highlight), 1, 0, false).
		AddItem(textFlex, 1, 0, false).
		AddItem(tview.NewBox().SetBackgroundColor(ui.colors.highlight), 1, 0, false)
	headerFlex.SetBackgroundColor(ui.colors.highlight)

	return headerFlex
}

func (ui *UI) createNowPlaying() *tview.TextView {
	tv := tview.NewTextView()
	tv.SetDynamicColors(true)
	tv.SetTextColor(ui.colors.foreground)
	tv.SetBackgroundColor(ui.colors.background)
	tv.SetBorder(true).
		SetTitle(" Now Playing ").
		SetBorderColor(ui.colors.borders).
		SetTitleColor(ui.colors.foreground)
	return tv
}

func (ui *UI) createVisualizerBox() *tview.Box {
	box := tview.NewBox()
	box.SetBackgroundColor(ui.colors.background)
	box.SetBorder(true).
		SetBorderColor(ui.colors.borders).
		SetTitleColor(ui.colors.foreground)

	box.SetDrawFunc(func(screen tcell.Screen, x, y, width, height int) (int, int, int, int) {
		ix, iy, iw, ih := x+1, y+1, width-2, height-2
		if iw > 0 && ih > 0 {
			ui.drawVisualizer(screen, ix, iy, iw, ih)
		}
		return ix, iy, iw, ih
	})
	return box
}

func (ui *UI) updateNowPlaying() {
	if ui.nowPlaying == nil {
		return
	}
	ui.nowPlaying.SetText(nowPlayingText(ui.status, ui.colors.highlight.String(), ui.colors.warning.String()))
}

// nowPlayingText renders the station block: station name, stream title and availability.
func nowPlayingText(st appliance.Status, highlight, warning string) string {
	pb := st.Playback
	if pb.Station == "" {
		if st.Stations == 0 {
			return " No stations configured"
		}
		return " Waiting for network"
	}

	text := fmt.Sprintf(" [%s::b]%s[-::-]", highlight, tview.Escape(pb.Station))
	switch {
	case pb.State == player.StatePlaying && pb.Title != "":
		text += "\n " + tview.Escape(pb.Title)
	case pb.State != player.StatePlaying:
		text += "\n " + pb.State.String()
	}
	if !pb.Available {
		text += fmt.Sprintf("\n [%s]unavailable, skipping[-]", warning)
	}
	return text
}

func (ui *UI) cycleVisualizer() {
	next := nextStyle(config.VisualizerStyles, ui.dev.Visualizer())
	if err := ui.dev.SetVisualizer(next); err != nil {
		log.Error().Err(err).Msg("Failed to switch visualizer")
		return
	}
	ui.status.Visualizer = next
}

func (ui *UI) enqueue(cmd command.Command) {
	if !ui.dev.Enqueue(cmd) {
		log.Debug().Msgf("Command dropped, queue full: %s", cmd)
	}
}

func (ui *UI) globalInputHandler(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			ui.stop()
			return nil
		case '>', '.':
			ui.enqueue(command.Next())
			return nil
		case '<', ',':
			ui.enqueue(command.Previous())
			return nil
		case '+', '=':
			ui.adjustVolume(config.VolumeStep)
			return nil
		case '-', '_':
			ui.adjustVolume(-config.VolumeStep)
			return nil
		case 'v', 'V':
			ui.cycleVisualizer()
			return nil
		case '?':
			ui.showHelpModal()
			return nil
		case 'a', 'A':
			ui.showAboutModal()
			return nil
		}
	case tcell.KeyEscape:
		ui.stop()
		return nil
	case tcell.KeyRight:
		ui.adjustVolume(config.VolumeStep)
		return nil
	case tcell.KeyLeft:
		ui.adjustVolume(-config.VolumeStep)
		return nil
	}
	return event
}
