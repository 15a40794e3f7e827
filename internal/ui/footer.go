package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/radiobox/internal/appliance"
	"github.com/glebovdev/radiobox/internal/player"
	"github.com/glebovdev/radiobox/internal/recovery"
	"github.com/rivo/tview"
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// StatusRenderer formats the one-line playback and network state shown in the footer.
type StatusRenderer struct {
	animFrame     int
	maxAnimFrame  int
	tickCount     int
	ticksPerFrame int

	primaryColor string
	warningColor string
}

func NewStatusRenderer() *StatusRenderer {
	return &StatusRenderer{
		maxAnimFrame:  len(spinnerFrames),
		ticksPerFrame: 6, // ~100ms per frame at the panel refresh rate
	}
}

func (s *StatusRenderer) SetPrimaryColor(color string) {
	s.primaryColor = color
}

func (s *StatusRenderer) SetWarningColor(color string) {
	s.warningColor = color
}

func (s *StatusRenderer) AdvanceAnimation() {
	s.tickCount++
	if s.tickCount >= s.ticksPerFrame {
		s.tickCount = 0
		s.animFrame = (s.animFrame + 1) % s.maxAnimFrame
	}
}

// Render describes st. A network problem takes precedence over the playback state.
func (s *StatusRenderer) Render(st appliance.Status) string {
	if st.Recovery.State != recovery.StateOk {
		return s.renderRecovery(st.Recovery)
	}

	switch st.Playback.State {
	case player.StateConnecting:
		return s.spinner() + " CONNECTING"
	case player.StateStarting:
		return s.spinner() + " STARTING"
	case player.StateBuffering:
		return joinParts([]string{s.spinner() + " BUFFERING", fmt.Sprintf("%d%%", st.Playback.BufferPercent)})
	case player.StatePlaying:
		return s.renderPlaying(st.Playback)
	case player.StateError:
		return s.warn("✗ UNAVAILABLE") + " │ trying next station"
	default:
		return s.renderIdle(st.Stations)
	}
}

func (s *StatusRenderer) renderIdle(stations int) string {
	if stations == 0 {
		return joinParts([]string{"○ IDLE", "no stations, add one from the web page"})
	}
	return "○ IDLE"
}

func (s *StatusRenderer) renderPlaying(st player.Status) string {
	live := "● LIVE"
	if s.primaryColor != "" {
		live = fmt.Sprintf("[%s]● LIVE[-]", s.primaryColor)
	}
	return joinParts([]string{live, s.formatBufferHealth(st.BufferPercent)})
}

func (s *StatusRenderer) renderRecovery(rs recovery.Status) string {
	if rs.State == recovery.StateFailedRebooting {
		return s.warn(fmt.Sprintf("⚠ RESTARTING IN %ds", rs.Countdown))
	}
	msg := rs.Message
	if msg == "" {
		msg = "network lost"
	}
	return s.spinner() + " " + s.warn(strings.ToUpper(msg))
}

func (s *StatusRenderer) spinner() string {
	return spinnerFrames[s.animFrame%len(spinnerFrames)]
}

func (s *StatusRenderer) warn(text string) string {
	if s.warningColor == "" {
		return text
	}
	return fmt.Sprintf("[%s]%s[-]", s.warningColor, text)
}

func (s *StatusRenderer) formatBufferHealth(percent int) string {
	signalBars := []string{"▁", "▂", "▃", "▅", "▇"}
	const numBars = 5

	filled := (percent * numBars) / 100
	if filled > numBars {
		filled = numBars
	}

	var bar strings.Builder
	for i := 0; i < numBars; i++ {
		if i < filled {
			bar.WriteString(signalBars[i])
		} else {
			bar.WriteString("▁")
		}
	}

	return bar.String()
}

func joinParts(parts []string) string {
	return strings.Join(parts, " │ ")
}

func (ui *UI) getHelpText() string {
	keyColor := ui.colors.highlight.String()
	return fmt.Sprintf(" [%s]<[-]/[%s]>[-] station  [%s]+/-[-] vol  [%s]v[-] visualizer  [%s]?[-] help  [%s]q[-] quit ",
		keyColor, keyColor, keyColor, keyColor, keyColor, keyColor)
}

func (ui *UI) handleFooterResize(width int) {
	isWide := width >= FooterBreakpoint
	wasWide := ui.lastFooterWidth >= FooterBreakpoint

	if ui.lastFooterWidth > 0 && isWide != wasWide && ui.contentLayout != nil {
		newHeight := FooterHeightWide
		if !isWide {
			newHeight = FooterHeightNarrow
		}
		ui.contentLayout.ResizeItem(ui.footer, newHeight, 0)
	}
	ui.lastFooterWidth = width
}

func (ui *UI) fillRect(screen tcell.Screen, x, y, width, height int, bg tcell.Color) {
	style := tcell.StyleDefault.Background(bg)
	for row := y; row < y+height; row++ {
		for col := x; col < x+width; col++ {
			screen.SetContent(col, row, ' ', nil, style)
		}
	}
}

func (ui *UI) drawWideFooter(screen tcell.Screen, x, y, width, height int, helpText, statusText string) {
	helpWidth := width / 2
	statusWidth := width - helpWidth

	ui.fillRect(screen, x, y, helpWidth, height, ui.colors.borders)
	ui.fillRect(screen, x+helpWidth, y, statusWidth, height, ui.colors.background)

	centerY := y + height/2
	tview.Print(screen, helpText, x, centerY, helpWidth, tview.AlignCenter, ui.colors.foreground)
	tview.Print(screen, statusText, x+helpWidth, centerY, statusWidth-2, tview.AlignRight, ui.colors.foreground)
}

func (ui *UI) drawNarrowFooter(screen tcell.Screen, x, y, width, height int, helpText, statusText string) {
	helpHeight := max(height/2, 1)
	statusHeight := height - helpHeight
	helpBoxEnd := y + helpHeight

	ui.fillRect(screen, x, y, width, helpHeight, ui.colors.borders)
	ui.fillRect(screen, x, helpBoxEnd, width, statusHeight, ui.colors.background)

	tview.Print(screen, helpText, x, y+helpHeight/2, width, tview.AlignCenter, ui.colors.foreground)
	if statusHeight > 0 {
		tview.Print(screen, statusText, x, helpBoxEnd+statusHeight/2, width-2, tview.AlignRight, ui.colors.foreground)
	}
}

func (ui *UI) createFooter() *tview.Box {
	box := tview.NewBox().SetBackgroundColor(ui.colors.background)

	box.SetDrawFunc(func(screen tcell.Screen, x, y, width, height int) (int, int, int, int) {
		ui.handleFooterResize(width)

		helpText := ui.getHelpText()
		statusText := " " + ui.statusRenderer.Render(ui.status) + " "

		if width >= FooterBreakpoint {
			ui.drawWideFooter(screen, x, y, width, min(height, FooterHeightWide), helpText, statusText)
		} else {
			ui.drawNarrowFooter(screen, x, y, width, height, helpText, statusText)
		}

		return x, y, width, height
	})

	return box
}
