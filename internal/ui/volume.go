package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/glebovdev/radiobox/internal/command"
	"github.com/glebovdev/radiobox/internal/config"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

// volumeHold is how long a locally requested volume overrides the published status.
const volumeHold = time.Second

// volumeBar draws volume as width cells of █ followed by ░.
func volumeBar(volume float64, width int) (filled, empty string) {
	if width <= 0 {
		return "", ""
	}
	n := int(math.Round(config.ClampVolume(volume) * float64(width)))
	return strings.Repeat("█", n), strings.Repeat("░", width-n)
}

func (ui *UI) createVolumeView() *tview.TextView {
	tv := tview.NewTextView()
	tv.SetDynamicColors(true)
	tv.SetTextColor(ui.colors.foreground)
	tv.SetBackgroundColor(ui.colors.background)
	tv.SetBorder(true).
		SetTitle(" Volume ").
		SetBorderColor(ui.colors.borders).
		SetTitleColor(ui.colors.foreground)
	return tv
}

func (ui *UI) updateVolumeDisplay() {
	if ui.volumeView == nil {
		return
	}
	volume := ui.displayVolume()

	_, _, width, _ := ui.volumeView.GetInnerRect()
	barWidth := max(width-7, 10)

	barColor := ui.colors.highlight
	if volume <= config.MinVolume {
		barColor = ui.colors.muted
	}

	filled, empty := volumeBar(volume, barWidth)
	ui.volumeView.SetText(fmt.Sprintf(" [%s]%s[-]%s %3d%%",
		barColor.String(), filled, empty, int(math.Round(volume*100))))
}

// displayVolume is the locally requested volume while a change is pending, else the
// volume reported by the device.
func (ui *UI) displayVolume() float64 {
	if !ui.volumeTouched.IsZero() && ui.now().Sub(ui.volumeTouched) < volumeHold {
		return ui.targetVolume
	}
	return ui.status.Playback.Volume
}

func (ui *UI) adjustVolume(delta float64) {
	v := config.ClampVolume(ui.displayVolume() + delta)
	v = math.Round(v*100) / 100

	if !ui.dev.Enqueue(command.Volume(v)) {
		log.Debug().Msg("Volume change dropped, command queue full")
		return
	}
	ui.targetVolume = v
	ui.volumeTouched = ui.now()
	ui.updateVolumeDisplay()
}
