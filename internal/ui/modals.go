package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/radiobox/internal/config"
	"github.com/rivo/tview"
)

const modalPage = "modal"

func (ui *UI) helpText() string {
	keyColor := ui.colors.highlight.String()

	configPath, _ := config.GetConfigPath()

	return fmt.Sprintf(`[::b]KEYBOARD SHORTCUTS[::-]

[%s]PLAYBACK[-]
  [%s]<[-]          Previous station
  [%s]>[-]          Next station

[%s]VOLUME[-]
  [%s]+[-] / [%s]-[-]      Volume up / down
  [%s]←[-] / [%s]→[-]      Volume down / up

[%s]DISPLAY[-]
  [%s]v[-]          Next visualizer style

[%s]APPLICATION[-]
  [%s]?[-]          Show this help
  [%s]a[-]          About %s
  [%s]q[-] / [%s]Esc[-]    Quit

Stations are managed from the web page.

[%s]CONFIG[-]: %s`,
		keyColor,
		keyColor, keyColor,
		keyColor,
		keyColor, keyColor, keyColor, keyColor,
		keyColor,
		keyColor,
		keyColor,
		keyColor, keyColor, config.AppName, keyColor, keyColor,
		keyColor, configPath)
}

func (ui *UI) aboutText() string {
	linkColor := "skyblue"
	dimColor := "gray"

	return fmt.Sprintf(`[::b]%s[::-]
[%s]%s[-]

Version:    %s
Project:    [%s:::%s]%s[-:::-]
Visualizer: %s

[%s]%s[-]`,
		config.AppName,
		dimColor, config.AppTagline,
		config.AppVersion,
		linkColor, config.AppProjectURL, config.AppProjectURL,
		ui.dev.Visualizer(),
		dimColor, config.AppDescription)
}

func (ui *UI) showHelpModal() {
	ui.showInfoModal("Help", ui.helpText())
}

func (ui *UI) showAboutModal() {
	ui.showInfoModal("About", ui.aboutText())
}

func (ui *UI) dismissModal() {
	ui.pages.RemovePage(modalPage)
	ui.app.SetFocus(ui.stationList)
}

func (ui *UI) showInfoModal(title, message string) {
	messageView := tview.NewTextView().
		SetTextAlign(tview.AlignLeft).
		SetDynamicColors(true).
		SetWordWrap(true).
		SetText("\n" + message)
	messageView.SetTextColor(ui.colors.foreground)
	messageView.SetBackgroundColor(ui.colors.background)

	hintView := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetText("[::d]Press any key to close[::-]")
	hintView.SetTextColor(tcell.ColorDarkGray)
	hintView.SetBackgroundColor(ui.colors.background)

	content := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(messageView, 0, 1, false).
		AddItem(nil, 1, 0, false).
		AddItem(hintView, 1, 0, false).
		AddItem(nil, 1, 0, false)
	content.SetBackgroundColor(ui.colors.background)

	frame := tview.NewFrame(content).
		SetBorders(1, 0, 1, 1, 2, 2)
	frame.SetBorder(true).
		SetBorderColor(ui.colors.borders).
		SetBackgroundColor(ui.colors.background).
		SetTitle(" " + title + " ").
		SetTitleColor(ui.colors.highlight).
		SetTitleAlign(tview.AlignCenter)

	lines := strings.Count(message, "\n") + 1
	modalWidth := 50
	modalHeight := min(lines+9, 38)

	modal := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(frame, modalHeight, 0, true).
			AddItem(nil, 0, 1, false),
			modalWidth, 0, true).
		AddItem(nil, 0, 1, false)

	modal.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		ui.dismissModal()
		return nil
	})

	ui.pages.AddPage(modalPage, modal, true, true)
	ui.app.SetFocus(modal)
}
