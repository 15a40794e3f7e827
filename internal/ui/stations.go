package ui

import (
	"fmt"
	"slices"

	"github.com/glebovdev/radiobox/internal/station"
	"github.com/rivo/tview"
)

func (ui *UI) createStationListTable() *tview.Table {
	table := tview.NewTable().
		SetBorders(false).
		SetSeparator(' ').
		SetSelectable(false, false).
		SetFixed(1, 0)

	table.SetBorder(true).
		SetBorderColor(ui.colors.borders).
		SetTitleColor(ui.colors.foreground).
		SetBackgroundColor(ui.colors.background).
		SetBorderPadding(1, 0, 1, 1)

	headers := []string{" ", " ", "Name"}
	for col, text := range headers {
		cell := tview.NewTableCell(text).
			SetTextColor(ui.colors.background).
			SetBackgroundColor(ui.colors.foreground).
			SetSelectable(false)
		if col < 2 {
			cell.SetMaxWidth(2)
		} else {
			cell.SetExpansion(1)
		}
		table.SetCell(0, col, cell)
	}

	return table
}

// refreshStationTable redraws the list when the stations or the current index changed.
func (ui *UI) refreshStationTable() {
	if ui.stationList == nil {
		return
	}
	stations := ui.dev.Registry().Snapshot()
	current := ui.status.Playback.Index
	if slices.Equal(stations, ui.shownStations) && current == ui.shownCurrent {
		return
	}
	ui.shownStations = stations
	ui.shownCurrent = current

	for row := ui.stationList.GetRowCount() - 1; row > 0; row-- {
		ui.stationList.RemoveRow(row)
	}
	for i, s := range stations {
		ui.setStationRow(i+1, s, i == current)
	}
	ui.stationList.SetTitle(fmt.Sprintf(" Stations (%d/%d) ", len(stations), ui.dev.Registry().Limit()))
}

func (ui *UI) setStationRow(row int, s station.Station, current bool) {
	playIcon, color := " ", ui.colors.foreground
	if current {
		playIcon, color = "➤", ui.colors.highlight
	}
	ui.stationList.SetCell(row, 0, tview.NewTableCell(playIcon).
		SetTextColor(ui.colors.highlight).
		SetMaxWidth(2))

	availIcon := " "
	if !s.Available {
		availIcon = "✗"
	}
	ui.stationList.SetCell(row, 1, tview.NewTableCell(availIcon).
		SetTextColor(ui.colors.warning).
		SetMaxWidth(2))

	ui.stationList.SetCell(row, 2, tview.NewTableCell(s.Name).
		SetTextColor(color).
		SetExpansion(1))
}
