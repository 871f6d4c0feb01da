package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/muurk/probekit/internal/probe"
	"github.com/muurk/probekit/internal/probedata"
)

// Unit selects how temperatures are shown
type Unit int

const (
	Celsius Unit = iota
	Fahrenheit
)

func (u Unit) String() string {
	if u == Fahrenheit {
		return "°F"
	}
	return "°C"
}

// Toggle returns the other unit
func (u Unit) Toggle() Unit {
	if u == Fahrenheit {
		return Celsius
	}
	return Fahrenheit
}

// Row is one probe as the table shows it
type Row struct {
	State    probe.State
	Nickname string
}

// Rows pairs snapshots with nicknames. nicknames may be nil.
func Rows(states []probe.State, nicknames func(serial string) string) []Row {
	rows := make([]Row, 0, len(states))
	for _, st := range states {
		r := Row{State: st}
		if nicknames != nil {
			r.Nickname = nicknames(st.Serial)
		}
		rows = append(rows, r)
	}
	return rows
}

var tableHeaders = []string{"Serial", "Name", "ID", "Colour", "Core", "Surface", "Ambient", "Prediction", "Battery", "RSSI", "Status"}

// Column indexes
const (
	colSerial = iota
	colName
	colID
	colColour
	colCore
	colSurface
	colAmbient
	colPrediction
	colBattery
	colRSSI
	colStatus
)

// dropOrder lists the columns removed, first to last, while the table is
// wider than the space available. Serial, ID, core and status always stay.
var dropOrder = []int{colRSSI, colBattery, colPrediction, colSurface, colAmbient, colColour, colName}

const progressBarWidth = 10

// FormatTemperature renders a reading in unit, or "-" when absent
func FormatTemperature(c *float64, unit Unit) string {
	if c == nil {
		return "-"
	}
	v := *c
	if unit == Fahrenheit {
		v = probedata.CelsiusToFahrenheit(v)
	}
	return fmt.Sprintf("%.1f%s", v, unit)
}

// FormatRSSI renders signal strength in dBm
func FormatRSSI(rssi int16) string {
	if rssi == 0 {
		return "-"
	}
	return fmt.Sprintf("%d dBm", rssi)
}

// FormatRemaining renders a prediction countdown as h:mm:ss or m:ss
func FormatRemaining(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	s := int(d/time.Second) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatPrediction renders prediction progress as a bar, percentage and
// countdown. bar may be nil for plain text.
func FormatPrediction(st probe.State, bar *progress.Model) string {
	if st.Prediction == nil || st.Prediction.Mode == probedata.PredictionModeNone {
		return "-"
	}
	pct, ok := st.PredictionProgress()
	if !ok {
		return st.Prediction.State.String()
	}

	var b strings.Builder
	if bar != nil {
		b.WriteString(bar.ViewAs(pct / 100))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%3.0f%%", pct)
	if st.Prediction.Active() {
		b.WriteString(" " + FormatRemaining(st.Prediction.Remaining()))
	}
	return b.String()
}

func newProgressBar() progress.Model {
	return progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(progressBarWidth),
		progress.WithoutPercentage(),
	)
}

func rowCells(r Row, unit Unit, bar *progress.Model) []string {
	st := r.State
	status := LiveMarker
	if st.Stale {
		status = StaleMarker
	}
	if st.Overheat.Any() {
		status += " hot"
	}
	name := r.Nickname
	if name == "" {
		name = "-"
	}
	return []string{
		st.Serial,
		name,
		fmt.Sprintf("%d", st.ID),
		st.Color.String(),
		FormatTemperature(st.Virtual.Core, unit),
		FormatTemperature(st.Virtual.Surface, unit),
		FormatTemperature(st.Virtual.Ambient, unit),
		FormatPrediction(st, bar),
		st.Battery.String(),
		FormatRSSI(st.RSSI),
		status,
	}
}

// RenderProbeTable renders rows as a bordered table. With a positive width,
// low-priority columns are dropped until the table fits; cells never wrap.
func RenderProbeTable(rows []Row, unit Unit, width int) string {
	bar := newProgressBar()
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, rowCells(r, unit, &bar))
	}

	keep := make([]int, len(tableHeaders))
	for i := range keep {
		keep[i] = i
	}
	out := renderColumns(rows, cells, keep)
	for _, col := range dropOrder {
		if width <= 0 || lipgloss.Width(out) <= width {
			break
		}
		keep = withoutColumn(keep, col)
		out = renderColumns(rows, cells, keep)
	}
	return out
}

func withoutColumn(cols []int, col int) []int {
	out := make([]int, 0, len(cols))
	for _, c := range cols {
		if c != col {
			out = append(out, c)
		}
	}
	return out
}

// renderColumns renders the columns named by keep, in order
func renderColumns(rows []Row, cells [][]string, keep []int) string {
	headers := make([]string, len(keep))
	for i, c := range keep {
		headers[i] = tableHeaders[c]
	}
	picked := make([][]string, len(cells))
	for r, row := range cells {
		picked[r] = make([]string, len(keep))
		for i, c := range keep {
			picked[r][i] = row[c]
		}
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(PrimaryColor)).
		Headers(headers...).
		Rows(picked...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			if row < 0 || row >= len(rows) || col < 0 || col >= len(keep) {
				return TableCellStyle
			}
			st := rows[row].State
			switch c := keep[col]; {
			case st.Stale:
				return StaleCellStyle
			case c == colColour:
				return ProbeColorStyle(st.Color)
			case c == colBattery && st.Battery == probedata.BatteryLow:
				return WarningCellStyle
			case c == colStatus && st.Overheat.Any():
				return WarningCellStyle
			}
			return TableCellStyle
		}).
		String()
}
