package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Confirmation describes a destructive operation the user must acknowledge
type Confirmation struct {
	Title    string
	Warnings []string
	// Phrase must be typed exactly to proceed
	Phrase string
	Width  int
}

// Confirm displays a warning box on out and reads one line from in. It
// returns true only if the line matches the phrase.
func Confirm(in io.Reader, out io.Writer, c Confirmation) bool {
	width := c.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}
	phrase := c.Phrase
	if phrase == "" {
		phrase = "yes"
	}

	lines := []string{"", WarningTitleStyle.Render(fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, c.Title)), ""}
	bullet := lipgloss.NewStyle().Foreground(TextColor)
	for _, w := range c.Warnings {
		lines = append(lines, bullet.Render("   • "+w))
	}
	lines = append(lines, "")

	_, _ = fmt.Fprintln(out, WarningBoxStyle(width).Render(strings.Join(lines, "\n")))
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprint(out, WarningTitleStyle.Render(fmt.Sprintf("To proceed, type %q and press Enter: ", phrase)))

	input, err := bufio.NewReader(in).ReadString('\n')
	_, _ = fmt.Fprintln(out)
	if err != nil && input == "" {
		return false
	}
	if strings.TrimSpace(input) == phrase {
		return true
	}

	_, _ = fmt.Fprintln(out, lipgloss.NewStyle().Foreground(MutedColor).Render("  Operation cancelled."))
	return false
}

// ResetThermometerConfirmation is the prompt shown before a probe reset
func ResetThermometerConfirmation(serial string) Confirmation {
	return Confirmation{
		Title: "RESET THERMOMETER " + serial,
		Warnings: []string{
			"The probe returns to its factory state",
			"Any running prediction or food-safe program is lost",
		},
		Phrase: "RESET",
		Width:  GetTerminalWidth(),
	}
}
