package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds all the styles used in the TUI.
type Styles struct {
	Title     lipgloss.Style
	Header    lipgloss.Style
	Subtle    lipgloss.Style
	StatusBar lipgloss.Style

	// Session status
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style

	// Probe rows
	Seq         lipgloss.Style
	IP          lipgloss.Style
	Hostname    lipgloss.Style
	Timeout     lipgloss.Style
	Unreachable lipgloss.Style

	// Reply RTT bands: under 50ms, under 150ms, slower
	RTTLow  lipgloss.Style
	RTTMed  lipgloss.Style
	RTTHigh lipgloss.Style
}

// palette names the colors a theme is built from.
type palette struct {
	accent, text, muted, bar     lipgloss.Color
	good, fair, bad, unreachable lipgloss.Color
	seq, host                    lipgloss.Color
}

var darkPalette = palette{
	accent:      "205",
	text:        "255",
	muted:       "240",
	bar:         "235",
	good:        "46",
	fair:        "226",
	bad:         "196",
	unreachable: "201",
	seq:         "87",
	host:        "114",
}

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func newStyles(p palette) Styles {
	return Styles{
		Title:     fg(p.accent).Bold(true).MarginBottom(1),
		Header:    fg(p.text).Bold(true),
		Subtle:    fg(p.muted),
		StatusBar: fg(p.text).Background(p.bar).Padding(0, 1),

		Success: fg(p.good).Bold(true),
		Error:   fg(p.bad).Bold(true),
		Warning: fg(p.fair).Bold(true),

		Seq:         fg(p.seq),
		IP:          fg(p.text),
		Hostname:    fg(p.host),
		Timeout:     fg(p.bad),
		Unreachable: fg(p.unreachable),

		RTTLow:  fg(p.good),
		RTTMed:  fg(p.fair),
		RTTHigh: fg(p.bad),
	}
}

// DefaultStyles returns the default style set.
func DefaultStyles() Styles {
	return newStyles(darkPalette)
}

// DarkTheme returns a dark theme style set.
func DarkTheme() Styles {
	return DefaultStyles()
}

// LightTheme returns a style set for light backgrounds.
func LightTheme() Styles {
	p := darkPalette
	p.text = "0"
	p.muted = "245"
	p.bar = "254"
	p.fair = "136"
	return newStyles(p)
}

// MinimalTheme returns a minimal style set with fewer colors.
func MinimalTheme() Styles {
	s := DefaultStyles()
	s.Title = lipgloss.NewStyle().Bold(true)
	s.Seq = lipgloss.NewStyle().Bold(true)
	s.IP = lipgloss.NewStyle()
	s.Hostname = lipgloss.NewStyle().Italic(true)
	return s
}
