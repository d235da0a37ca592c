// Package output renders probe sessions.
//
// Text output follows the system ping: a header, one line per probe as it
// completes and a statistics block at the end. The other formats render a
// finished session for tools and reports: a per-probe table, JSON, CSV and
// a self-contained HTML page.
package output

import (
	"github.com/KilimcininKorOglu/pingkit/internal/session"
)

// Format selects how a session is rendered.
type Format int

const (
	FormatText Format = iota
	FormatVerbose
	FormatJSON
	FormatCSV
	FormatHTML
)

var formatNames = [...]string{
	FormatText:    "text",
	FormatVerbose: "verbose",
	FormatJSON:    "json",
	FormatCSV:     "csv",
	FormatHTML:    "html",
}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return "unknown"
	}
	return formatNames[f]
}

// Formatter renders a finished session.
type Formatter interface {
	Format(result *session.Result) ([]byte, error)

	// ContentType and FileExtension describe the rendered bytes when they
	// are saved or served.
	ContentType() string
	FileExtension() string
}

// Config is shared by every format.
type Config struct {
	// Colors enables ANSI colors in text and table output
	Colors bool

	// NoHostname hides the target's reverse DNS name
	NoHostname bool
}

// NewFormatter returns the formatter for format. Unknown formats render
// as text.
func NewFormatter(format Format, config Config) Formatter {
	switch format {
	case FormatVerbose:
		return NewTableFormatter(config)
	case FormatJSON:
		return NewJSONFormatter(config)
	case FormatCSV:
		return NewCSVFormatter(config)
	case FormatHTML:
		return NewHTMLFormatter(config)
	}
	return NewTextFormatter(config)
}
