package output

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/KilimcininKorOglu/pingkit/internal/probe"
	"github.com/KilimcininKorOglu/pingkit/internal/session"
	"github.com/fatih/color"
)

// TextFormatter formats session results in classic ping style: one line
// per probe followed by a statistics block.
type TextFormatter struct {
	config Config
	colors *ColorScheme
}

// NewTextFormatter creates a new text formatter.
func NewTextFormatter(config Config) *TextFormatter {
	var colors *ColorScheme
	if config.Colors {
		colors = DefaultColorScheme()
	}

	return &TextFormatter{
		config: config,
		colors: colors,
	}
}

// Format formats the whole session as ping text output.
func (f *TextFormatter) Format(result *session.Result) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(f.Header(result))
	for _, out := range result.Outcomes {
		buf.WriteString(f.FormatOutcome(out, result.ResolvedIP.String()))
	}
	buf.WriteString(f.Summary(result))

	return buf.Bytes(), nil
}

// Header returns the line printed before the first probe.
func (f *TextFormatter) Header(result *session.Result) string {
	target := result.ResolvedIP.String()
	if result.Target != "" && result.Target != target {
		target = fmt.Sprintf("%s [%s]", result.Target, target)
	}
	header := fmt.Sprintf("Pinging %s using %s:\n\n", target, strings.ToUpper(result.Method))
	if f.colors != nil {
		header = f.colors.Header.Sprint(header)
	}
	return header
}

// FormatOutcome formats a single probe line. It is used for streaming
// output while the session runs.
func (f *TextFormatter) FormatOutcome(out probe.Outcome, dest string) string {
	from := dest
	if out.Peer != nil {
		from = out.Peer.String()
	}

	switch out.Kind {
	case probe.KindReply:
		return fmt.Sprintf("Reply from %s: seq=%d time=%s\n", from, out.Seq, f.colorizeRTT(out.RTTMillis()))
	case probe.KindUnreachable:
		line := fmt.Sprintf("#%d ICMP Error from %s: %s (code %d)", out.Seq, from, probe.UnreachableReason(out.Code), out.Code)
		return f.paint(f.colorsUnreachable(), line) + "\n"
	case probe.KindReset:
		return f.paint(f.colorsTimeout(), fmt.Sprintf("#%d Connection reset by peer", out.Seq)) + "\n"
	case probe.KindMalformed:
		return f.paint(f.colorsTimeout(), fmt.Sprintf("#%d Malformed response", out.Seq)) + "\n"
	default:
		return f.paint(f.colorsTimeout(), fmt.Sprintf("#%d Request timed out for the packet", out.Seq)) + "\n"
	}
}

// Summary returns the statistics block printed after the last probe.
func (f *TextFormatter) Summary(result *session.Result) string {
	var buf bytes.Buffer
	stats := result.Statistics

	fmt.Fprintf(&buf, "\nPing statistics for %s:\n", result.ResolvedIP)
	fmt.Fprintf(&buf, "     Packets: Sent = %d, Received = %d, Lost = %d (%s%% loss)\n",
		stats.Sent, stats.Received, stats.Lost, formatPercent(stats.LossPercent))

	if stats.Lost > 0 {
		fmt.Fprintf(&buf, "     Lost: %s\n", lossBreakdown(stats))
	}

	if stats.RTT == nil {
		buf.WriteString(f.paint(f.colorsTimeout(), "Ping attempts failed."))
		buf.WriteString("\n")
		return buf.String()
	}

	buf.WriteString("Approximate round trip times in milli-seconds:\n")
	fmt.Fprintf(&buf, "     Minimum: %.2f ms, Maximum: %.2f ms, Average: %.2f ms\n",
		stats.RTT.Min, stats.RTT.Max, stats.RTT.Avg)

	return buf.String()
}

// lossBreakdown lists the lost probes by kind, e.g.
// "2 timed out, 3 unreachable (code 3 x3)".
func lossBreakdown(stats session.Statistics) string {
	var parts []string
	if stats.Timeouts > 0 {
		parts = append(parts, fmt.Sprintf("%d timed out", stats.Timeouts))
	}
	if stats.Unreachable > 0 {
		codes := make([]int, 0, len(stats.UnreachableCodes))
		for code := range stats.UnreachableCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		detail := make([]string, len(codes))
		for i, code := range codes {
			detail[i] = fmt.Sprintf("code %d x%d", code, stats.UnreachableCodes[code])
		}
		parts = append(parts, fmt.Sprintf("%d unreachable (%s)", stats.Unreachable, strings.Join(detail, ", ")))
	}
	if stats.Resets > 0 {
		parts = append(parts, fmt.Sprintf("%d reset", stats.Resets))
	}
	if stats.Malformed > 0 {
		parts = append(parts, fmt.Sprintf("%d malformed", stats.Malformed))
	}
	return strings.Join(parts, ", ")
}

// colorizeRTT returns a colored RTT string based on latency thresholds.
func (f *TextFormatter) colorizeRTT(rtt float64) string {
	str := fmt.Sprintf("%.3f ms", rtt)
	if f.colors == nil {
		return str
	}

	switch {
	case rtt < 50:
		return f.colors.RTTLow.Sprint(str)
	case rtt < 150:
		return f.colors.RTTMed.Sprint(str)
	default:
		return f.colors.RTTHigh.Sprint(str)
	}
}

func (f *TextFormatter) colorsTimeout() *color.Color {
	if f.colors == nil {
		return nil
	}
	return f.colors.Timeout
}

func (f *TextFormatter) colorsUnreachable() *color.Color {
	if f.colors == nil {
		return nil
	}
	return f.colors.Unreachable
}

func (f *TextFormatter) paint(c *color.Color, s string) string {
	if c == nil {
		return s
	}
	return c.Sprint(s)
}

// ContentType returns the MIME type for text output.
func (f *TextFormatter) ContentType() string {
	return "text/plain"
}

// FileExtension returns the file extension for text output.
func (f *TextFormatter) FileExtension() string {
	return "txt"
}

// ColorScheme defines colors for different output elements.
type ColorScheme struct {
	Seq         *color.Color
	IP          *color.Color
	Hostname    *color.Color
	RTTLow      *color.Color // < 50ms
	RTTMed      *color.Color // 50-150ms
	RTTHigh     *color.Color // > 150ms
	Timeout     *color.Color
	Unreachable *color.Color
	Header      *color.Color
}

// DefaultColorScheme returns the default color scheme.
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Seq:         color.New(color.FgCyan, color.Bold),
		IP:          color.New(color.FgWhite),
		Hostname:    color.New(color.FgGreen),
		RTTLow:      color.New(color.FgGreen),
		RTTMed:      color.New(color.FgYellow),
		RTTHigh:     color.New(color.FgRed),
		Timeout:     color.New(color.FgRed, color.Bold),
		Unreachable: color.New(color.FgMagenta),
		Header:      color.New(color.FgWhite, color.Bold),
	}
}

// Helper functions

// formatPercent prints whole percentages without decimals.
func formatPercent(p float64) string {
	if p == float64(int(p)) {
		return fmt.Sprintf("%d", int(p))
	}
	return fmt.Sprintf("%.1f", p)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
