package output

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/KilimcininKorOglu/pingkit/internal/probe"
	"github.com/KilimcininKorOglu/pingkit/internal/session"
	"github.com/olekukonko/tablewriter"
)

// TableFormatter formats session results as a detailed table.
type TableFormatter struct {
	config Config
	colors *ColorScheme
}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter(config Config) *TableFormatter {
	var colors *ColorScheme
	if config.Colors {
		colors = DefaultColorScheme()
	}

	return &TableFormatter{
		config: config,
		colors: colors,
	}
}

// Format formats the session result as a detailed table.
func (f *TableFormatter) Format(result *session.Result) ([]byte, error) {
	var buf bytes.Buffer

	// Header information
	f.writeHeader(&buf, result)

	// Create table
	table := tablewriter.NewWriter(&buf)
	f.configureTable(table)
	table.SetHeader([]string{"Seq", "Result", "From", "RTT (ms)", "Detail"})

	// Add data rows
	for _, out := range result.Outcomes {
		table.Append(f.formatOutcomeRow(out))
	}

	table.Render()

	// Summary
	f.writeSummary(&buf, result)

	return buf.Bytes(), nil
}

// writeHeader writes the session header information.
func (f *TableFormatter) writeHeader(buf *bytes.Buffer, result *session.Result) {
	target := result.Target
	if result.Hostname != "" && !f.config.NoHostname {
		target = fmt.Sprintf("%s [%s]", target, result.Hostname)
	}
	header := fmt.Sprintf("Target: %s (%s)\n", target, result.ResolvedIP)
	header += fmt.Sprintf("Method: %s | Time: %s\n\n",
		strings.ToUpper(result.Method),
		result.Timestamp.Format("2006-01-02 15:04:05"))

	if f.colors != nil {
		header = f.colors.Header.Sprint(header)
	}
	buf.WriteString(header)
}

// configureTable sets up the table appearance.
func (f *TableFormatter) configureTable(table *tablewriter.Table) {
	table.SetBorder(true)
	table.SetRowLine(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("│")
	table.SetColumnSeparator("│")
	table.SetRowSeparator("─")
	table.SetHeaderLine(true)
	table.SetTablePadding(" ")
}

// formatOutcomeRow formats a single probe as a table row.
func (f *TableFormatter) formatOutcomeRow(out probe.Outcome) []string {
	from := "-"
	if out.Peer != nil {
		from = out.Peer.String()
	}

	rtt := "-"
	detail := "-"
	switch out.Kind {
	case probe.KindReply:
		rtt = f.formatRTT(out.RTTMillis())
	case probe.KindUnreachable:
		detail = truncateString(fmt.Sprintf("%s (%d)", probe.UnreachableReason(out.Code), out.Code), 40)
	}

	result := out.Kind.String()
	if f.colors != nil && out.Lost() {
		result = f.colors.Timeout.Sprint(result)
	}

	return []string{strconv.Itoa(out.Seq), result, from, rtt, detail}
}

// formatRTT formats an RTT value with optional coloring.
func (f *TableFormatter) formatRTT(rtt float64) string {
	str := fmt.Sprintf("%.3f", rtt)

	if f.colors != nil {
		switch {
		case rtt < 50:
			str = f.colors.RTTLow.Sprint(str)
		case rtt < 150:
			str = f.colors.RTTMed.Sprint(str)
		default:
			str = f.colors.RTTHigh.Sprint(str)
		}
	}

	return str
}

// writeSummary writes the session summary.
func (f *TableFormatter) writeSummary(buf *bytes.Buffer, result *session.Result) {
	stats := result.Statistics
	buf.WriteString("\nSummary:\n")

	fmt.Fprintf(buf, "  Sent:          %d\n", stats.Sent)
	fmt.Fprintf(buf, "  Received:      %d\n", stats.Received)
	fmt.Fprintf(buf, "  Packet Loss:   %.1f%%\n", stats.LossPercent)
	if stats.Lost > 0 {
		fmt.Fprintf(buf, "  Lost:          %s\n", lossBreakdown(stats))
	}

	if stats.RTT != nil {
		fmt.Fprintf(buf, "  RTT:           min %.2f / avg %.2f / max %.2f ms (jitter %.2f)\n",
			stats.RTT.Min, stats.RTT.Avg, stats.RTT.Max, stats.RTT.Jitter)
	}
	fmt.Fprintf(buf, "  Duration:      %s\n", result.Duration.Round(1e6))

	buf.WriteString("  Status:        ")
	status := "Reachable"
	paint := func(s string) string { return s }
	if f.colors != nil {
		paint = func(s string) string { return f.colors.RTTLow.Sprint(s) }
	}
	if !stats.Replied() {
		status = "Unreachable"
		if f.colors != nil {
			paint = func(s string) string { return f.colors.RTTHigh.Sprint(s) }
		}
	}
	buf.WriteString(paint(status))
	buf.WriteString("\n")
}

// ContentType returns the MIME type for table output.
func (f *TableFormatter) ContentType() string {
	return "text/plain"
}

// FileExtension returns the file extension for table output.
func (f *TableFormatter) FileExtension() string {
	return "txt"
}
