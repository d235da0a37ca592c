package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/KilimcininKorOglu/pingkit/internal/probe"
	"github.com/KilimcininKorOglu/pingkit/internal/session"
)

// CSVFormatter formats session results as CSV, one row per probe.
type CSVFormatter struct {
	config  Config
	columns []string
}

// Default CSV columns
var defaultCSVColumns = []string{
	"target", "ip", "method", "seq", "result", "from", "rtt_ms", "code", "reason",
}

// NewCSVFormatter creates a new CSV formatter.
func NewCSVFormatter(config Config) *CSVFormatter {
	return &CSVFormatter{
		config:  config,
		columns: defaultCSVColumns,
	}
}

// SetColumns allows customizing which columns to include.
func (f *CSVFormatter) SetColumns(columns []string) {
	f.columns = columns
}

// Format formats the session result as CSV.
func (f *CSVFormatter) Format(result *session.Result) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	// Write header
	if err := writer.Write(f.columns); err != nil {
		return nil, err
	}

	// Write data rows
	for _, out := range result.Outcomes {
		if err := writer.Write(f.formatRow(result, out)); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// formatRow formats a single probe as a CSV row.
func (f *CSVFormatter) formatRow(result *session.Result, out probe.Outcome) []string {
	row := make([]string, len(f.columns))

	for i, col := range f.columns {
		row[i] = f.getValue(result, out, col)
	}

	return row
}

// getValue returns the value for a specific column.
func (f *CSVFormatter) getValue(result *session.Result, out probe.Outcome, column string) string {
	switch column {
	case "target":
		return result.Target

	case "ip":
		return result.ResolvedIP.String()

	case "method":
		return result.Method

	case "seq":
		return strconv.Itoa(out.Seq)

	case "result":
		return out.Kind.String()

	case "from":
		if out.Peer != nil {
			return out.Peer.String()
		}
		return ""

	case "rtt_ms":
		if out.Kind == probe.KindReply {
			return formatFloat(out.RTTMillis())
		}
		return ""

	case "code":
		if out.Kind == probe.KindUnreachable {
			return strconv.Itoa(out.Code)
		}
		return ""

	case "reason":
		if out.Kind == probe.KindUnreachable {
			return probe.UnreachableReason(out.Code)
		}
		return ""

	case "lost":
		return strconv.FormatBool(out.Lost())

	default:
		return ""
	}
}

// formatFloat formats a float for CSV output.
func formatFloat(f float64) string {
	if f < 0 {
		return ""
	}
	return fmt.Sprintf("%.3f", f)
}

// ContentType returns the MIME type for CSV output.
func (f *CSVFormatter) ContentType() string {
	return "text/csv"
}

// FileExtension returns the file extension for CSV output.
func (f *CSVFormatter) FileExtension() string {
	return "csv"
}
