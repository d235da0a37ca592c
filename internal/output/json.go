package output

import (
	"encoding/json"

	"github.com/KilimcininKorOglu/pingkit/internal/probe"
	"github.com/KilimcininKorOglu/pingkit/internal/session"
)

// JSONFormatter formats session results as JSON.
type JSONFormatter struct {
	config Config
	pretty bool
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(config Config) *JSONFormatter {
	return &JSONFormatter{
		config: config,
		pretty: true, // Default to pretty-printed
	}
}

// NewJSONFormatterCompact creates a JSON formatter with compact output.
func NewJSONFormatterCompact(config Config) *JSONFormatter {
	return &JSONFormatter{
		config: config,
		pretty: false,
	}
}

// SetPretty enables or disables pretty-printing.
func (f *JSONFormatter) SetPretty(pretty bool) {
	f.pretty = pretty
}

// Format formats the session result as JSON.
func (f *JSONFormatter) Format(result *session.Result) ([]byte, error) {
	// Convert to JSON-friendly output structure
	output := f.toJSONOutput(result)

	if f.pretty {
		return json.MarshalIndent(output, "", "  ")
	}
	return json.Marshal(output)
}

// JSONOutput is the JSON-serializable representation of a session result.
type JSONOutput struct {
	Target     string        `json:"target"`
	ResolvedIP string        `json:"resolved_ip"`
	Hostname   string        `json:"hostname,omitempty"`
	Timestamp  string        `json:"timestamp"`
	Method     string        `json:"method"`
	DurationMs float64       `json:"duration_ms"`
	Probes     []JSONProbe   `json:"probes"`
	Summary    JSONSummary   `json:"summary"`
	RTT        *JSONRTTStats `json:"rtt,omitempty"`
}

// JSONProbe represents a single probe in JSON format.
type JSONProbe struct {
	Seq    int     `json:"seq"`
	Result string  `json:"result"`
	From   string  `json:"from,omitempty"`
	RTT    float64 `json:"rtt_ms,omitempty"`
	Code   *int    `json:"code,omitempty"`
	Reason string  `json:"reason,omitempty"`
}

// JSONSummary represents the session counters in JSON format.
type JSONSummary struct {
	Sent             int         `json:"sent"`
	Received         int         `json:"received"`
	Lost             int         `json:"lost"`
	LossPercent      float64     `json:"loss_percent"`
	Timeouts         int         `json:"timeouts"`
	Unreachable      int         `json:"unreachable"`
	Resets           int         `json:"resets"`
	Malformed        int         `json:"malformed"`
	UnreachableCodes map[int]int `json:"unreachable_codes,omitempty"`
}

// JSONRTTStats represents round-trip statistics in JSON format.
type JSONRTTStats struct {
	Min    float64 `json:"min_ms"`
	Max    float64 `json:"max_ms"`
	Avg    float64 `json:"avg_ms"`
	Jitter float64 `json:"jitter_ms"`
}

// toJSONOutput converts a Result to JSONOutput.
func (f *JSONFormatter) toJSONOutput(result *session.Result) *JSONOutput {
	stats := result.Statistics
	output := &JSONOutput{
		Target:     result.Target,
		ResolvedIP: result.ResolvedIP.String(),
		Hostname:   result.Hostname,
		Timestamp:  result.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		Method:     result.Method,
		DurationMs: roundFloat(float64(result.Duration)/1e6, 3),
		Probes:     make([]JSONProbe, len(result.Outcomes)),
		Summary: JSONSummary{
			Sent:             stats.Sent,
			Received:         stats.Received,
			Lost:             stats.Lost,
			LossPercent:      roundFloat(stats.LossPercent, 1),
			Timeouts:         stats.Timeouts,
			Unreachable:      stats.Unreachable,
			Resets:           stats.Resets,
			Malformed:        stats.Malformed,
			UnreachableCodes: stats.UnreachableCodes,
		},
	}

	if stats.RTT != nil {
		output.RTT = &JSONRTTStats{
			Min:    roundFloat(stats.RTT.Min, 3),
			Max:    roundFloat(stats.RTT.Max, 3),
			Avg:    roundFloat(stats.RTT.Avg, 3),
			Jitter: roundFloat(stats.RTT.Jitter, 3),
		}
	}

	for i, out := range result.Outcomes {
		output.Probes[i] = toJSONProbe(out)
	}

	return output
}

// toJSONProbe converts an Outcome to JSONProbe.
func toJSONProbe(out probe.Outcome) JSONProbe {
	jp := JSONProbe{
		Seq:    out.Seq,
		Result: out.Kind.String(),
	}

	if out.Peer != nil {
		jp.From = out.Peer.String()
	}

	switch out.Kind {
	case probe.KindReply:
		jp.RTT = roundFloat(out.RTTMillis(), 3)
	case probe.KindUnreachable:
		code := out.Code
		jp.Code = &code
		jp.Reason = probe.UnreachableReason(code)
	}

	return jp
}

// ContentType returns the MIME type for JSON output.
func (f *JSONFormatter) ContentType() string {
	return "application/json"
}

// FileExtension returns the file extension for JSON output.
func (f *JSONFormatter) FileExtension() string {
	return "json"
}

// Helper function to round floats
func roundFloat(val float64, precision int) float64 {
	if precision == 0 {
		return float64(int(val + 0.5))
	}
	p := float64(1)
	for i := 0; i < precision; i++ {
		p *= 10
	}
	return float64(int(val*p+0.5)) / p
}
