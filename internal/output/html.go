package output

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/KilimcininKorOglu/pingkit/internal/probe"
	"github.com/KilimcininKorOglu/pingkit/internal/session"
)

// HTMLFormatter formats session results as an HTML report.
type HTMLFormatter struct {
	config   Config
	template *template.Template
}

// NewHTMLFormatter creates a new HTML formatter.
func NewHTMLFormatter(config Config) *HTMLFormatter {
	tmpl := template.Must(template.New("report").Funcs(template.FuncMap{
		"formatTime": func(t time.Time) string {
			return t.Format("2006-01-02 15:04:05 MST")
		},
	}).Parse(htmlTemplate))

	return &HTMLFormatter{
		config:   config,
		template: tmpl,
	}
}

// Format formats the session result as an HTML report.
func (f *HTMLFormatter) Format(result *session.Result) ([]byte, error) {
	data := f.prepareData(result)

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.Bytes(), nil
}

// htmlData holds the data for the HTML template.
type htmlData struct {
	Title       string
	Target      string
	ResolvedIP  string
	Hostname    string
	Timestamp   time.Time
	Method      string
	Probes      []htmlProbe
	Summary     htmlSummary
	GeneratedAt time.Time
}

// htmlProbe represents one probe for HTML rendering.
type htmlProbe struct {
	Seq      int
	Result   string
	From     string
	RTT      string
	RTTClass string
	Detail   string
}

// htmlSummary holds summary data for HTML.
type htmlSummary struct {
	Sent        int
	Received    int
	PacketLoss  string
	MinRTT      string
	AvgRTT      string
	MaxRTT      string
	Breakdown   string
	Status      string
	StatusClass string
}

// prepareData converts a Result to template data.
func (f *HTMLFormatter) prepareData(result *session.Result) *htmlData {
	data := &htmlData{
		Title:       fmt.Sprintf("Ping %s", result.Target),
		Target:      result.Target,
		ResolvedIP:  result.ResolvedIP.String(),
		Timestamp:   result.Timestamp,
		Method:      result.Method,
		Probes:      make([]htmlProbe, len(result.Outcomes)),
		GeneratedAt: time.Now(),
	}
	if !f.config.NoHostname {
		data.Hostname = result.Hostname
	}

	for i, out := range result.Outcomes {
		p := htmlProbe{
			Seq:      out.Seq,
			Result:   out.Kind.String(),
			From:     "-",
			RTT:      "-",
			RTTClass: "timeout",
			Detail:   "-",
		}
		if out.Peer != nil {
			p.From = out.Peer.String()
		}

		switch out.Kind {
		case probe.KindReply:
			p.RTT = formatRTTHTML(out.RTTMillis())
			p.RTTClass = rttClass(out.RTTMillis())
		case probe.KindUnreachable:
			p.Detail = fmt.Sprintf("%s (code %d)", probe.UnreachableReason(out.Code), out.Code)
		}

		data.Probes[i] = p
	}

	stats := result.Statistics
	data.Summary = htmlSummary{
		Sent:       stats.Sent,
		Received:   stats.Received,
		PacketLoss: fmt.Sprintf("%.1f%%", stats.LossPercent),
		MinRTT:     "-",
		AvgRTT:     "-",
		MaxRTT:     "-",
		Breakdown:  lossBreakdown(stats),
	}
	if stats.RTT != nil {
		data.Summary.MinRTT = formatRTTHTML(stats.RTT.Min)
		data.Summary.AvgRTT = formatRTTHTML(stats.RTT.Avg)
		data.Summary.MaxRTT = formatRTTHTML(stats.RTT.Max)
	}

	switch {
	case !stats.Replied():
		data.Summary.Status = "Unreachable"
		data.Summary.StatusClass = "error"
	case stats.Lost > 0:
		data.Summary.Status = "Lossy"
		data.Summary.StatusClass = "warning"
	default:
		data.Summary.Status = "Reachable"
		data.Summary.StatusClass = "success"
	}

	return data
}

// formatRTTHTML formats RTT for HTML display.
func formatRTTHTML(rtt float64) string {
	if rtt < 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f ms", rtt)
}

// rttClass returns CSS class based on RTT value.
func rttClass(rtt float64) string {
	switch {
	case rtt < 50:
		return "good"
	case rtt < 150:
		return "medium"
	default:
		return "bad"
	}
}

// ContentType returns the MIME type for HTML output.
func (f *HTMLFormatter) ContentType() string {
	return "text/html"
}

// FileExtension returns the file extension for HTML output.
func (f *HTMLFormatter) FileExtension() string {
	return "html"
}

// HTML template
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}} - pingkit report</title>
    <style>
        :root {
            --bg: #16181d;
            --panel: #20242c;
            --head: #2d323d;
            --text: #d8dee9;
            --muted: #6b7385;
            --accent: #88c0d0;
            --success: #a3be8c;
            --warning: #ebcb8b;
            --error: #bf616a;
            --border: #353b47;
        }
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: system-ui, -apple-system, 'Segoe UI', Roboto, sans-serif;
            background: var(--bg);
            color: var(--text);
            line-height: 1.5;
            padding: 2rem;
        }
        main { max-width: 960px; margin: 0 auto; }
        header { margin-bottom: 1.5rem; border-bottom: 1px solid var(--border); padding-bottom: 1rem; }
        h1 { color: var(--accent); font-size: 1.75rem; }
        .meta { display: flex; flex-wrap: wrap; gap: 1.5rem; margin-bottom: 1.5rem; }
        .meta div { background: var(--panel); border: 1px solid var(--border); border-radius: 6px; padding: 0.75rem 1rem; }
        .meta span { display: block; color: var(--muted); font-size: 0.75rem; text-transform: uppercase; }
        table { width: 100%; border-collapse: collapse; background: var(--panel); margin-bottom: 1.5rem; }
        th, td { padding: 0.5rem 0.75rem; text-align: left; border-bottom: 1px solid var(--border); }
        th { background: var(--head); font-size: 0.8rem; text-transform: uppercase; color: var(--muted); }
        td.mono { font-family: 'Menlo', 'Consolas', monospace; }
        .good { color: var(--success); }
        .medium { color: var(--warning); }
        .bad, .timeout, .error { color: var(--error); }
        .success { color: var(--success); }
        .warning { color: var(--warning); }
        .summary { display: grid; grid-template-columns: repeat(auto-fit, minmax(120px, 1fr)); gap: 1rem; }
        .summary div { background: var(--panel); border: 1px solid var(--border); border-radius: 6px; padding: 1rem; text-align: center; }
        .summary strong { display: block; font-size: 1.3rem; }
        .summary span { color: var(--muted); font-size: 0.75rem; text-transform: uppercase; }
        footer { margin-top: 2rem; color: var(--muted); font-size: 0.8rem; text-align: center; }
    </style>
</head>
<body>
<main>
    <header>
        <h1>{{.Title}}</h1>
    </header>

    <section class="meta">
        <div><span>Target</span>{{.Target}}</div>
        <div><span>Resolved IP</span>{{.ResolvedIP}}</div>
        {{if .Hostname}}<div><span>Hostname</span>{{.Hostname}}</div>{{end}}
        <div><span>Method</span>{{.Method}}</div>
        <div><span>Started</span>{{formatTime .Timestamp}}</div>
    </section>

    <table>
        <thead>
            <tr><th>Seq</th><th>Result</th><th>From</th><th>RTT</th><th>Detail</th></tr>
        </thead>
        <tbody>
            {{range .Probes}}
            <tr>
                <td>{{.Seq}}</td>
                <td class="{{.RTTClass}}">{{.Result}}</td>
                <td class="mono">{{.From}}</td>
                <td class="mono {{.RTTClass}}">{{.RTT}}</td>
                <td>{{.Detail}}</td>
            </tr>
            {{end}}
        </tbody>
    </table>

    <section class="summary">
        <div><strong>{{.Summary.Sent}}</strong><span>Sent</span></div>
        <div><strong>{{.Summary.Received}}</strong><span>Received</span></div>
        <div><strong>{{.Summary.PacketLoss}}</strong><span>Loss</span></div>
        <div><strong>{{.Summary.MinRTT}}</strong><span>Min</span></div>
        <div><strong>{{.Summary.AvgRTT}}</strong><span>Avg</span></div>
        <div><strong>{{.Summary.MaxRTT}}</strong><span>Max</span></div>
        <div><strong class="{{.Summary.StatusClass}}">{{.Summary.Status}}</strong><span>Status</span></div>
    </section>
    {{if .Summary.Breakdown}}<p>Lost: {{.Summary.Breakdown}}</p>{{end}}

    <footer>Generated by pingkit on {{formatTime .GeneratedAt}}</footer>
</main>
</body>
</html>
`
