package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KilimcininKorOglu/pingkit/internal/probe"
	"github.com/KilimcininKorOglu/pingkit/internal/session"
)

var sampleIP = net.ParseIP("192.0.2.7")

// Helper function to create a sample session result
func sampleResult() *session.Result {
	outcomes := []probe.Outcome{
		{Seq: 1, Kind: probe.KindReply, RTT: 12340 * time.Microsecond, Peer: sampleIP},
		{Seq: 2, Kind: probe.KindTimeout},
		{Seq: 3, Kind: probe.KindUnreachable, Code: probe.CodePortUnreachable, Peer: sampleIP},
		{Seq: 4, Kind: probe.KindReply, RTT: 20 * time.Millisecond, Peer: sampleIP},
		{Seq: 5, Kind: probe.KindReset},
	}
	return &session.Result{
		Target:     "lab",
		ResolvedIP: sampleIP,
		Hostname:   "echo.lab.example",
		Method:     "udp",
		Timestamp:  time.Date(2025, 12, 18, 12, 0, 0, 0, time.UTC),
		Duration:   4 * time.Second,
		Outcomes:   outcomes,
		Statistics: session.Summarize(outcomes),
	}
}

func unreachableResult() *session.Result {
	var outcomes []probe.Outcome
	for seq := 1; seq <= 5; seq++ {
		outcomes = append(outcomes, probe.Outcome{Seq: seq, Kind: probe.KindUnreachable, Code: 3})
	}
	return &session.Result{
		Target:     "192.0.2.7",
		ResolvedIP: sampleIP,
		Method:     "tcp",
		Outcomes:   outcomes,
		Statistics: session.Summarize(outcomes),
	}
}

func TestTextFormatter(t *testing.T) {
	formatter := NewTextFormatter(Config{Colors: false})

	data, err := formatter.Format(sampleResult())
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	output := string(data)

	wants := []string{
		"Pinging lab [192.0.2.7] using UDP:",
		"Reply from 192.0.2.7: seq=1 time=12.340 ms",
		"#2 Request timed out for the packet",
		"#3 ICMP Error from 192.0.2.7: Destination Port Unreachable (code 3)",
		"#5 Connection reset by peer",
		"Ping statistics for 192.0.2.7:",
		"Packets: Sent = 5, Received = 2, Lost = 3 (60% loss)",
		"Lost: 1 timed out, 1 unreachable (code 3 x1), 1 reset",
		"Minimum: 12.34 ms, Maximum: 20.00 ms, Average: 16.17 ms",
	}
	for _, want := range wants {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q\n%s", want, output)
		}
	}
}

func TestTextFormatterAllLost(t *testing.T) {
	formatter := NewTextFormatter(Config{Colors: false})
	summary := formatter.Summary(unreachableResult())

	if !strings.Contains(summary, "Lost = 5 (100% loss)") {
		t.Errorf("summary should report 100%% loss:\n%s", summary)
	}
	if !strings.Contains(summary, "Ping attempts failed.") {
		t.Errorf("summary should report failure:\n%s", summary)
	}
	if strings.Contains(summary, "Minimum") {
		t.Errorf("summary should omit RTT stats:\n%s", summary)
	}
}

func TestTextFormatterUsesDestWithoutPeer(t *testing.T) {
	formatter := NewTextFormatter(Config{})
	line := formatter.FormatOutcome(probe.Outcome{Seq: 9, Kind: probe.KindUnreachable, Code: 1}, "10.1.1.1")
	if !strings.Contains(line, "from 10.1.1.1: Destination Host Unreachable") {
		t.Errorf("FormatOutcome() = %q", line)
	}
}

func TestTableFormatter(t *testing.T) {
	formatter := NewTableFormatter(Config{Colors: false})

	data, err := formatter.Format(sampleResult())
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	output := string(data)

	for _, want := range []string{
		"Target: lab [echo.lab.example] (192.0.2.7)",
		"Method: UDP",
		"SEQ",
		"12.340",
		"Destination Port Unreachable (3)",
		"Received:      2",
		"Packet Loss:   60.0%",
		"Status:        Reachable",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q\n%s", want, output)
		}
	}

	data, _ = formatter.Format(unreachableResult())
	if !strings.Contains(string(data), "Status:        Unreachable") {
		t.Error("all-lost session should be reported unreachable")
	}
}

func TestJSONFormatter(t *testing.T) {
	formatter := NewJSONFormatter(Config{})

	data, err := formatter.Format(sampleResult())
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	var got JSONOutput
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if got.Target != "lab" || got.ResolvedIP != "192.0.2.7" || got.Method != "udp" {
		t.Errorf("header = %+v", got)
	}
	if len(got.Probes) != 5 {
		t.Fatalf("probes = %d, want 5", len(got.Probes))
	}
	if got.Probes[0].RTT != 12.34 || got.Probes[0].Result != "reply" {
		t.Errorf("probe 1 = %+v", got.Probes[0])
	}
	if p := got.Probes[2]; p.Code == nil || *p.Code != 3 || p.Reason != "Destination Port Unreachable" {
		t.Errorf("probe 3 = %+v", p)
	}
	if got.Probes[1].Code != nil {
		t.Error("timeout should carry no code")
	}
	if got.Summary.Sent != 5 || got.Summary.Received != 2 || got.Summary.LossPercent != 60 {
		t.Errorf("summary = %+v", got.Summary)
	}
	if got.RTT == nil || got.RTT.Min != 12.34 || got.RTT.Max != 20 {
		t.Errorf("rtt = %+v", got.RTT)
	}

	compact := NewJSONFormatterCompact(Config{})
	data, _ = compact.Format(unreachableResult())
	if bytes.Contains(data, []byte("\n")) {
		t.Error("compact JSON should be a single line")
	}
	if bytes.Contains(data, []byte(`"rtt"`)) {
		t.Error("rtt should be omitted when nothing replied")
	}
}

func TestCSVFormatter(t *testing.T) {
	formatter := NewCSVFormatter(Config{})

	data, err := formatter.Format(sampleResult())
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(records) != 6 {
		t.Fatalf("rows = %d, want 6", len(records))
	}
	if got := strings.Join(records[0], ","); got != "target,ip,method,seq,result,from,rtt_ms,code,reason" {
		t.Errorf("header = %q", got)
	}
	if records[1][6] != "12.340" {
		t.Errorf("rtt = %q, want 12.340", records[1][6])
	}
	if records[3][7] != "3" || records[3][8] != "Destination Port Unreachable" {
		t.Errorf("unreachable row = %v", records[3])
	}
	if records[2][6] != "" || records[2][7] != "" {
		t.Errorf("timeout row = %v", records[2])
	}

	formatter.SetColumns([]string{"seq", "lost"})
	data, _ = formatter.Format(sampleResult())
	if !strings.Contains(string(data), "2,true") {
		t.Errorf("custom columns output = %q", data)
	}
}

func TestHTMLFormatter(t *testing.T) {
	formatter := NewHTMLFormatter(Config{})

	data, err := formatter.Format(sampleResult())
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	output := string(data)

	for _, want := range []string{
		"<title>Ping lab - pingkit report</title>",
		"echo.lab.example",
		"12.34 ms",
		"Destination Port Unreachable (code 3)",
		"60.0%",
		`class="warning">Lossy`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q", want)
		}
	}

	data, _ = NewHTMLFormatter(Config{NoHostname: true}).Format(unreachableResult())
	if !strings.Contains(string(data), `class="error">Unreachable`) {
		t.Error("all-lost session should be marked unreachable")
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format Format
		ext    string
		mime   string
	}{
		{FormatText, "txt", "text/plain"},
		{FormatVerbose, "txt", "text/plain"},
		{FormatJSON, "json", "application/json"},
		{FormatCSV, "csv", "text/csv"},
		{FormatHTML, "html", "text/html"},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			f := NewFormatter(tt.format, Config{})
			if f.FileExtension() != tt.ext || f.ContentType() != tt.mime {
				t.Errorf("got %s/%s, want %s/%s", f.FileExtension(), f.ContentType(), tt.ext, tt.mime)
			}
		})
	}

	if Format(99).String() != "unknown" || Format(-1).String() != "unknown" {
		t.Error("unknown format should stringify as unknown")
	}
	if _, ok := NewFormatter(Format(99), Config{}).(*TextFormatter); !ok {
		t.Error("unknown format should render as text")
	}
}

func TestWriterStreamsText(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterTo(&buf, FormatText, Config{})
	if !w.Streaming() {
		t.Fatal("text output should stream")
	}

	result := sampleResult()
	if err := w.Begin(result.Target, result.ResolvedIP, result.Method); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "Pinging lab [192.0.2.7] using UDP:") {
		t.Errorf("header = %q", buf.String())
	}

	for _, out := range result.Outcomes[:2] {
		w.Probe(out)
	}
	if !strings.Contains(buf.String(), "Reply from 192.0.2.7: seq=1") ||
		!strings.Contains(buf.String(), "#2 Request timed out") {
		t.Errorf("probe lines missing:\n%s", buf.String())
	}

	if err := w.Finish(result); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Ping statistics for 192.0.2.7:") {
		t.Errorf("summary missing:\n%s", buf.String())
	}
}

type failingWriter struct{ err error }

func (f failingWriter) Write([]byte) (int, error) { return 0, f.err }

func TestWriterKeepsProbeErrors(t *testing.T) {
	boom := errors.New("disk full")
	w := NewWriterTo(failingWriter{boom}, FormatText, Config{})

	w.Begin("lab", sampleIP, "udp")
	w.Probe(probe.Outcome{Seq: 1, Kind: probe.KindTimeout})

	if err := w.Finish(sampleResult()); !errors.Is(err, boom) {
		t.Errorf("Finish() error = %v, want %v", err, boom)
	}
}

func TestWriterWholeFormats(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterTo(&buf, FormatJSON, Config{})
	if w.Streaming() {
		t.Fatal("JSON output should not stream")
	}

	result := sampleResult()
	w.Begin(result.Target, result.ResolvedIP, result.Method)
	w.Probe(result.Outcomes[0])
	if buf.Len() != 0 {
		t.Errorf("JSON writer wrote before Finish: %q", buf.String())
	}

	if err := w.Finish(result); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if !json.Valid(buf.Bytes()) {
		t.Errorf("Finish() produced invalid JSON: %s", buf.String())
	}

	path := filepath.Join(t.TempDir(), "report.html")
	if err := WriteToFile(sampleResult(), path, NewHTMLFormatter(Config{})); err != nil {
		t.Fatalf("WriteToFile() error = %v", err)
	}
	if data, err := os.ReadFile(path); err != nil || !bytes.HasPrefix(data, []byte("<!DOCTYPE html>")) {
		t.Errorf("report file = %q, %v", data, err)
	}
}
