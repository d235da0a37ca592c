package output

import (
	"io"
	"net"
	"os"

	"github.com/KilimcininKorOglu/pingkit/internal/probe"
	"github.com/KilimcininKorOglu/pingkit/internal/session"
	"github.com/mattn/go-isatty"
)

// Writer renders one session. Text output streams: Begin prints the
// header, Probe one line per outcome and Finish the statistics. Every
// other format is written whole by Finish.
type Writer struct {
	format    Format
	formatter Formatter
	output    io.Writer
	dest      string
	err       error
}

// NewWriter creates a writer on stdout. Colors are dropped when stdout is
// not a terminal.
func NewWriter(format Format, config Config) *Writer {
	if !IsTerminal(os.Stdout) {
		config.Colors = false
	}
	return NewWriterTo(os.Stdout, format, config)
}

// NewWriterTo creates a writer on output.
func NewWriterTo(output io.Writer, format Format, config Config) *Writer {
	return &Writer{
		format:    format,
		formatter: NewFormatter(format, config),
		output:    output,
	}
}

// Streaming reports whether probes are written as they finish.
func (w *Writer) Streaming() bool {
	return w.format == FormatText
}

// Begin writes the header for a session to dest.
func (w *Writer) Begin(target string, dest net.IP, method string) error {
	w.dest = dest.String()
	if !w.Streaming() {
		return nil
	}
	header := w.formatter.(*TextFormatter).Header(&session.Result{
		Target:     target,
		ResolvedIP: dest,
		Method:     method,
	})
	return w.write([]byte(header))
}

// Probe writes one probe line. It fits session.Config.OnProbe, so write
// errors are kept and returned by Finish.
func (w *Writer) Probe(out probe.Outcome) {
	if !w.Streaming() || w.err != nil {
		return
	}
	w.err = w.write([]byte(w.formatter.(*TextFormatter).FormatOutcome(out, w.dest)))
}

// Finish writes the statistics, or the whole result for non-streaming
// formats.
func (w *Writer) Finish(result *session.Result) error {
	if w.err != nil {
		return w.err
	}
	if w.Streaming() {
		return w.write([]byte(w.formatter.(*TextFormatter).Summary(result)))
	}
	data, err := w.formatter.Format(result)
	if err != nil {
		return err
	}
	return w.write(data)
}

func (w *Writer) write(data []byte) error {
	if _, err := w.output.Write(data); err != nil {
		return err
	}
	// Flush files so each probe line shows up immediately.
	if f, ok := w.output.(*os.File); ok {
		f.Sync()
	}
	return nil
}

// IsTerminal checks if the given file is a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// WriteToFile writes the session result to a file.
func WriteToFile(result *session.Result, filename string, formatter Formatter) error {
	data, err := formatter.Format(result)
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
