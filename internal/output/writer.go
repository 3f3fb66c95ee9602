package output

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/brocc/internal/assign"
	"github.com/hyperjump/brocc/internal/models"
)

// sink receives every result of a run in input order.
type sink interface {
	write(r assign.Result) error
	close() error
}

// Writer fans results out to one file per configured format.
type Writer struct {
	dir   string
	sinks []sink
}

// Create makes dir if needed and opens one file per format, truncating
// existing files. runID tags JSON records.
func Create(dir string, formats []Format, runID string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	w := &Writer{dir: dir}
	for _, f := range formats {
		path := filepath.Join(dir, FileNames[f])
		var (
			s   sink
			err error
		)
		switch f {
		case FormatStandard:
			s, err = newLineSink(path, "", StandardLine)
		case FormatFull:
			s, err = newLineSink(path, "", FullLine)
		case FormatLog:
			s, err = newLineSink(path, LogHeader, LogLine)
		case FormatJSONL:
			s, err = newJSONSink(path, runID)
		case FormatXLSX:
			s, err = newXLSXSink(path, runID)
		default:
			err = fmt.Errorf("unknown output format %q", f)
		}
		if err != nil {
			_ = w.Close()
			return nil, err
		}
		w.sinks = append(w.sinks, s)
	}
	return w, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// Write appends r to every output.
func (w *Writer) Write(r assign.Result) error {
	for _, s := range w.sinks {
		if err := s.write(r); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes every output, returning the first error.
func (w *Writer) Close() error {
	var errs []error
	for _, s := range w.sinks {
		errs = append(errs, s.close())
	}
	w.sinks = nil
	return errors.Join(errs...)
}

type lineSink struct {
	f      *os.File
	buf    *bufio.Writer
	format func(assign.Result) string
}

func newLineSink(path, header string, format func(assign.Result) string) (*lineSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	s := &lineSink{f: f, buf: bufio.NewWriter(f), format: format}
	if header != "" {
		if _, err := s.buf.WriteString(header + "\n"); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *lineSink) write(r assign.Result) error {
	_, err := s.buf.WriteString(s.format(r) + "\n")
	return err
}

func (s *lineSink) close() error {
	if err := s.buf.Flush(); err != nil {
		_ = s.f.Close()
		return err
	}
	return s.f.Close()
}

// Record is one JSON line of assignments.jsonl.
type Record struct {
	RunID string `json:"run_id"`
	*models.Classification
}

type jsonSink struct {
	f     *os.File
	buf   *bufio.Writer
	enc   *json.Encoder
	runID string
}

func newJSONSink(path, runID string) (*jsonSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(f)
	return &jsonSink{f: f, buf: buf, enc: json.NewEncoder(buf), runID: runID}, nil
}

func (s *jsonSink) write(r assign.Result) error {
	return s.enc.Encode(Record{RunID: s.runID, Classification: assign.Summarize(r)})
}

func (s *jsonSink) close() error {
	if err := s.buf.Flush(); err != nil {
		_ = s.f.Close()
		return err
	}
	return s.f.Close()
}
