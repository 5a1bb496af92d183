// Package output implements the streaming JSON array writer (spec §4.8).
// It is exclusively owned by one goroutine — the dispatcher's writer — and
// is never accessed concurrently.
package output

import (
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/silvanforge/keyhunter/internal/finding"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Writer emits a single well-formed JSON array incrementally: '[' on Open,
// comma-separated items on each Write, ']' on Close. Calling Close without
// any Write still yields "[]".
type Writer struct {
	w      io.Writer
	wrote  bool
	opened bool
}

// NewWriter wraps w. Open must be called before any Write.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Open writes the opening bracket. It is a no-op if already open.
func (wr *Writer) Open() error {
	if wr.opened {
		return nil
	}
	wr.opened = true
	_, err := wr.w.Write([]byte("["))
	return err
}

// Write serializes one finding as an OutputItem, preceded by a comma if it
// isn't the first item written.
func (wr *Writer) Write(f finding.Finding) error {
	if err := wr.Open(); err != nil {
		return err
	}
	if wr.wrote {
		if _, err := wr.w.Write([]byte(",")); err != nil {
			return err
		}
	}
	wr.wrote = true

	item := finding.OutputItem{FileHash: f.FileHash, Value: f.Value}
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	_, err = wr.w.Write(data)
	return err
}

// WriteAll writes a whole file's findings in order.
func (wr *Writer) WriteAll(findings []finding.Finding) error {
	for _, f := range findings {
		if err := wr.Write(f); err != nil {
			return err
		}
	}
	return nil
}

// Close writes the closing bracket. Safe to call even if Open was never
// called explicitly — it opens first so the document is still well-formed.
func (wr *Writer) Close() error {
	if err := wr.Open(); err != nil {
		return err
	}
	_, err := wr.w.Write([]byte("]"))
	return err
}
