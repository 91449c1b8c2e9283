package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/ironsheep/leafmask/internal/batch"
)

// JSONWriter writes summaries as a JSON Document.
type JSONWriter struct {
	output io.Writer
	indent string
	now    func() time.Time
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint indents the output by two spaces.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) { w.indent = "  " }
}

// NewJSONWriter creates a JSONWriter that outputs to output.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{output: output, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write encodes s.
func (w *JSONWriter) Write(s *batch.Summary) (int, error) {
	var (
		data []byte
		err  error
	)
	doc := NewDocument(s, w.now())
	if w.indent != "" {
		data, err = json.MarshalIndent(doc, "", w.indent)
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return 0, err
	}
	return w.output.Write(append(data, '\n'))
}
