package report

import (
	"bytes"
	"encoding/json"

	"github.com/tabwatch/tabwatch/pkg/tabwatch/diff"
)

// jsonReport is the full JSON document: the diff result plus generation
// metadata.
type jsonReport struct {
	Meta   jsonMeta     `json:"meta"`
	Result *diff.Result `json:"result"`
}

// jsonMeta describes how and when the report was produced.
type jsonMeta struct {
	Generator   string `json:"generator"`
	Format      string `json:"format"`
	GeneratedAt string `json:"generated_at"`
}

// JSONFormatter renders the diff result as a single indented JSON document
// mirroring the result structure, with a meta section prepended.
type JSONFormatter struct{}

// Format writes the rendered report to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *diff.Result) error {
	doc := jsonReport{
		Meta: jsonMeta{
			Generator:   "tabwatch",
			Format:      "json",
			GeneratedAt: r.GeneratedAt.UTC().Format(timeLayout),
		},
		Result: r,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

// Ensure JSONFormatter implements Formatter.
var _ Formatter = (*JSONFormatter)(nil)
