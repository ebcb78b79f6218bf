// Package report renders diff results in several output formats
// (console, html, json, markdown).
//
// The package uses a registry pattern to allow registration of multiple
// formatter implementations that can be selected at runtime. Rendering is
// a pure transform: the same Result and options produce byte-identical
// output across runs, which keeps snapshot tests stable.
//
// Basic usage:
//
//	text, err := report.Render(result, "markdown")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(text)
package report

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/tabwatch/tabwatch/pkg/tabwatch/diff"
)

// timeLayout is the timestamp layout used by every renderer.
const timeLayout = "2006-01-02T15:04:05Z07:00"

// Formatter is the interface that all report formatters must implement.
type Formatter interface {
	// Format writes the rendered report to the buffer.
	// It returns an error if rendering fails.
	Format(w *bytes.Buffer, r *diff.Result) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry.
// It will replace any existing formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
// It returns an error if the formatter is not found.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown report format: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

// Render formats a diff result using the named formatter from the default
// registry and returns the rendered text.
func Render(r *diff.Result, format string) (string, error) {
	formatter, err := Get(format)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, r); err != nil {
		return "", fmt.Errorf("rendering %s report: %w", format, err)
	}
	return buf.String(), nil
}

// RenderToFile renders the report and additionally writes it to path.
func RenderToFile(r *diff.Result, format, path string) (string, error) {
	text, err := Render(r, format)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return text, nil
}

// rowCells returns a row's values in header order. Missing columns render
// as empty strings so output stays aligned and deterministic.
func rowCells(row map[string]string, headers []string) []string {
	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = row[h]
	}
	return cells
}

// changeHeaders picks the header set a row change should be rendered with.
func changeHeaders(rc diff.RowChange, r *diff.Result) []string {
	if rc.ChangeType == diff.ChangeRemoved {
		return r.OldHeaders
	}
	return r.NewHeaders
}
