package actions

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Output is a single step output.
type Output struct {
	Name  string
	Value string
}

// Outputs collects step outputs in the order they were set.
type Outputs struct {
	items []Output
}

// Set records an output, replacing an earlier value with the same name.
func (o *Outputs) Set(name string, value any) {
	v := fmt.Sprint(value)
	for i := range o.items {
		if o.items[i].Name == name {
			o.items[i].Value = v
			return
		}
	}
	o.items = append(o.items, Output{Name: name, Value: v})
}

// Get returns the value of a previously set output.
func (o *Outputs) Get(name string) (string, bool) {
	for _, it := range o.items {
		if it.Name == name {
			return it.Value, true
		}
	}
	return "", false
}

// Write renders the outputs in the GITHUB_OUTPUT file format. Every value uses the
// delimiter form so multi-line bodies survive.
func (o *Outputs) Write(w io.Writer) error {
	for i, it := range o.items {
		delim := fmt.Sprintf("ghadelimiter_%d", i)
		for strings.Contains(it.Value, delim) {
			delim += "_"
		}
		if _, err := fmt.Fprintf(w, "%s<<%s\n%s\n%s\n", it.Name, delim, it.Value, delim); err != nil {
			return fmt.Errorf("failed to write output %s: %w", it.Name, err)
		}
	}
	return nil
}

// Flush appends the outputs to the file at path. With an empty path the outputs
// are written to fallback instead.
func (o *Outputs) Flush(path string, fallback io.Writer) error {
	if path == "" {
		return o.Write(fallback)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	if err := o.Write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
