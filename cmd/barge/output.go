package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Output Formatting
// =============================================================================

// Output renders command results as a table, JSON, or YAML. Data goes to
// stdout; messages go to stderr.
type Output struct {
	format string
	w      io.Writer
	errW   io.Writer
}

// NewOutput creates an Output for the given format (table, json, yaml).
func NewOutput(format string) *Output {
	return &Output{
		format: format,
		w:      os.Stdout,
		errW:   os.Stderr,
	}
}

// Print renders the rows in the selected format. The structured value is
// used for JSON and YAML; headers and rows for the table.
func (o *Output) Print(headers []string, rows [][]string, data any) error {
	switch o.format {
	case "json":
		return o.JSON(data)
	case "yaml":
		return o.YAML(data)
	case "", "table":
		o.Table(headers, rows)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want table, json, or yaml)", o.format)
	}
}

// Table writes an aligned table through tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON writes the value as indented JSON.
func (o *Output) JSON(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// YAML writes the value as YAML.
func (o *Output) YAML(v any) error {
	enc := yaml.NewEncoder(o.w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// Success writes a message to stderr, keeping stdout for data.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// shortID truncates a container ID for table display.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// dash substitutes a placeholder for empty table cells.
func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
