// Package output renders dfsctl's command results: a borderless column
// table for terminals, or JSON/YAML of the underlying adminclient value
// for scripting.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// Format selects how a command result is rendered.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses the -o flag's value; empty means table.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format %q (valid: table, json, yaml)", s)
	}
}

// Table is the terminal rendering of one command result. A nil Header
// renders a headerless listing, which is how key-value cards print.
type Table struct {
	Header []string
	Rows   [][]string
}

// KeyValues builds a headerless two-column Table from label/value pairs,
// the shape `dfsctl status` prints.
func KeyValues(pairs [][2]string) Table {
	t := Table{}
	for _, p := range pairs {
		t.Rows = append(t.Rows, []string{p[0], p[1]})
	}
	return t
}

// Render writes one command result to w: the table for terminals, or data
// itself (the adminclient value the table was built from) as indented
// JSON or YAML.
func Render(w io.Writer, format Format, data any, table Table) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer func() { _ = enc.Close() }()
		return enc.Encode(data)
	default:
		return renderTable(w, table)
	}
}

func renderTable(w io.Writer, t Table) error {
	tw := tablewriter.NewWriter(w)
	if len(t.Header) > 0 {
		tw.SetHeader(t.Header)
	}
	tw.SetAutoWrapText(false)
	tw.SetAutoFormatHeaders(true)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetCenterSeparator("")
	tw.SetColumnSeparator("")
	tw.SetRowSeparator("")
	tw.SetHeaderLine(false)
	tw.SetBorder(false)
	tw.SetTablePadding("  ")
	tw.SetNoWhiteSpace(true)
	for _, row := range t.Rows {
		tw.Append(row)
	}
	tw.Render()
	return nil
}
