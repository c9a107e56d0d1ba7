// Package ui renders CLI output: aligned tables, key/value lists and error messages.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Table prints rows under a header, columns aligned on the widest cell
type Table struct {
	writer  io.Writer
	headers []string
	rows    [][]string
	noColor bool
}

// NewTable creates a table with the given headers
func NewTable(w io.Writer, noColor bool, headers ...string) *Table {
	return &Table{writer: w, headers: headers, noColor: noColor}
}

// AddRow adds a row; missing cells render empty
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the table. Nothing is written without headers.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, header := range t.headers {
		widths[i] = len(header)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	header := newColor(t.noColor, color.Bold, color.FgCyan)
	rule := newColor(t.noColor, color.FgHiBlack)

	cells := make([]string, len(widths))
	for i, h := range t.headers {
		cells[i] = header.Sprint(padRight(h, widths[i]))
	}
	fmt.Fprintln(t.writer, strings.TrimRight(strings.Join(cells, "  "), " "))

	for i, w := range widths {
		cells[i] = rule.Sprint(strings.Repeat("─", w))
	}
	fmt.Fprintln(t.writer, strings.Join(cells, "  "))

	for _, row := range t.rows {
		for i := range widths {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			cells[i] = padRight(cell, widths[i])
		}
		fmt.Fprintln(t.writer, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}

// KeyValues prints "key: value" lines with the keys aligned
type KeyValues struct {
	writer  io.Writer
	keys    []string
	values  []string
	noColor bool
}

// NewKeyValues creates an empty list
func NewKeyValues(w io.Writer, noColor bool) *KeyValues {
	return &KeyValues{writer: w, noColor: noColor}
}

func (kv *KeyValues) Add(key, value string) {
	kv.keys = append(kv.keys, key)
	kv.values = append(kv.values, value)
}

func (kv *KeyValues) Render() {
	width := 0
	for _, k := range kv.keys {
		if len(k) > width {
			width = len(k)
		}
	}

	key := newColor(kv.noColor, color.FgCyan)
	for i, k := range kv.keys {
		fmt.Fprintf(kv.writer, "%s %s\n", key.Sprint(padRight(k+":", width+1)), kv.values[i])
	}
}

// Title prints a bold section title
func Title(w io.Writer, title string, noColor bool) {
	newColor(noColor, color.Bold, color.FgCyan).Fprintln(w, title)
}

func newColor(noColor bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if noColor {
		c.DisableColor()
	}
	return c
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
