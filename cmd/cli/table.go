package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// table renders rows as a boxed ASCII grid.
type table struct {
	headers []string
	rows    [][]string
}

func (t *table) row(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) render(w io.Writer) {
	if len(t.headers) == 0 && len(t.rows) == 0 {
		return
	}

	widths := t.widths()
	separator := separatorLine(widths)

	fmt.Fprintln(w, separator)
	if len(t.headers) > 0 {
		fmt.Fprintln(w, formatRow(t.headers, widths))
		fmt.Fprintln(w, separator)
	}
	for _, row := range t.rows {
		fmt.Fprintln(w, formatRow(row, widths))
	}
	fmt.Fprintln(w, separator)
}

func (t *table) widths() []int {
	numCols := len(t.headers)
	for _, row := range t.rows {
		numCols = max(numCols, len(row))
	}

	widths := make([]int, numCols)
	for i, h := range t.headers {
		widths[i] = max(widths[i], len(h))
	}
	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}
	for i := range widths {
		widths[i] = max(widths[i], 1)
	}
	return widths
}

func separatorLine(widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("-", w+2)
	}
	return "+" + strings.Join(parts, "+") + "+"
}

// formatRow left-aligns every cell in its column.
func formatRow(row []string, widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		parts[i] = " " + cell + strings.Repeat(" ", w-len(cell)+1)
	}
	return "|" + strings.Join(parts, "|") + "|"
}

// recordTable lays out records one per row. When every record is an object
// the columns are the union of their fields; otherwise a single value
// column holds each record as JSON.
func recordTable(records []any) *table {
	fields := map[string]struct{}{}
	for _, r := range records {
		obj, ok := r.(map[string]any)
		if !ok {
			fields = nil
			break
		}
		for k := range obj {
			fields[k] = struct{}{}
		}
	}

	t := &table{}
	if fields == nil || len(records) == 0 {
		t.headers = []string{"value"}
		for _, r := range records {
			t.row(cellText(r))
		}
		return t
	}

	for k := range fields {
		t.headers = append(t.headers, k)
	}
	sort.Strings(t.headers)
	for _, r := range records {
		obj := r.(map[string]any)
		cells := make([]string, len(t.headers))
		for i, h := range t.headers {
			if v, ok := obj[h]; ok {
				cells[i] = cellText(v)
			}
		}
		t.row(cells...)
	}
	return t
}

// cellText shows strings bare and everything else as JSON.
func cellText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
