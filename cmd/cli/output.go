package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/valleykid/growup/client"
)

// parseValue reads a command line argument as JSON, falling back to the
// argument itself as a string. An empty argument is nil.
func parseValue(arg string) any {
	if arg == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(arg), &v); err != nil {
		return arg
	}
	return v
}

func (s *session) json() bool {
	return s.opts.Format == "json"
}

func (s *session) printJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, string(data))
	return nil
}

// printValue prints a single result: JSON in either format, strings bare in
// text.
func (s *session) printValue(v any) error {
	if str, ok := v.(string); ok && !s.json() {
		fmt.Fprintln(s.out, str)
		return nil
	}
	return s.printJSON(v)
}

func (s *session) printList(names []string) error {
	if s.json() {
		return s.printJSON(names)
	}
	if len(names) == 0 {
		fmt.Fprintln(s.out, "(none)")
		return nil
	}
	fmt.Fprintln(s.out, strings.Join(names, "\n"))
	return nil
}

func (s *session) printRecords(records []any) error {
	if s.json() {
		return s.printJSON(records)
	}
	if len(records) == 0 {
		fmt.Fprintln(s.out, "(no records)")
		return nil
	}
	recordTable(records).render(s.out)
	fmt.Fprintf(s.out, "%d record(s)\n", len(records))
	return nil
}

func (s *session) printPage(q client.PageQuery, p client.Page) error {
	if s.json() {
		return s.printJSON(p)
	}
	if len(p.List) > 0 {
		recordTable(p.List).render(s.out)
	}
	page, num := q.Page, q.Num
	if page == 0 {
		page = client.DefaultPage
	}
	if num == 0 {
		num = client.DefaultNum
	}
	pages := (p.Total + num - 1) / num
	fmt.Fprintf(s.out, "page %d of %d (%d record(s) in range)\n", page, pages, p.Total)
	return nil
}
