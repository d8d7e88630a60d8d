package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/volatiletech/strmangle"
)

type printer interface {
	printOne(w io.Writer, columns []string, row map[string]any) error
	printAll(w io.Writer, columns []string, rows []map[string]any) error
}

func newPrinter(format, tmpl string) (printer, error) {
	if tmpl != "" {
		t, err := template.New("row").Funcs(sprig.TxtFuncMap()).Parse(tmpl)
		if err != nil {
			return nil, fmt.Errorf("parsing row template: %w", err)
		}
		return templatePrinter{t}, nil
	}

	switch format {
	case "json":
		return jsonPrinter{}, nil
	case "table", "":
		return tablePrinter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

type jsonPrinter struct{}

func (jsonPrinter) printOne(w io.Writer, _ []string, row map[string]any) error {
	return writeJSON(w, row)
}

func (jsonPrinter) printAll(w io.Writer, _ []string, rows []map[string]any) error {
	return writeJSON(w, rows)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type tablePrinter struct{}

func (p tablePrinter) printOne(w io.Writer, columns []string, row map[string]any) error {
	return p.printAll(w, columns, []map[string]any{row})
}

func (tablePrinter) printAll(w io.Writer, columns []string, rows []map[string]any) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	if len(columns) > 0 {
		for i, col := range columns {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, strmangle.TitleCase(col))
		}
		fmt.Fprintln(tw)
	}

	for _, row := range rows {
		for i, col := range columns {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			if v := row[col]; v != nil {
				fmt.Fprint(tw, v)
			} else {
				fmt.Fprint(tw, "NULL")
			}
		}
		fmt.Fprintln(tw)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "(%d row(s))\n", len(rows))
	return err
}

type templatePrinter struct {
	t *template.Template
}

func (p templatePrinter) printOne(w io.Writer, _ []string, row map[string]any) error {
	if err := p.t.Execute(w, row); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}

func (p templatePrinter) printAll(w io.Writer, columns []string, rows []map[string]any) error {
	for _, row := range rows {
		if err := p.printOne(w, columns, row); err != nil {
			return err
		}
	}
	return nil
}
