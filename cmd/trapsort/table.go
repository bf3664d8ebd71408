package main

import (
	"io"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// gridColumn is one column of a rendered grid. Numeric columns are right
// aligned and may be totalled.
type gridColumn struct {
	title   string
	numeric bool
}

func label(title string) gridColumn { return gridColumn{title: title} }

func number(title string) gridColumn { return gridColumn{title: title, numeric: true} }

// grid accumulates rows for a single go-pretty table.
type grid struct {
	columns []gridColumn
	rows    [][]string
	totals  bool
}

func newGrid(columns ...gridColumn) *grid {
	return &grid{columns: columns}
}

// add appends a row. Short rows are padded and long rows truncated to the
// column count.
func (g *grid) add(cells ...string) {
	row := make([]string, len(g.columns))
	copy(row, cells)
	g.rows = append(g.rows, row)
}

// withTotals sums every numeric column into a footer row.
func (g *grid) withTotals() *grid {
	g.totals = true
	return g
}

func (g *grid) empty() bool { return len(g.rows) == 0 }

// render draws rounded borders on a terminal and plain ASCII elsewhere so
// piped output stays greppable.
func (g *grid) render(w io.Writer) string {
	if len(g.columns) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleDefault)
	if isTerminal(w) {
		tw.SetStyle(table.StyleRounded)
	}

	header := make(table.Row, 0, len(g.columns))
	configs := make([]table.ColumnConfig, 0, len(g.columns))
	for i, col := range g.columns {
		header = append(header, col.title)
		cfg := table.ColumnConfig{Number: i + 1, AlignHeader: text.AlignLeft, Align: text.AlignLeft}
		if col.numeric {
			cfg.Align = text.AlignRight
			cfg.AlignFooter = text.AlignRight
		}
		configs = append(configs, cfg)
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, cells := range g.rows {
		row := make(table.Row, len(cells))
		for i, cell := range cells {
			row[i] = cell
		}
		tw.AppendRow(row)
	}
	if g.totals && len(g.rows) > 1 {
		tw.AppendFooter(g.footer())
	}
	return tw.Render()
}

func (g *grid) footer() table.Row {
	sums := make([]int, len(g.columns))
	for _, cells := range g.rows {
		for i, col := range g.columns {
			if !col.numeric {
				continue
			}
			if n, err := strconv.Atoi(cells[i]); err == nil {
				sums[i] += n
			}
		}
	}
	row := make(table.Row, len(g.columns))
	for i, col := range g.columns {
		switch {
		case col.numeric:
			row[i] = strconv.Itoa(sums[i])
		case i == 0:
			row[i] = "total"
		default:
			row[i] = ""
		}
	}
	return row
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
