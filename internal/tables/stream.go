package tables

import (
	"strings"

	"docsis-exporter/lib/htmlutil"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// streamRow is a row being read from the token stream.
type streamRow struct {
	cells    []string
	cell     *strings.Builder
	hasTable bool
}

func (r *streamRow) closeCell() {
	if r.cell == nil {
		return
	}
	r.cells = append(r.cells, htmlutil.CollapseWhitespace(r.cell.String()))
	r.cell = nil
}

// streamLevel is one open <table>, the level at the bottom of the stack
// stands for the document outside of any table.
type streamLevel struct {
	table int
	row   *streamRow
}

type scanner struct {
	levels    []streamLevel
	nextTable int
	rows      []placedRow
}

func (s *scanner) top() *streamLevel {
	return &s.levels[len(s.levels)-1]
}

func (s *scanner) newTable() int {
	id := s.nextTable
	s.nextTable++
	return id
}

// closeRow emits the open row of the innermost level. Rows that contain a
// table are layout containers and rows without text are dropped, the same
// as for the parsed tree.
func (s *scanner) closeRow() {
	level := s.top()
	row := level.row
	if row == nil {
		return
	}
	level.row = nil
	row.closeCell()
	if row.hasTable || len(row.cells) == 0 || Row(row.cells).Blank() {
		return
	}
	if level.table < 0 {
		level.table = s.newTable()
	}
	s.rows = append(s.rows, placedRow{table: level.table, row: Row(row.cells)})
}

func (s *scanner) openRow() {
	s.closeRow()
	s.top().row = &streamRow{}
}

func (s *scanner) openCell() {
	level := s.top()
	if level.row == nil {
		level.row = &streamRow{}
	}
	level.row.closeCell()
	level.row.cell = &strings.Builder{}
}

func (s *scanner) openTable() {
	if row := s.top().row; row != nil {
		row.hasTable = true
	}
	s.levels = append(s.levels, streamLevel{table: s.newTable()})
}

// closeTable pops the innermost table. Rows that follow a top level table
// outside of any table are attributed to it, which is where a premature
// </table> leaves them.
func (s *scanner) closeTable() {
	if len(s.levels) == 1 {
		return
	}
	s.closeRow()
	closed := s.top().table
	s.levels = s.levels[:len(s.levels)-1]
	if len(s.levels) == 1 {
		s.levels[0].table = closed
	}
}

func (s *scanner) text(data string) {
	row := s.top().row
	if row == nil || row.cell == nil {
		return
	}
	row.cell.WriteString(data)
}

// scanRows reads rows straight from the token stream: <tr> opens a row and
// <td>/<th> a cell wherever they appear. The tree builder drops table
// markup found outside of a table, the token stream keeps it. It also
// returns the number of <tr> start tags in the document.
func scanRows(document string) ([]placedRow, int) {
	s := &scanner{levels: []streamLevel{{table: -1}}}
	tokenizer := html.NewTokenizer(strings.NewReader(document))
	rawRows := 0
	skip := atom.Atom(0)

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		token := tokenizer.Token()

		if skip != 0 {
			if tt == html.EndTagToken && token.DataAtom == skip {
				skip = 0
			}
			continue
		}

		switch tt {
		case html.TextToken:
			s.text(token.Data)
		case html.StartTagToken, html.SelfClosingTagToken:
			switch token.DataAtom {
			case atom.Table:
				s.openTable()
			case atom.Tr:
				rawRows++
				s.openRow()
			case atom.Td, atom.Th:
				s.openCell()
			case atom.Br:
				s.text("\n")
			case atom.Script, atom.Style:
				if tt == html.StartTagToken {
					skip = token.DataAtom
				}
			}
		case html.EndTagToken:
			switch token.DataAtom {
			case atom.Table:
				s.closeTable()
			case atom.Tr:
				s.closeRow()
			case atom.Td, atom.Th:
				if row := s.top().row; row != nil {
					row.closeCell()
				}
			}
		}
	}

	for len(s.levels) > 1 {
		s.closeTable()
	}
	s.closeRow()
	return s.rows, rawRows
}
