// Package tables recovers the rows of every HTML table in a document.
//
// Modem status pages are hand-written, frequently unbalanced markup and
// often nest the data tables inside layout tables. Parsing goes through the
// html5 tree builder (via goquery), which repairs unclosed tags the way a
// browser would, and rows are attributed to their nearest enclosing table,
// so the exact nesting does not matter. Table markup the tree builder
// discards is recovered from the token stream.
package tables

import (
	"io"
	"strings"

	"docsis-exporter/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Row is the text of the cells of one table row in column order. Every cell
// is trimmed and its inner whitespace collapsed to single spaces.
type Row []string

// Table is the list of non-empty rows belonging to one <table> element.
type Table struct {
	Rows []Row
}

// Blank reports whether every cell of the row is empty.
func (r Row) Blank() bool {
	for _, cell := range r {
		if cell != "" {
			return false
		}
	}
	return true
}

// Extract returns the rows of every table in the document, flattened in
// document order.
func Extract(document string) ([]Row, error) {
	placed, err := collect(document)
	if err != nil {
		return nil, err
	}
	var rows []Row
	for _, p := range placed {
		rows = append(rows, p.row)
	}
	return rows, nil
}

// ExtractReader is Extract over a reader.
func ExtractReader(r io.Reader) ([]Row, error) {
	document, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Extract(string(document))
}

// ExtractTables returns the tables of the document in the order their first
// row appears. Tables without any non-empty row of their own (layout
// wrappers, empty placeholders) are left out.
func ExtractTables(document string) ([]Table, error) {
	placed, err := collect(document)
	if err != nil {
		return nil, err
	}

	var tables []Table
	index := map[int]int{}
	for _, p := range placed {
		i, ok := index[p.table]
		if !ok {
			i = len(tables)
			index[p.table] = i
			tables = append(tables, Table{})
		}
		tables[i].Rows = append(tables[i].Rows, p.row)
	}
	return tables, nil
}

// placedRow is a row together with an identifier of the table it belongs to.
type placedRow struct {
	table int
	row   Row
}

// collect reads the rows of the parsed tree. When the tree holds fewer rows
// than the document has <tr> tags, the tree builder has thrown rows away
// (rows after a premature </table>, rows with no table at all) and the rows
// are read from the token stream instead.
func collect(document string) ([]placedRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return nil, err
	}

	streamed, rawRows := scanRows(document)
	if doc.Find("tr").Length() < rawRows {
		return streamed, nil
	}

	var rows []placedRow
	ids := map[*html.Node]int{}
	walkRows(doc, func(table *html.Node, row Row) {
		id, ok := ids[table]
		if !ok {
			id = len(ids)
			ids[table] = id
		}
		rows = append(rows, placedRow{table: id, row: row})
	})
	return rows, nil
}

// walkRows calls fn for every non-blank row in document order together with
// the row's nearest enclosing table. A row that itself contains a table is a
// layout container: its text would be the concatenation of the inner table,
// so it is skipped in favour of the inner rows.
func walkRows(doc *goquery.Document, fn func(table *html.Node, row Row)) {
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.Find("table").Length() > 0 {
			return
		}

		cells := tr.ChildrenFiltered("th, td")
		row := make(Row, 0, cells.Length())
		for _, cell := range cells.Nodes {
			row = append(row, htmlutil.NodeText(cell))
		}
		if len(row) == 0 || row.Blank() {
			return
		}

		var table *html.Node
		if closest := tr.Closest("table"); closest.Length() > 0 {
			table = closest.Get(0)
		}
		fn(table, row)
	})
}
