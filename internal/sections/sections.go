// Package sections groups the flat row stream of a status page into named
// blocks. A one-cell row names a new section, the first multi-cell row after
// it is the section's header and every following row of the same width is a
// data row.
package sections

import (
	"docsis-exporter/internal/tables"
	"docsis-exporter/lib/textutil"
)

// Section is one titled block of a page. Header holds the normalized
// (lowercase, trimmed) column names and is empty until a header row was seen.
// Every row in Rows has exactly len(Header) cells.
type Section struct {
	Name   string
	Header []string
	Rows   []tables.Row
}

// Index maps each normalized header name to its column, the first
// occurrence wins when a header repeats a name.
func (s Section) Index() map[string]int {
	index := make(map[string]int, len(s.Header))
	for i, name := range s.Header {
		if _, exists := index[name]; exists {
			continue
		}
		index[name] = i
	}
	return index
}

// Sections is the result of Classify.
type Sections struct {
	// ByName holds the sections keyed by their title. When a title occurs more
	// than once in a page the later section replaces the earlier one.
	ByName map[string]*Section
	// Order lists each title once, in the order it first appeared.
	Order []string
	// Replaced lists the titles that occurred more than once.
	Replaced []string
	// Dropped counts rows that were not stored: rows before the first title
	// and data rows whose width differs from their header.
	Dropped int
}

// Classify runs the section state machine over rows.
func Classify(rows []tables.Row) Sections {
	result := Sections{ByName: map[string]*Section{}}

	var current *Section
	for _, row := range rows {
		if len(row) == 1 {
			current = &Section{Name: row[0]}
			if _, exists := result.ByName[current.Name]; exists {
				result.Replaced = append(result.Replaced, current.Name)
			} else {
				result.Order = append(result.Order, current.Name)
			}
			result.ByName[current.Name] = current
			continue
		}
		if current == nil {
			result.Dropped++
			continue
		}
		if len(current.Header) == 0 {
			current.Header = make([]string, len(row))
			for i, cell := range row {
				current.Header[i] = textutil.NormalizeHeader(cell)
			}
			continue
		}
		if len(row) != len(current.Header) {
			result.Dropped++
			continue
		}
		current.Rows = append(current.Rows, row)
	}

	return result
}

// Each calls fn for every section in Order.
func (s Sections) Each(fn func(section *Section)) {
	for _, name := range s.Order {
		section, ok := s.ByName[name]
		if !ok {
			continue
		}
		fn(section)
	}
}
