package tables

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const signalPage = `<html><head><title>Status</title></head><body>
<table class="simpleTable">
  <tr><th colspan="7"><strong>Downstream Bonded Channels</strong></th></tr>
  <tr>
    <td><strong>Channel ID</strong></td><td><strong>Lock Status</strong></td>
    <td><strong>Power</strong></td><td><strong>SNR/MER</strong></td>
    <td><strong>Corrected</strong></td><td><strong>Uncorrectables</strong></td>
  </tr>
  <tr><td>3</td><td>Locked</td><td>0.5&nbsp;dBmV</td><td>38.2 dB</td><td>1,204</td><td>0</td></tr>
  <tr><td>4</td><td>Locked<br>QAM256</td><td>
      1.1 dBmV
  </td><td>37.9 dB</td><td>12</td><td>3</td></tr>
  <tr><td> </td><td></td><td>&nbsp;</td></tr>
</table>
<table class="simpleTable">
  <tr><th colspan="3">Upstream Bonded Channels</th></tr>
  <tr><td>Channel</td><td>Channel Type</td><td>Power</td></tr>
  <tr><td>1</td><td>SC-QAM Upstream</td><td>44.0 dBmV</td></tr>
</table>
</body></html>`

func TestExtract(t *testing.T) {
	rows, err := Extract(signalPage)
	require.NoError(t, err)

	expected := []Row{
		{"Downstream Bonded Channels"},
		{"Channel ID", "Lock Status", "Power", "SNR/MER", "Corrected", "Uncorrectables"},
		{"3", "Locked", "0.5 dBmV", "38.2 dB", "1,204", "0"},
		{"4", "Locked QAM256", "1.1 dBmV", "37.9 dB", "12", "3"},
		{"Upstream Bonded Channels"},
		{"Channel", "Channel Type", "Power"},
		{"1", "SC-QAM Upstream", "44.0 dBmV"},
	}
	if diff := cmp.Diff(expected, rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractMalformed(t *testing.T) {
	// unclosed cells, rows and tables, stray closing tags
	doc := `<table><tr><th>Date<th>Level<th>Description
<tr><td>10/14/2025 09:12:44<td>Critical (3)<td>No Ranging Response received
<tr><td>10/14/2025 09:10:01<td>Notice (6)<td>Login success</span>
</div>`

	rows, err := Extract(doc)
	require.NoError(t, err)

	expected := []Row{
		{"Date", "Level", "Description"},
		{"10/14/2025 09:12:44", "Critical (3)", "No Ranging Response received"},
		{"10/14/2025 09:10:01", "Notice (6)", "Login success"},
	}
	if diff := cmp.Diff(expected, rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractStrayRows(t *testing.T) {
	table := []struct {
		name     string
		doc      string
		expected []Row
		tables   int
	}{
		{
			name: "rows after a premature table end",
			doc: `<table><tr><td>Downstream Bonded Channels</td></tr></table>` +
				`<tr><td>Channel ID</td><td>Power</td></tr><tr><td>3</td><td>0.5</td></tr>`,
			expected: []Row{
				{"Downstream Bonded Channels"},
				{"Channel ID", "Power"},
				{"3", "0.5"},
			},
			tables: 1,
		},
		{
			name: "rows without any table",
			doc:  `<body><tr><th>Channel</th><th>Power</th></tr><tr><td>1</td><td>44.0 dBmV<br></td></tr></body>`,
			expected: []Row{
				{"Channel", "Power"},
				{"1", "44.0 dBmV"},
			},
			tables: 1,
		},
		{
			name: "stray rows between two tables",
			doc: `<table><tr><td>Upstream Bonded Channels</td></tr></table>` +
				`<tr><td>Channel</td><td>Power</td></tr>` +
				`<script>var row = "<tr><td>x</td></tr>";</script>` +
				`<table><tr><td>Status</td></tr></table>`,
			expected: []Row{
				{"Upstream Bonded Channels"},
				{"Channel", "Power"},
				{"Status"},
			},
			tables: 2,
		},
	}

	for _, test := range table {
		t.Run(test.name, func(t *testing.T) {
			rows, err := Extract(test.doc)
			require.NoError(t, err)
			if diff := cmp.Diff(test.expected, rows); diff != "" {
				t.Fatalf("rows mismatch (-want +got):\n%s", diff)
			}

			tables, err := ExtractTables(test.doc)
			require.NoError(t, err)
			require.Len(t, tables, test.tables)
		})
	}
}

// the token stream reads well-formed pages the same way the tree does
func TestScanRowsMatchesTree(t *testing.T) {
	for _, doc := range []string{signalPage, nestedLayoutPage} {
		tree, err := Extract(doc)
		require.NoError(t, err)

		streamed, rawRows := scanRows(doc)
		require.Positive(t, rawRows)
		var rows []Row
		for _, p := range streamed {
			rows = append(rows, p.row)
		}
		if diff := cmp.Diff(tree, rows); diff != "" {
			t.Fatalf("rows mismatch (-tree +stream):\n%s", diff)
		}
	}
}

const nestedLayoutPage = `<table id="layout"><tr><td>
  <table><tr><td>Startup Procedure</td></tr>
    <tr><td>Procedure</td><td>Status</td></tr>
    <tr><td>Boot State</td><td>OK</td></tr>
  </table>
</td><td><table><tr><td>System Up Time</td><td>12h:03m:44s</td></tr></table></td></tr>
<tr><td>Footer</td></tr>
</table>`

func TestExtractNestedLayout(t *testing.T) {
	doc := nestedLayoutPage

	rows, err := Extract(doc)
	require.NoError(t, err)

	expected := []Row{
		{"Startup Procedure"},
		{"Procedure", "Status"},
		{"Boot State", "OK"},
		{"System Up Time", "12h:03m:44s"},
		{"Footer"},
	}
	if diff := cmp.Diff(expected, rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}

	tables, err := ExtractTables(doc)
	require.NoError(t, err)
	require.Len(t, tables, 3)
	require.Equal(t, Row{"Startup Procedure"}, tables[0].Rows[0])
	require.Equal(t, []Row{{"System Up Time", "12h:03m:44s"}}, tables[1].Rows)
	require.Equal(t, []Row{{"Footer"}}, tables[2].Rows)
}

func TestExtractTables(t *testing.T) {
	tables, err := ExtractTables(signalPage)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	require.Len(t, tables[0].Rows, 4)
	require.Len(t, tables[1].Rows, 3)

	tables, err = ExtractTables(`<p>no tables here</p><table><tr><td></td></tr></table>`)
	require.NoError(t, err)
	require.Len(t, tables, 0)
}
