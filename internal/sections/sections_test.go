package sections

import (
	"testing"

	"docsis-exporter/internal/tables"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	rows := []tables.Row{
		{"Startup", "Procedure"},
		{"Downstream Bonded Channels"},
		{"Channel ID", " Power ", "SNR/MER"},
		{"3", "0.5 dBmV", "38.2 dB"},
		{"4", "1.0 dBmV"},
		{"5", "1.1 dBmV", "37.0 dB", "extra"},
		{"6", "0.9 dBmV", "37.5 dB"},
		{"Upstream Bonded Channels"},
		{"Channel", "Power"},
		{"1", "44.0 dBmV"},
	}

	result := Classify(rows)

	require.Equal(t, []string{"Downstream Bonded Channels", "Upstream Bonded Channels"}, result.Order)
	require.Equal(t, 3, result.Dropped)
	require.Empty(t, result.Replaced)

	downstream := result.ByName["Downstream Bonded Channels"]
	require.NotNil(t, downstream)
	expected := &Section{
		Name:   "Downstream Bonded Channels",
		Header: []string{"channel id", "power", "snr/mer"},
		Rows: []tables.Row{
			{"3", "0.5 dBmV", "38.2 dB"},
			{"6", "0.9 dBmV", "37.5 dB"},
		},
	}
	if diff := cmp.Diff(expected, downstream); diff != "" {
		t.Fatalf("section mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, map[string]int{"channel id": 0, "power": 1, "snr/mer": 2}, downstream.Index())

	upstream := result.ByName["Upstream Bonded Channels"]
	require.Equal(t, []string{"channel", "power"}, upstream.Header)
	require.Len(t, upstream.Rows, 1)
}

func TestClassifyEmptySection(t *testing.T) {
	rows := []tables.Row{
		{"Upstream Bonded Channels"},
		{"Downstream Bonded Channels"},
		{"Channel ID", "Power"},
		{"1", "2 dBmV"},
	}

	result := Classify(rows)

	empty := result.ByName["Upstream Bonded Channels"]
	require.NotNil(t, empty)
	require.Empty(t, empty.Header)
	require.Empty(t, empty.Rows)
	require.Len(t, result.ByName["Downstream Bonded Channels"].Rows, 1)
}

func TestClassifyDuplicateNames(t *testing.T) {
	rows := []tables.Row{
		{"Downstream Bonded Channels"},
		{"Channel ID", "Power"},
		{"1", "2 dBmV"},
		{"2", "3 dBmV"},
		{"Upstream Bonded Channels"},
		{"Channel", "Power"},
		{"Downstream Bonded Channels"},
		{"Channel", "Power", "SNR"},
		{"9", "1 dBmV", "40 dB"},
	}

	result := Classify(rows)

	require.Equal(t, []string{"Downstream Bonded Channels"}, result.Replaced)
	require.Equal(t, []string{"Downstream Bonded Channels", "Upstream Bonded Channels"}, result.Order)

	last := result.ByName["Downstream Bonded Channels"]
	require.Equal(t, []string{"channel", "power", "snr"}, last.Header)
	require.Equal(t, []tables.Row{{"9", "1 dBmV", "40 dB"}}, last.Rows)

	var visited []string
	result.Each(func(section *Section) {
		visited = append(visited, section.Name)
	})
	require.Equal(t, result.Order, visited)
}
