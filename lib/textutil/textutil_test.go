package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeHeader(t *testing.T) {
	table := []struct {
		input    string
		expected string
	}{
		{input: "Channel ID", expected: "channel id"},
		{input: " SNR/MER\n", expected: "snr/mer"},
		{input: "Correctable\n   Codewords", expected: "correctable codewords"},
	}

	for _, row := range table {
		require.Equal(t, row.expected, NormalizeHeader(row.input))
	}
}

func TestMatchName(t *testing.T) {
	require.True(t, MatchName("Downstream Bonded Channels", []string{"downstream"}))
	require.True(t, MatchName("Admin Log In Successful", []string{"login"}))
	require.False(t, MatchName("Upstream Bonded Channels", []string{"downstream", "ofdm"}))
}
