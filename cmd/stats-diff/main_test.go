package main

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStats(t *testing.T) {
	input := "STAT curr_items 3\r\nSTAT bytes 42\r\nSTAT evictions 0\r\nEND\r\n"

	stats, err := parseStats(bufio.NewReader(strings.NewReader(input)))
	require.NoError(t, err)
	assert.Equal(t, Stats{"curr_items": 3, "bytes": 42, "evictions": 0}, stats)
}

func TestParseStatsErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "server error", input: "SERVER_ERROR operation not supported by storage\r\n"},
		{name: "garbage", input: "STAT bytes lots\r\nEND\r\n"},
		{name: "truncated", input: "STAT bytes 1\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseStats(bufio.NewReader(strings.NewReader(tt.input)))
			assert.Error(t, err)
		})
	}
}

func TestCompareStats(t *testing.T) {
	ref := Stats{"curr_items": 3, "bytes": 42, "get_hits": 10}
	sut := Stats{"curr_items": 3, "bytes": 40, "get_hits": 2}

	var out bytes.Buffer
	differences := compareStats(&out, ref, sut, map[string]bool{"curr_items": true, "bytes": true})
	assert.Equal(t, 1, differences)
	assert.Contains(t, out.String(), "bytes differs: REF=42, SUT=40")
	assert.Contains(t, out.String(), "curr_items: 3")
	assert.NotContains(t, out.String(), "get_hits")

	out.Reset()
	assert.Equal(t, 2, compareStats(&out, ref, sut, nil))

	out.Reset()
	assert.Equal(t, 1, compareStats(&out, ref, Stats{"curr_items": 3, "bytes": 42}, nil))
	assert.Contains(t, out.String(), "get_hits: missing in SYSTEM")
}
