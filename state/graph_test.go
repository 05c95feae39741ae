package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var graphNodes = []string{"a", "b", "c", "d", "e", "f", "relay-1", "relay-2"}

func parseLinks(t *testing.T, graph ...string) []Pair[string, string] {
	t.Helper()
	pairs, err := ParseGraph(graph, graphNodes)
	require.NoError(t, err)
	return pairs
}

func TestParseGraphCell(t *testing.T) {
	assert.Equal(t, []Pair[string, string]{
		{"a", "b"},
		{"a", "c"},
		{"b", "c"},
	}, parseLinks(t, "a, b, c"))
	// repeated cells collapse
	assert.Equal(t, []Pair[string, string]{{"a", "b"}}, parseLinks(t, "a,b", "B, A", "a,,b"))
}

func TestParseGraphChain(t *testing.T) {
	assert.Equal(t, []Pair[string, string]{
		{"a", "b"},
		{"b", "c"},
		{"c", "d"},
	}, parseLinks(t, "a ~ b ~ c ~ d"))

	// names may contain dashes
	assert.Equal(t, []Pair[string, string]{
		{"a", "relay-1"},
		{"relay-1", "relay-2"},
	}, parseLinks(t, "a~relay-1~relay-2"))
}

func TestParseGraphDiamond(t *testing.T) {
	pairs := parseLinks(t,
		"edge = relay-1, relay-2",
		"a ~ edge ~ b",
	)
	assert.Equal(t, []Pair[string, string]{
		{"a", "relay-1"},
		{"a", "relay-2"},
		{"b", "relay-1"},
		{"b", "relay-2"},
	}, pairs)
	assert.NotContains(t, pairs, Pair[string, string]{"relay-1", "relay-2"})
}

func TestParseGraphNestedGroups(t *testing.T) {
	pairs := parseLinks(t,
		"inner = a, b",
		"outer = inner, c",
		"outer",
		"outer ~ d",
	)
	assert.Equal(t, []Pair[string, string]{
		{"a", "b"},
		{"a", "c"},
		{"a", "d"},
		{"b", "c"},
		{"b", "d"},
		{"c", "d"},
	}, pairs)

	// a node both in a stage and the next one is not linked to itself
	assert.Equal(t, []Pair[string, string]{
		{"a", "b"},
	}, parseLinks(t, "g = a, b", "g ~ a"))
}

func TestParseGraphEmpty(t *testing.T) {
	pairs, err := ParseGraph(nil, graphNodes)
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestParseGraphErrors(t *testing.T) {
	for _, tc := range []struct {
		graph []string
		err   string
	}{
		{[]string{"a = b", "b = c", "c = a"}, "group a contains itself: a > b > c > a"},
		{[]string{"x = a", "x = b"}, "group x is defined twice"},
		{[]string{"a = b"}, "group a has the name of a node"},
		{[]string{"x = a = b"}, "a group has one '='"},
		{[]string{"= a, b"}, "missing group name"},
		{[]string{"x ="}, "group x: no nodes listed"},
		{[]string{"x = a, zz"}, "zz is not a node or group"},
		{[]string{"a"}, "a cell needs at least two nodes"},
		{[]string{"a, a"}, "a cell needs at least two nodes"},
		{[]string{""}, "no nodes listed"},
		{[]string{",,,,"}, "no nodes listed"},
		{[]string{"a ~ ~ b"}, "stage 2: no nodes listed"},
		{[]string{"a ~ q"}, "q is not a node or group"},
	} {
		_, err := ParseGraph(tc.graph, graphNodes)
		assert.ErrorContains(t, err, tc.err, "graph %v", tc.graph)
	}
}
