package state

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

/*
ParseGraph turns radio range lines into the set of links between nodes.

	relays = r1, r2, r3   // a group, usable anywhere a node name is
	cell = relays, a      // groups may contain other groups
	a, b, relays          // a cell: every node listed hears every other one
	src ~ relays ~ dst    // a chain: each stage hears the next one only

Members of one chain stage are not linked to each other by the chain, so
"src ~ relays ~ dst" is a diamond when relays has two nodes. Names are
case-insensitive.
*/
func ParseGraph(graph []string, nodes []string) ([]Pair[string, string], error) {
	g := &graphParser{
		nodes:  make(map[string]bool, len(nodes)),
		groups: make(map[string][]string),
		done:   make(map[string][]string),
	}
	for _, n := range nodes {
		g.nodes[strings.ToLower(n)] = true
	}

	ranges := make([]string, 0, len(graph))
	for _, line := range graph {
		line = strings.ToLower(strings.TrimSpace(line))
		name, members, isGroup := strings.Cut(line, "=")
		if !isGroup {
			ranges = append(ranges, line)
			continue
		}
		if strings.Contains(members, "=") {
			return nil, fmt.Errorf("invalid graph line %q: a group has one '='", line)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("invalid graph line %q: missing group name", line)
		}
		if g.nodes[name] {
			return nil, fmt.Errorf("group %s has the name of a node", name)
		}
		if _, ok := g.groups[name]; ok {
			return nil, fmt.Errorf("group %s is defined twice", name)
		}
		list, err := splitNames(members)
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", name, err)
		}
		g.groups[name] = list
	}
	names := slices.Sorted(maps.Keys(g.groups))
	for _, name := range names {
		if _, err := g.expand(name, nil); err != nil {
			return nil, err
		}
	}

	links := make([]Pair[string, string], 0)
	for _, line := range ranges {
		var (
			l   []Pair[string, string]
			err error
		)
		if strings.Contains(line, "~") {
			l, err = g.chain(line)
		} else {
			l, err = g.cell(line)
		}
		if err != nil {
			return nil, fmt.Errorf("invalid graph line %q: %w", line, err)
		}
		links = append(links, l...)
	}
	SortPairs(links)
	return slices.Compact(links), nil
}

type graphParser struct {
	nodes  map[string]bool
	groups map[string][]string
	// expanded groups
	done map[string][]string
}

func splitNames(s string) ([]string, error) {
	out := make([]string, 0)
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no nodes listed")
	}
	return out, nil
}

// expand resolves a node or group name to the nodes it stands for
func (g *graphParser) expand(name string, path []string) ([]string, error) {
	if g.nodes[name] {
		return []string{name}, nil
	}
	if nodes, ok := g.done[name]; ok {
		return nodes, nil
	}
	members, ok := g.groups[name]
	if !ok {
		return nil, fmt.Errorf("%s is not a node or group", name)
	}
	if slices.Contains(path, name) {
		return nil, fmt.Errorf("group %s contains itself: %s", name, strings.Join(append(path, name), " > "))
	}
	out := make([]string, 0)
	for _, m := range members {
		nodes, err := g.expand(m, append(path, name))
		if err != nil {
			return nil, err
		}
		out = append(out, nodes...)
	}
	slices.Sort(out)
	out = slices.Compact(out)
	g.done[name] = out
	return out, nil
}

func (g *graphParser) expandAll(names []string) ([]string, error) {
	out := make([]string, 0)
	for _, name := range names {
		nodes, err := g.expand(name, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, nodes...)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func (g *graphParser) cell(line string) ([]Pair[string, string], error) {
	names, err := splitNames(line)
	if err != nil {
		return nil, err
	}
	nodes, err := g.expandAll(names)
	if err != nil {
		return nil, err
	}
	if len(nodes) < 2 {
		return nil, fmt.Errorf("a cell needs at least two nodes, got %v", nodes)
	}
	links := make([]Pair[string, string], 0)
	for i, a := range nodes {
		for _, b := range nodes[i+1:] {
			links = append(links, MakeSortedPair(a, b))
		}
	}
	return links, nil
}

func (g *graphParser) chain(line string) ([]Pair[string, string], error) {
	stages := strings.Split(line, "~")
	var (
		prev  []string
		links = make([]Pair[string, string], 0)
	)
	for i, stage := range stages {
		names, err := splitNames(stage)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i+1, err)
		}
		nodes, err := g.expandAll(names)
		if err != nil {
			return nil, err
		}
		for _, a := range prev {
			for _, b := range nodes {
				if a != b {
					links = append(links, MakeSortedPair(a, b))
				}
			}
		}
		prev = nodes
	}
	return links, nil
}
