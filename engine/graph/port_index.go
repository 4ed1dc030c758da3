package graph

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-gfx/engine/node"
)

// PortIndex names a port by node id and ordinal. Whether it is an input or an output
// depends on which end of a link it is used for.
type PortIndex struct {
	Node node.ID
	Port int
}

// Compare orders by node id, then port ordinal.
func (p PortIndex) Compare(o PortIndex) int {
	if c := cmp.Compare(p.Node, o.Node); c != 0 {
		return c
	}
	return cmp.Compare(p.Port, o.Port)
}

func (p PortIndex) String() string {
	return fmt.Sprintf("%d:%d", p.Node, p.Port)
}

// Link is an edge as a plain value: a source output port and a sink input port.
type Link struct {
	Source PortIndex
	Sink   PortIndex
}

// Compare orders by source, then sink.
func (l Link) Compare(o Link) int {
	if c := l.Source.Compare(o.Source); c != 0 {
		return c
	}
	return l.Sink.Compare(o.Sink)
}

func (l Link) String() string {
	return l.Source.String() + "->" + l.Sink.String()
}

// EdgeSet is an ordered set of links. The zero value is empty and ready to use.
type EdgeSet struct {
	links []Link
}

// NewEdgeSet returns a set holding links.
func NewEdgeSet(links ...Link) EdgeSet {
	var s EdgeSet
	for _, l := range links {
		s.Insert(l)
	}
	return s
}

// Insert adds l and reports whether it was absent.
func (s *EdgeSet) Insert(l Link) bool {
	i, found := slices.BinarySearchFunc(s.links, l, Link.Compare)
	if found {
		return false
	}
	s.links = slices.Insert(s.links, i, l)
	return true
}

// Contains reports whether l is in the set.
func (s EdgeSet) Contains(l Link) bool {
	_, found := slices.BinarySearchFunc(s.links, l, Link.Compare)
	return found
}

// Links returns the links in order. The slice must not be modified.
func (s EdgeSet) Links() []Link {
	return s.links
}

func (s EdgeSet) Len() int {
	return len(s.links)
}

// Equal reports whether both sets hold the same links.
func (s EdgeSet) Equal(o EdgeSet) bool {
	return slices.Equal(s.links, o.links)
}

// Clone returns a set that shares no memory with s.
func (s EdgeSet) Clone() EdgeSet {
	return EdgeSet{links: slices.Clone(s.links)}
}

// Reset empties the set and keeps its capacity.
func (s *EdgeSet) Reset() {
	s.links = s.links[:0]
}

// Without returns a copy of s with every link touching id removed.
func (s EdgeSet) Without(id node.ID) EdgeSet {
	out := EdgeSet{links: make([]Link, 0, len(s.links))}
	for _, l := range s.links {
		if l.Source.Node != id && l.Sink.Node != id {
			out.links = append(out.links, l)
		}
	}
	return out
}
