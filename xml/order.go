package xml

import (
	"cmp"
	"slices"
	"strings"
)

// Compare orders two nodes in document order: a node comes before its
// attributes, its attributes before its children, and children follow their
// position in the parent. Nodes of distinct trees are ordered by the creation
// order of their roots.
func Compare(left, right Node) int {
	if left == right {
		return 0
	}
	var (
		p1 = ancestry(left)
		p2 = ancestry(right)
	)
	if p1[0] != p2[0] {
		if c := cmp.Compare(treeOrder(p1[0]), treeOrder(p2[0])); c != 0 {
			return c
		}
		return strings.Compare(left.Identity(), right.Identity())
	}
	var i int
	for i < len(p1) && i < len(p2) && p1[i] == p2[i] {
		i++
	}
	switch {
	case i == len(p1):
		return -1
	case i == len(p2):
		return 1
	default:
		return compareSiblings(p1[i], p2[i])
	}
}

func Before(left, right Node) bool {
	return Compare(left, right) < 0
}

func After(left, right Node) bool {
	return Compare(left, right) > 0
}

// SortNodes sorts nodes in document order.
func SortNodes(nodes []Node) {
	slices.SortStableFunc(nodes, Compare)
}

// Unique sorts nodes in document order and removes duplicates.
func Unique(nodes []Node) []Node {
	SortNodes(nodes)
	return slices.CompactFunc(nodes, func(a, b Node) bool {
		return a == b
	})
}

func compareSiblings(left, right Node) int {
	var (
		a1 = left.Type() == TypeAttribute
		a2 = right.Type() == TypeAttribute
	)
	switch {
	case a1 && !a2:
		return -1
	case !a1 && a2:
		return 1
	}
	if c := cmp.Compare(left.Position(), right.Position()); c != 0 {
		return c
	}
	return strings.Compare(left.Identity(), right.Identity())
}

func ancestry(node Node) []Node {
	var list []Node
	for n := node; n != nil; n = n.Parent() {
		list = append(list, n)
	}
	slices.Reverse(list)
	return list
}

// treeOrder gives the creation number of the root of a tree.
func treeOrder(root Node) uint64 {
	switch n := root.(type) {
	case *Document:
		return n.id
	case *Element:
		return n.seq
	case *Attribute:
		return n.seq
	case *Text:
		return n.seq
	case *Comment:
		return n.seq
	case *Instruction:
		return n.seq
	default:
		return 0
	}
}
