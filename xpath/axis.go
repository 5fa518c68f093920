package xpath

import (
	"github.com/midbel/angle/xml"
)

const (
	axisChild            = "child"
	axisDescendant       = "descendant"
	axisDescendantOrSelf = "descendant-or-self"
	axisParent           = "parent"
	axisAncestor         = "ancestor"
	axisAncestorOrSelf   = "ancestor-or-self"
	axisFollowingSibling = "following-sibling"
	axisPrecedingSibling = "preceding-sibling"
	axisFollowing        = "following"
	axisPreceding        = "preceding"
	axisAttribute        = "attribute"
	axisSelf             = "self"
)

// axes return their nodes in axis order: document order for forward axes,
// reverse document order for the others.
var axes = map[string]func(xml.Node) []xml.Node{
	axisChild:            childAxis,
	axisDescendant:       descendantAxis,
	axisDescendantOrSelf: descendantOrSelfAxis,
	axisParent:           parentAxis,
	axisAncestor:         ancestorAxis,
	axisAncestorOrSelf:   ancestorOrSelfAxis,
	axisFollowingSibling: followingSiblingAxis,
	axisPrecedingSibling: precedingSiblingAxis,
	axisFollowing:        followingAxis,
	axisPreceding:        precedingAxis,
	axisAttribute:        attributeAxis,
	axisSelf:             selfAxis,
}

func isReverse(axis string) bool {
	switch axis {
	case axisParent, axisAncestor, axisAncestorOrSelf, axisPrecedingSibling, axisPreceding:
		return true
	default:
		return false
	}
}

func children(node xml.Node) []xml.Node {
	switch n := node.(type) {
	case *xml.Element:
		return n.Nodes
	case *xml.Document:
		return n.Nodes
	default:
		return nil
	}
}

func childAxis(node xml.Node) []xml.Node {
	return append([]xml.Node(nil), children(node)...)
}

func descendantAxis(node xml.Node) []xml.Node {
	var list []xml.Node
	for _, c := range children(node) {
		list = append(list, c)
		list = append(list, descendantAxis(c)...)
	}
	return list
}

func descendantOrSelfAxis(node xml.Node) []xml.Node {
	return append([]xml.Node{node}, descendantAxis(node)...)
}

func parentAxis(node xml.Node) []xml.Node {
	if p := node.Parent(); p != nil {
		return []xml.Node{p}
	}
	return nil
}

func ancestorAxis(node xml.Node) []xml.Node {
	var list []xml.Node
	for p := node.Parent(); p != nil; p = p.Parent() {
		list = append(list, p)
	}
	return list
}

func ancestorOrSelfAxis(node xml.Node) []xml.Node {
	return append([]xml.Node{node}, ancestorAxis(node)...)
}

func siblings(node xml.Node) []xml.Node {
	if node.Type() == xml.TypeAttribute {
		return nil
	}
	p := node.Parent()
	if p == nil {
		return nil
	}
	return children(p)
}

func followingSiblingAxis(node xml.Node) []xml.Node {
	list := siblings(node)
	if pos := node.Position() + 1; pos < len(list) {
		return append([]xml.Node(nil), list[pos:]...)
	}
	return nil
}

func precedingSiblingAxis(node xml.Node) []xml.Node {
	var (
		list = siblings(node)
		res  []xml.Node
	)
	for i := min(node.Position(), len(list)) - 1; i >= 0; i-- {
		res = append(res, list[i])
	}
	return res
}

func followingAxis(node xml.Node) []xml.Node {
	var list []xml.Node
	if node.Type() == xml.TypeAttribute {
		p := node.Parent()
		if p == nil {
			return nil
		}
		list = descendantAxis(p)
		node = p
	}
	for n := node; n != nil; n = n.Parent() {
		for _, s := range followingSiblingAxis(n) {
			list = append(list, s)
			list = append(list, descendantAxis(s)...)
		}
	}
	return list
}

func precedingAxis(node xml.Node) []xml.Node {
	var list []xml.Node
	if node.Type() == xml.TypeAttribute {
		node = node.Parent()
		if node == nil {
			return nil
		}
	}
	for n := node; n != nil; n = n.Parent() {
		for _, s := range precedingSiblingAxis(n) {
			sub := descendantOrSelfAxis(s)
			for i := len(sub) - 1; i >= 0; i-- {
				list = append(list, sub[i])
			}
		}
	}
	return list
}

func attributeAxis(node xml.Node) []xml.Node {
	el, ok := node.(*xml.Element)
	if !ok {
		return nil
	}
	list := make([]xml.Node, 0, len(el.Attrs))
	for _, a := range el.Attrs {
		list = append(list, a)
	}
	return list
}

func selfAxis(node xml.Node) []xml.Node {
	return []xml.Node{node}
}
