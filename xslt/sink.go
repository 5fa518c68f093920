package xslt

import (
	"fmt"

	"github.com/midbel/angle/xml"
)

// Sink receives the nodes built by the instructions. parent is the node
// under construction and nextSibling, when not nil, the child of parent
// before which node is inserted.
type Sink interface {
	Insert(parent, nextSibling, node xml.Node) error
}

type inserter interface {
	InsertBefore(node, ref xml.Node) error
}

type treeSink struct{}

// TreeSink inserts nodes directly in the result tree.
func TreeSink() Sink {
	return treeSink{}
}

func (_ treeSink) Insert(parent, next, node xml.Node) error {
	p, ok := parent.(inserter)
	if !ok {
		return fmt.Errorf("%s: %w", nodeName(parent), xml.ErrHierarchy)
	}
	return p.InsertBefore(node, next)
}
