package xpath

import (
	"github.com/midbel/angle/environ"
	"github.com/midbel/angle/xml"
)

// Function is a callable of the function library. Arguments are evaluated
// before the call.
type Function func(Context, []Value) (Value, error)

type Context struct {
	xml.Node
	Position int
	Size     int
	// Current is the node returned by current(): the context node at the
	// start of the evaluation of the outermost expression.
	Current xml.Node

	Variables environ.Environ[Value]
	Functions environ.Environ[Function]
}

func NewContext(node xml.Node) Context {
	return Context{
		Node:      node,
		Position:  1,
		Size:      1,
		Current:   node,
		Variables: environ.Empty[Value](),
		Functions: DefaultFunctions(),
	}
}

func (c Context) Sub(node xml.Node, pos, size int) Context {
	c.Node = node
	c.Position = pos
	c.Size = size
	return c
}

func (c Context) resolveVariable(name string) (Value, error) {
	if c.Variables == nil {
		return nil, errorWithContext("$"+name, ErrUndefined)
	}
	v, err := c.Variables.Resolve(name)
	if err != nil {
		return nil, errorWithContext("$"+name, ErrUndefined)
	}
	return v, nil
}

func (c Context) resolveFunction(name string) (Function, error) {
	var (
		fn  Function
		err error
	)
	if c.Functions != nil {
		fn, err = c.Functions.Resolve(name)
	} else {
		fn, err = builtins.Resolve(name)
	}
	if err != nil || fn == nil {
		return nil, errorWithContext(name+"()", ErrUndefined)
	}
	return fn, nil
}

func (c Context) root() xml.Node {
	n := c.Node
	for n != nil && n.Parent() != nil {
		n = n.Parent()
	}
	return n
}
