package xslt

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/midbel/angle/environ"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

const (
	Vendor    = "angle"
	VendorURL = "https://github.com/midbel/angle"
)

// library gives the scope of functions available to the expressions of one
// run: the core library plus the functions defined by XSLT.
func (r *runState) library() environ.Environ[xpath.Function] {
	env := xpath.DefaultFunctions()
	env.Define("current", callCurrent)
	env.Define("generate-id", r.generateId)
	env.Define("system-property", callSystemProperty)
	return env
}

func callCurrent(ctx xpath.Context, args []xpath.Value) (xpath.Value, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("current: %w (got %d)", xpath.ErrArgument, len(args))
	}
	if ctx.Current == nil {
		return xpath.NodeSet{}, nil
	}
	return xpath.NodeSet{ctx.Current}, nil
}

// generateId gives the same name to a node for the whole run.
func (r *runState) generateId(ctx xpath.Context, args []xpath.Value) (xpath.Value, error) {
	node := ctx.Node
	switch len(args) {
	case 0:
	case 1:
		ns, ok := xpath.AsNodeSet(args[0])
		if !ok {
			return nil, fmt.Errorf("generate-id: %w: node-set expected, got %s", xpath.ErrType, args[0].Type())
		}
		node = ns.First()
	default:
		return nil, fmt.Errorf("generate-id: %w (got %d)", xpath.ErrArgument, len(args))
	}
	if node == nil {
		return xpath.String(""), nil
	}
	if id, ok := r.ids[node]; ok {
		return xpath.String(id), nil
	}
	id, err := r.nextId()
	if err != nil {
		return nil, err
	}
	r.ids[node] = id
	return xpath.String(id), nil
}

func (r *runState) nextId() (string, error) {
	name, err := r.namer.Next()
	if errors.Is(err, io.EOF) {
		r.generation++
		r.namer.Reset()
		name, err = r.namer.Next()
	}
	if err != nil {
		return "", err
	}
	if r.generation > 0 {
		name = strconv.Itoa(r.generation) + name
	}
	return "id" + name, nil
}

func callSystemProperty(ctx xpath.Context, args []xpath.Value) (xpath.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("system-property: %w (got %d)", xpath.ErrArgument, len(args))
	}
	qn, err := xml.ParseName(xpath.AsString(args[0]))
	if err != nil {
		return nil, err
	}
	if qn.Space != xsltNamespacePrefix {
		return xpath.String(""), nil
	}
	switch qn.Name {
	case "version":
		return xpath.Number(1), nil
	case "vendor":
		return xpath.String(Vendor), nil
	case "vendor-url":
		return xpath.String(VendorURL), nil
	default:
		return xpath.String(""), nil
	}
}
