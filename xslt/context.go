package xslt

import (
	"context"
	"log/slog"

	"github.com/midbel/angle/alpha"
	"github.com/midbel/angle/environ"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

// Context is given by value to every instruction. An instruction never
// changes the context it receives: it derives a new one for the chains it
// applies.
type Context struct {
	Stylesheet *Stylesheet
	Mode       string

	ContextNode xml.Node
	Position    int
	Size        int

	// Parent and NextSibling locate where output is inserted. A nil
	// NextSibling appends to Parent.
	Parent      xml.Node
	NextSibling xml.Node

	Depth     int
	Variables environ.Environ[xpath.Value]

	run *runState
}

// runState holds what belongs to one transformation and is shared by all the
// contexts derived during it.
type runState struct {
	ctx       context.Context
	sink      Sink
	tracer    Tracer
	logger    *slog.Logger
	functions environ.Environ[xpath.Function]
	globals   environ.Environ[xpath.Value]
	maxDepth  int

	ids        map[xml.Node]string
	namer      alpha.Namer
	generation int
}

func (c Context) WithNode(node xml.Node, pos, size int) Context {
	c.ContextNode = node
	c.Position = pos
	c.Size = size
	return c
}

func (c Context) WithOutput(parent, next xml.Node) Context {
	c.Parent = parent
	c.NextSibling = next
	return c
}

func (c Context) WithMode(mode string) Context {
	c.Mode = mode
	return c
}

// Nest gives the context its own variable scope enclosing the current one.
func (c Context) Nest() Context {
	c.Variables = environ.Enclosed(c.Variables)
	return c
}

// Template gives the context a scope only seeing the global variables and
// parameters.
func (c Context) Template() Context {
	c.Variables = environ.Enclosed(c.run.globals)
	return c
}

// Eval evaluates expr against the context node, position and size.
func (c Context) Eval(expr xpath.Expr) (xpath.Value, error) {
	return expr.Evaluate(c.xpathContext(c.ContextNode))
}

// evalWith evaluates expr on node keeping the position and size of the
// context.
func (c Context) evalWith(expr xpath.Expr, node xml.Node) (xpath.Value, error) {
	return expr.Evaluate(c.xpathContext(node))
}

func (c Context) xpathContext(node xml.Node) xpath.Context {
	ctx := xpath.Context{
		Node:      node,
		Position:  c.Position,
		Size:      c.Size,
		Current:   node,
		Variables: c.Variables,
	}
	if c.run != nil {
		ctx.Functions = c.run.functions
	}
	return ctx
}

// Insert hands node to the sink at the output coordinates of the context.
func (c Context) Insert(node xml.Node) error {
	return c.run.sink.Insert(c.Parent, c.NextSibling, node)
}

func (c Context) Logger() *slog.Logger {
	if c.run == nil || c.run.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.run.logger
}

func (c Context) context() context.Context {
	if c.run == nil || c.run.ctx == nil {
		return context.Background()
	}
	return c.run.ctx
}

func (c Context) Err() error {
	if c.run == nil || c.run.ctx == nil {
		return nil
	}
	return c.run.ctx.Err()
}

func (c Context) tracer() Tracer {
	if c.run == nil || c.run.tracer == nil {
		return NoopTracer()
	}
	return c.run.tracer
}

func (c Context) maxDepth() int {
	if c.run == nil || c.run.maxDepth <= 0 {
		return MaxDepth
	}
	return c.run.maxDepth
}

func (c Context) define(ident string, value xpath.Value) {
	c.Variables.Define(ident, value)
}
