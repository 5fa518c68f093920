package xslt

import (
	"fmt"
)

const MaxDepth = 1024

// Instruction is the effect of one node of a template chain. Execute runs
// the instruction and the chain of its children when it has nested content.
type Instruction interface {
	Name() string
	Execute(ctx Context, children *TemplateNode) error
}

// TemplateNode links the instructions of a stylesheet: Next is the following
// sibling, Children is the head of the nested chain. Chains are built once by
// the compiler and never modified afterwards.
type TemplateNode struct {
	Instruction

	Children *TemplateNode
	Next     *TemplateNode
}

// Chain links the given instructions as siblings and returns the head of the
// chain.
func Chain(list ...*TemplateNode) *TemplateNode {
	var head, tail *TemplateNode
	for _, n := range list {
		if n == nil {
			continue
		}
		if head == nil {
			head = n
		} else {
			tail.Next = n
		}
		tail = n
		for tail.Next != nil {
			tail = tail.Next
		}
	}
	return head
}

// Apply runs the chain starting at t. Every sibling receives the same
// context. The chain gets its own variable scope so that a variable is seen
// by the siblings following its declaration and their descendants only. The
// first error stops the chain and is returned as is.
func (t *TemplateNode) Apply(ctx Context) error {
	if t == nil {
		return nil
	}
	ctx.Depth++
	if ctx.Depth > ctx.maxDepth() {
		return fmt.Errorf("%s: %w (%d)", t.Name(), ErrDepth, ctx.maxDepth())
	}
	ctx = ctx.Nest()
	for n := t; n != nil; n = n.Next {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := n.execute(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (t *TemplateNode) execute(ctx Context) error {
	tracer := ctx.tracer()
	tracer.Enter(ctx, t.Instruction)
	err := t.Instruction.Execute(ctx, t.Children)
	if err != nil {
		tracer.Error(ctx, t.Instruction, err)
		return err
	}
	tracer.Leave(ctx, t.Instruction)
	return nil
}

// Len returns the number of instructions in the chain, nested ones excluded.
func (t *TemplateNode) Len() int {
	var n int
	for ; t != nil; t = t.Next {
		n++
	}
	return n
}
