package xslt

import (
	"fmt"
	"log/slog"

	"github.com/midbel/angle/xpath"
)

type If struct {
	Test xpath.Expr
}

func (_ *If) Name() string {
	return "if"
}

func (i *If) Execute(ctx Context, children *TemplateNode) error {
	v, err := ctx.Eval(i.Test)
	if err != nil {
		return err
	}
	if !xpath.AsBoolean(v) {
		return nil
	}
	return children.Apply(ctx)
}

type When struct {
	Test xpath.Expr
	Body *TemplateNode
}

// Choose applies the body of its first branch whose test is true, or the
// body of its otherwise branch.
type Choose struct {
	When      []When
	Otherwise *TemplateNode
}

func (_ *Choose) Name() string {
	return "choose"
}

func (c *Choose) Execute(ctx Context, _ *TemplateNode) error {
	for _, w := range c.When {
		v, err := ctx.Eval(w.Test)
		if err != nil {
			return err
		}
		if xpath.AsBoolean(v) {
			return w.Body.Apply(ctx)
		}
	}
	return c.Otherwise.Apply(ctx)
}

// Variable binds a value in the scope of the chain it belongs to.
type Variable struct {
	Ident  string
	Select xpath.Expr
}

func (_ *Variable) Name() string {
	return "variable"
}

func (v *Variable) Execute(ctx Context, children *TemplateNode) error {
	val, err := evalBinding(ctx, v.Select, children)
	if err != nil {
		return err
	}
	ctx.define(v.Ident, val)
	return nil
}

// Message writes the text of its children to the logger of the
// transformation.
type Message struct {
	Terminate bool
}

func (_ *Message) Name() string {
	return "message"
}

func (m *Message) Execute(ctx Context, children *TemplateNode) error {
	str, err := textOf(ctx, children)
	if err != nil {
		return err
	}
	level := slog.LevelInfo
	if m.Terminate {
		level = slog.LevelError
	}
	ctx.Logger().Log(ctx.context(), level, str, "node", nodeName(ctx.ContextNode))
	if m.Terminate {
		return fmt.Errorf("%w: %s", ErrTerminate, str)
	}
	return nil
}
