package xslt

import (
	"fmt"

	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

// ApplyTemplates hands every selected node to the template the stylesheet
// resolves for it in the given mode.
type ApplyTemplates struct {
	// Select is nil when the children of the context node are processed.
	Select xpath.Expr
	Mode   string
	Sort   []SortKey
	Params []*Param
}

func (_ *ApplyTemplates) Name() string {
	return "apply-templates"
}

func (a *ApplyTemplates) Execute(ctx Context, _ *TemplateNode) error {
	var nodes []xml.Node
	if a.Select == nil {
		nodes = childNodes(ctx.ContextNode)
	} else {
		v, err := ctx.Eval(a.Select)
		if err != nil {
			return err
		}
		ns, ok := xpath.AsNodeSet(v)
		if !ok {
			return fmt.Errorf("%s: %w: node-set expected, got %s", a.Name(), xpath.ErrType, v.Type())
		}
		nodes = ns
	}
	if len(nodes) == 0 {
		return nil
	}
	params, err := evalParams(ctx, a.Params)
	if err != nil {
		return err
	}
	list, err := orderNodes(ctx, nodes, a.Sort)
	if err != nil {
		return err
	}
	return ctx.Stylesheet.applyTemplates(ctx.WithMode(a.Mode), list, params)
}

// CallTemplate runs a named template without changing the context node.
type CallTemplate struct {
	Ident  string
	Params []*Param
}

func (_ *CallTemplate) Name() string {
	return "call-template"
}

func (c *CallTemplate) Execute(ctx Context, _ *TemplateNode) error {
	tpl, err := ctx.Stylesheet.Find(c.Ident)
	if err != nil {
		return err
	}
	params, err := evalParams(ctx, c.Params)
	if err != nil {
		return err
	}
	return tpl.Call(ctx, params)
}

// Param is a parameter of a template or of the stylesheet, and the value
// given to a parameter by a with-param. Without Select nor Body, its value is
// the empty string.
type Param struct {
	Ident  string
	Select xpath.Expr
	Body   *TemplateNode
}

func (p *Param) Eval(ctx Context) (xpath.Value, error) {
	return evalBinding(ctx, p.Select, p.Body)
}

func evalParams(ctx Context, list []*Param) (map[string]xpath.Value, error) {
	if len(list) == 0 {
		return nil, nil
	}
	params := make(map[string]xpath.Value, len(list))
	for _, p := range list {
		v, err := p.Eval(ctx)
		if err != nil {
			return nil, err
		}
		params[p.Ident] = v
	}
	return params, nil
}

// evalBinding computes the value of a variable or parameter. A body gives a
// tree fragment whose root is returned as a node-set.
func evalBinding(ctx Context, expr xpath.Expr, body *TemplateNode) (xpath.Value, error) {
	if expr != nil {
		return ctx.Eval(expr)
	}
	if body == nil {
		return xpath.String(""), nil
	}
	doc, err := fragment(ctx, body)
	if err != nil {
		return nil, err
	}
	return xpath.NodeSet{doc}, nil
}

func fragment(ctx Context, body *TemplateNode) (*xml.Document, error) {
	doc := xml.EmptyDocument()
	if err := body.Apply(ctx.WithOutput(doc, nil)); err != nil {
		return nil, err
	}
	return doc, nil
}

// textOf returns the string value of the output of body.
func textOf(ctx Context, body *TemplateNode) (string, error) {
	if body == nil {
		return "", nil
	}
	doc, err := fragment(ctx, body)
	if err != nil {
		return "", err
	}
	return doc.Value(), nil
}

func childNodes(node xml.Node) []xml.Node {
	switch n := node.(type) {
	case *xml.Document:
		return n.Nodes
	case *xml.Element:
		return n.Nodes
	default:
		return nil
	}
}

// builtinRule is applied to a node for which no template matches: the
// children of documents and elements are processed in the same mode, the
// value of texts and attributes is copied.
func builtinRule(ctx Context) error {
	switch n := ctx.ContextNode.(type) {
	case *xml.Document, *xml.Element:
		return ctx.Stylesheet.applyTemplates(ctx, childNodes(n), nil)
	case *xml.Text, *xml.Attribute:
		if str := n.Value(); str != "" {
			return ctx.Insert(xml.NewText(str))
		}
		return nil
	default:
		return nil
	}
}
