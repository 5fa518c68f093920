package xslt

import (
	"fmt"
	"strings"

	"github.com/midbel/angle/environ"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

type ValueOf struct {
	Select xpath.Expr
}

func (_ *ValueOf) Name() string {
	return "value-of"
}

func (v *ValueOf) Execute(ctx Context, _ *TemplateNode) error {
	res, err := ctx.Eval(v.Select)
	if err != nil {
		return err
	}
	str := xpath.AsString(res)
	if str == "" {
		return nil
	}
	return ctx.Insert(xml.NewText(str))
}

// Text outputs literal text: the content of xsl:text or the text found in a
// template body.
type Text struct {
	Content string
}

func (_ *Text) Name() string {
	return "text"
}

func (t *Text) Execute(ctx Context, _ *TemplateNode) error {
	if t.Content == "" {
		return nil
	}
	return ctx.Insert(xml.NewText(t.Content))
}

type LiteralAttribute struct {
	xml.QName
	Value AVT
}

// LiteralElement copies an element of the stylesheet that is not an
// instruction to the output. Its children are applied inside the copy.
type LiteralElement struct {
	Ident xml.QName
	Attrs []LiteralAttribute
}

func (e *LiteralElement) Name() string {
	return e.Ident.QualifiedName()
}

func (e *LiteralElement) Execute(ctx Context, children *TemplateNode) error {
	el := xml.NewElement(e.Ident)
	for _, a := range e.Attrs {
		str, err := a.Value.Eval(ctx)
		if err != nil {
			return err
		}
		el.SetAttribute(xml.NewAttribute(a.QName, str))
	}
	if err := ctx.Insert(el); err != nil {
		return err
	}
	return children.Apply(ctx.WithOutput(el, nil))
}

// Element creates an element whose name is computed.
type Element struct {
	Ident      AVT
	Namespace  AVT
	Namespaces environ.Environ[string]
}

func (_ *Element) Name() string {
	return "element"
}

func (e *Element) Execute(ctx Context, children *TemplateNode) error {
	qn, err := computeName(ctx, e.Ident, e.Namespace, e.Namespaces)
	if err != nil {
		return err
	}
	el := xml.NewElement(qn)
	if err := ctx.Insert(el); err != nil {
		return err
	}
	return children.Apply(ctx.WithOutput(el, nil))
}

// Attribute adds an attribute to the element under construction. Its value is
// the text produced by its children.
type Attribute struct {
	Ident      AVT
	Namespace  AVT
	Namespaces environ.Environ[string]
}

func (_ *Attribute) Name() string {
	return "attribute"
}

func (a *Attribute) Execute(ctx Context, children *TemplateNode) error {
	qn, err := computeName(ctx, a.Ident, a.Namespace, a.Namespaces)
	if err != nil {
		return err
	}
	if qn.Space == "xmlns" || (qn.Space == "" && qn.Name == "xmlns") {
		return fmt.Errorf("%s: invalid attribute name", qn.QualifiedName())
	}
	str, err := textOf(ctx, children)
	if err != nil {
		return err
	}
	return ctx.Insert(xml.NewAttribute(qn, str))
}

type Comment struct{}

func (_ *Comment) Name() string {
	return "comment"
}

func (c *Comment) Execute(ctx Context, children *TemplateNode) error {
	str, err := textOf(ctx, children)
	if err != nil {
		return err
	}
	str = strings.ReplaceAll(str, "--", "- -")
	if strings.HasSuffix(str, "-") {
		str += " "
	}
	return ctx.Insert(xml.NewComment(str))
}

type ProcessingInstruction struct {
	Ident AVT
}

func (_ *ProcessingInstruction) Name() string {
	return "processing-instruction"
}

func (p *ProcessingInstruction) Execute(ctx Context, children *TemplateNode) error {
	name, err := p.Ident.Eval(ctx)
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "xml") || strings.Contains(name, ":") {
		return fmt.Errorf("%s: invalid processing instruction target", name)
	}
	str, err := textOf(ctx, children)
	if err != nil {
		return err
	}
	str = strings.ReplaceAll(str, "?>", "? >")
	return ctx.Insert(xml.NewInstruction(xml.LocalName(name), str))
}

// Copy copies the context node without its attributes and children. The
// children of the instruction are applied inside the copy of an element.
type Copy struct{}

func (_ *Copy) Name() string {
	return "copy"
}

func (c *Copy) Execute(ctx Context, children *TemplateNode) error {
	switch n := ctx.ContextNode.(type) {
	case *xml.Document:
		return children.Apply(ctx)
	case *xml.Element:
		el := xml.NewElement(n.QName)
		for _, ns := range n.Namespaces {
			el.DeclareNS(ns.Prefix, ns.Uri)
		}
		if err := ctx.Insert(el); err != nil {
			return err
		}
		return children.Apply(ctx.WithOutput(el, nil))
	default:
		return ctx.Insert(cloneNode(n))
	}
}

// CopyOf copies the selected nodes with their descendants. Other values are
// copied as text.
type CopyOf struct {
	Select xpath.Expr
}

func (_ *CopyOf) Name() string {
	return "copy-of"
}

func (c *CopyOf) Execute(ctx Context, _ *TemplateNode) error {
	v, err := ctx.Eval(c.Select)
	if err != nil {
		return err
	}
	nodes, ok := xpath.AsNodeSet(v)
	if !ok {
		str := xpath.AsString(v)
		if str == "" {
			return nil
		}
		return ctx.Insert(xml.NewText(str))
	}
	for _, n := range nodes {
		list := []xml.Node{n}
		if doc, ok := n.(*xml.Document); ok {
			list = doc.Nodes
		}
		for _, n := range list {
			if err := ctx.Insert(cloneNode(n)); err != nil {
				return err
			}
		}
	}
	return nil
}

func computeName(ctx Context, ident, namespace AVT, namespaces environ.Environ[string]) (xml.QName, error) {
	name, err := ident.Eval(ctx)
	if err != nil {
		return xml.QName{}, err
	}
	qn, err := xml.ParseName(strings.TrimSpace(name))
	if err != nil {
		return qn, err
	}
	if namespace.source != "" {
		uri, err := namespace.Eval(ctx)
		if err != nil {
			return qn, err
		}
		qn.Uri = uri
		return qn, nil
	}
	if qn.Space == "" || namespaces == nil {
		return qn, nil
	}
	uri, err := namespaces.Resolve(qn.Space)
	if err != nil {
		return qn, fmt.Errorf("%s: %w namespace prefix", qn.Space, ErrUndefined)
	}
	qn.Uri = uri
	return qn, nil
}

func cloneNode(node xml.Node) xml.Node {
	if c, ok := node.(xml.Cloner); ok {
		return c.Clone()
	}
	return node
}
