package xpath

import (
	"fmt"
	"slices"
	"strings"

	"github.com/midbel/angle/environ"
	"github.com/midbel/angle/xml"
)

// Pattern is one alternative of a match pattern.
type Pattern struct {
	expr     Expr
	source   string
	priority float64
	absolute bool
	last     *step
}

// CompilePattern compiles a pattern and splits it on its top level unions.
// Each alternative keeps its own default priority.
func CompilePattern(str string, namespaces environ.Environ[string]) ([]*Pattern, error) {
	expr, err := CompileWithNamespaces(str, namespaces)
	if err != nil {
		return nil, err
	}
	var list []*Pattern
	for _, e := range splitUnion(expr) {
		if !isPattern(e) {
			return nil, SyntaxError{
				Expr:  str,
				Cause: "expression is not a valid pattern",
			}
		}
		pat := Pattern{
			expr:     e,
			source:   patternSource(e, str),
			priority: defaultPriority(e),
			absolute: isAbsolute(e),
			last:     lastStep(e),
		}
		list = append(list, &pat)
	}
	return list, nil
}

// Match reports whether ctx.Node matches the pattern: the node matches when
// evaluating the pattern from one of its ancestor-or-self nodes selects it.
func (p *Pattern) Match(ctx Context) (bool, error) {
	node := ctx.Node
	if node == nil {
		return false, nil
	}
	if !p.accept(node) {
		return false, nil
	}
	ctx.Current = node
	if p.absolute {
		return p.selects(ctx.Sub(node, 1, 1), node)
	}
	for x := node; x != nil; x = x.Parent() {
		ok, err := p.selects(ctx.Sub(x, 1, 1), node)
		if ok || err != nil {
			return ok, err
		}
	}
	return false, nil
}

func (p *Pattern) Priority() float64 {
	return p.priority
}

func (p *Pattern) String() string {
	return p.source
}

func (p *Pattern) accept(node xml.Node) bool {
	if p.last == nil {
		_, ok := p.expr.(root)
		return !ok || node.Type() == xml.TypeDocument
	}
	return p.last.test.Match(node, principalType(p.last.axis))
}

func (p *Pattern) selects(ctx Context, node xml.Node) (bool, error) {
	v, err := p.expr.Evaluate(ctx)
	if err != nil {
		return false, err
	}
	ns, ok := v.(NodeSet)
	if !ok {
		return false, fmt.Errorf("%s: %w: node-set expected", p.source, ErrType)
	}
	return slices.Contains(ns, node), nil
}

func splitUnion(expr Expr) []Expr {
	u, ok := expr.(union)
	if !ok {
		return []Expr{expr}
	}
	return append(splitUnion(u.left), splitUnion(u.right)...)
}

func isPattern(expr Expr) bool {
	switch e := expr.(type) {
	case root:
		return true
	case step:
		switch e.axis {
		case axisChild, axisAttribute:
			return true
		case axisDescendantOrSelf:
			k, ok := e.test.(kindTest)
			return ok && k.kind == xml.TypeNode && len(e.preds) == 0
		default:
			return false
		}
	case path:
		if _, ok := e.right.(step); !ok {
			return false
		}
		return isPattern(e.left) && isPattern(e.right)
	default:
		return false
	}
}

func isAbsolute(expr Expr) bool {
	switch e := expr.(type) {
	case root:
		return true
	case path:
		return isAbsolute(e.left)
	default:
		return false
	}
}

func lastStep(expr Expr) *step {
	switch e := expr.(type) {
	case step:
		return &e
	case path:
		return lastStep(e.right)
	default:
		return nil
	}
}

func defaultPriority(expr Expr) float64 {
	s, ok := expr.(step)
	if !ok || len(s.preds) > 0 || s.axis == axisDescendantOrSelf {
		return 0.5
	}
	switch t := s.test.(type) {
	case nameTest:
		switch {
		case t.Name != "*":
			return 0
		case t.Space != "":
			return -0.25
		default:
			return -0.5
		}
	case kindTest:
		if t.kind == xml.TypeInstruction && t.target != "" {
			return 0
		}
		return -0.5
	default:
		return 0.5
	}
}

func patternSource(expr Expr, full string) string {
	if !strings.Contains(full, "|") {
		return full
	}
	return describe(expr)
}

func describe(expr Expr) string {
	switch e := expr.(type) {
	case root:
		return "/"
	case step:
		if e.axis == axisDescendantOrSelf {
			return ""
		}
		var str strings.Builder
		if e.axis == axisAttribute {
			str.WriteString("@")
		}
		str.WriteString(fmt.Sprint(e.test))
		for range e.preds {
			str.WriteString("[...]")
		}
		return str.String()
	case path:
		left := describe(e.left)
		if s, ok := e.right.(step); ok && s.axis == axisDescendantOrSelf {
			return strings.TrimSuffix(left, "/") + "//"
		}
		if strings.HasSuffix(left, "/") {
			return left + describe(e.right)
		}
		return left + "/" + describe(e.right)
	default:
		return fmt.Sprint(expr)
	}
}
