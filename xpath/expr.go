package xpath

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/midbel/angle/xml"
)

var (
	ErrSyntax    = errors.New("syntax error")
	ErrType      = errors.New("invalid type")
	ErrUndefined = errors.New("undefined")
	ErrArgument  = errors.New("invalid number of arguments")
	ErrContext   = errors.New("no context node")
)

func errorWithContext(ctx string, err error) error {
	return fmt.Errorf("%s: %w", ctx, err)
}

type Expr interface {
	Evaluate(Context) (Value, error)
}

// Query is a compiled expression keeping its source text.
type Query struct {
	expr  Expr
	query string
}

func Build(query string) (*Query, error) {
	expr, err := CompileString(query)
	if err != nil {
		return nil, err
	}
	return &Query{
		expr:  expr,
		query: query,
	}, nil
}

func (q *Query) Evaluate(ctx Context) (Value, error) {
	return q.expr.Evaluate(ctx)
}

// Eval evaluates the query with node as context node and the default
// function library.
func (q *Query) Eval(node xml.Node, pos, size int) (Value, error) {
	ctx := NewContext(node)
	ctx.Position = pos
	ctx.Size = size
	return q.expr.Evaluate(ctx)
}

func (q *Query) String() string {
	return q.query
}

type root struct{}

func (root) Evaluate(ctx Context) (Value, error) {
	n := ctx.root()
	if n == nil {
		return nil, ErrContext
	}
	return NodeSet{n}, nil
}

type step struct {
	axis  string
	test  nodeTest
	preds []Expr
}

func (s step) Evaluate(ctx Context) (Value, error) {
	if ctx.Node == nil {
		return nil, ErrContext
	}
	var (
		list      = axes[s.axis](ctx.Node)
		principal = principalType(s.axis)
		nodes     NodeSet
	)
	for _, n := range list {
		if s.test.Match(n, principal) {
			nodes = append(nodes, n)
		}
	}
	var err error
	for _, p := range s.preds {
		if nodes, err = applyPredicate(ctx, nodes, p); err != nil {
			return nil, err
		}
	}
	if isReverse(s.axis) {
		slices.Reverse(nodes)
	}
	return nodes, nil
}

type path struct {
	left  Expr
	right Expr
}

func (p path) Evaluate(ctx Context) (Value, error) {
	v, err := p.left.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	left, ok := v.(NodeSet)
	if !ok {
		return nil, errorWithContext("path", ErrType)
	}
	var list []xml.Node
	for i, n := range left {
		v, err := p.right.Evaluate(ctx.Sub(n, i+1, len(left)))
		if err != nil {
			return nil, err
		}
		right, ok := v.(NodeSet)
		if !ok {
			return nil, errorWithContext("path", ErrType)
		}
		list = append(list, right...)
	}
	return NodeSet(xml.Unique(list)), nil
}

type filter struct {
	expr  Expr
	preds []Expr
}

func (f filter) Evaluate(ctx Context) (Value, error) {
	v, err := f.expr.Evaluate(ctx)
	if err != nil || len(f.preds) == 0 {
		return v, err
	}
	nodes, ok := v.(NodeSet)
	if !ok {
		return nil, errorWithContext("predicate", ErrType)
	}
	for _, p := range f.preds {
		if nodes, err = applyPredicate(ctx, nodes, p); err != nil {
			return nil, err
		}
	}
	return nodes, nil
}

func applyPredicate(ctx Context, nodes NodeSet, pred Expr) (NodeSet, error) {
	var res NodeSet
	for i, n := range nodes {
		v, err := pred.Evaluate(ctx.Sub(n, i+1, len(nodes)))
		if err != nil {
			return nil, err
		}
		var keep bool
		if x, ok := v.(Number); ok {
			keep = float64(x) == float64(i+1)
		} else {
			keep = AsBoolean(v)
		}
		if keep {
			res = append(res, n)
		}
	}
	return res, nil
}

type union struct {
	left  Expr
	right Expr
}

func (u union) Evaluate(ctx Context) (Value, error) {
	left, err := u.left.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	right, err := u.right.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	x, ok1 := left.(NodeSet)
	y, ok2 := right.(NodeSet)
	if !ok1 || !ok2 {
		return nil, errorWithContext("union", ErrType)
	}
	list := slices.Concat(x, y)
	return NodeSet(xml.Unique(list)), nil
}

type literal string

func (i literal) Evaluate(_ Context) (Value, error) {
	return String(i), nil
}

type number float64

func (n number) Evaluate(_ Context) (Value, error) {
	return Number(n), nil
}

type identifier string

func (i identifier) Evaluate(ctx Context) (Value, error) {
	return ctx.resolveVariable(string(i))
}

type call struct {
	ident string
	args  []Expr
}

func (c call) Evaluate(ctx Context) (Value, error) {
	fn, err := ctx.resolveFunction(c.ident)
	if err != nil {
		return nil, err
	}
	args := make([]Value, 0, len(c.args))
	for _, a := range c.args {
		v, err := a.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return fn(ctx, args)
}

type reverse struct {
	expr Expr
}

func (r reverse) Evaluate(ctx Context) (Value, error) {
	v, err := r.expr.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	return Number(-AsNumber(v)), nil
}

type binary struct {
	left  Expr
	right Expr
	op    rune
}

func (b binary) Evaluate(ctx Context) (Value, error) {
	left, err := b.left.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	switch b.op {
	case opAnd:
		if !AsBoolean(left) {
			return Boolean(false), nil
		}
	case opOr:
		if AsBoolean(left) {
			return Boolean(true), nil
		}
	}
	right, err := b.right.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	switch b.op {
	case opAnd, opOr:
		return Boolean(AsBoolean(right)), nil
	case opEq, opNe, opLt, opLe, opGt, opGe:
		return Boolean(compareValues(b.op, left, right)), nil
	}
	var (
		x = AsNumber(left)
		y = AsNumber(right)
	)
	switch b.op {
	case opAdd:
		return Number(x + y), nil
	case opSub:
		return Number(x - y), nil
	case opMul:
		return Number(x * y), nil
	case opDiv:
		return Number(x / y), nil
	case opMod:
		return Number(math.Mod(x, y)), nil
	default:
		return nil, errorWithContext("binary", ErrSyntax)
	}
}

type nodeTest interface {
	Match(xml.Node, xml.NodeType) bool
}

type nameTest struct {
	xml.QName
}

func (n nameTest) Match(node xml.Node, principal xml.NodeType) bool {
	if node.Type() != principal {
		return false
	}
	if n.Space == "" && n.Name == "*" {
		return true
	}
	var name xml.QName
	switch node := node.(type) {
	case *xml.Element:
		name = node.QName
	case *xml.Attribute:
		name = node.QName
	default:
		return false
	}
	if n.Name != "*" && n.Name != name.Name {
		return false
	}
	switch {
	case n.Uri != "":
		return n.Uri == name.Uri
	case n.Space != "":
		return n.Space == name.Space
	default:
		return name.Space == "" || name.Uri == ""
	}
}

type kindTest struct {
	kind   xml.NodeType
	target string
}

func (k kindTest) Match(node xml.Node, _ xml.NodeType) bool {
	if k.kind == xml.TypeNode {
		return true
	}
	if node.Type() != k.kind {
		return false
	}
	if k.kind == xml.TypeInstruction && k.target != "" {
		return node.LocalName() == k.target
	}
	return true
}

func principalType(axis string) xml.NodeType {
	if axis == axisAttribute {
		return xml.TypeAttribute
	}
	return xml.TypeElement
}

func (n nameTest) String() string {
	return n.QualifiedName()
}

func (k kindTest) String() string {
	var name string
	switch k.kind {
	case xml.TypeText:
		name = "text"
	case xml.TypeComment:
		name = "comment"
	case xml.TypeInstruction:
		name = "processing-instruction"
	default:
		name = "node"
	}
	if k.target != "" {
		return fmt.Sprintf("%s(%s)", name, strconv.Quote(k.target))
	}
	return name + "()"
}

func (s step) String() string {
	var str strings.Builder
	str.WriteString(s.axis)
	str.WriteString("::")
	str.WriteString(fmt.Sprint(s.test))
	for range s.preds {
		str.WriteString("[...]")
	}
	return str.String()
}
