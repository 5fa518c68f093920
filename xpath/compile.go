package xpath

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/midbel/angle/environ"
	"github.com/midbel/angle/xml"
)

type SyntaxError struct {
	Expr  string
	Cause string
	Position
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Expr, e.Cause, e.Position)
}

func (e SyntaxError) Unwrap() error {
	return ErrSyntax
}

type Compiler struct {
	scan  *Scanner
	curr  Token
	peek  Token
	query string

	// Namespaces resolves the prefixes used in name tests. When nil, name
	// tests compare prefixes instead of namespace uris.
	Namespaces environ.Environ[string]

	infix  map[rune]func(Expr) (Expr, error)
	prefix map[rune]func() (Expr, error)
}

func NewCompiler(r io.Reader) *Compiler {
	cp := Compiler{
		scan: Scan(r),
	}

	cp.infix = map[rune]func(Expr) (Expr, error){
		currLevel: cp.compileStep,
		anyLevel:  cp.compileDescendantStep,
		begPred:   cp.compileFilter,
		opAdd:     cp.compileBinary,
		opSub:     cp.compileBinary,
		opMul:     cp.compileBinary,
		opDiv:     cp.compileBinary,
		opMod:     cp.compileBinary,
		opEq:      cp.compileBinary,
		opNe:      cp.compileBinary,
		opGt:      cp.compileBinary,
		opGe:      cp.compileBinary,
		opLt:      cp.compileBinary,
		opLe:      cp.compileBinary,
		opAnd:     cp.compileBinary,
		opOr:      cp.compileBinary,
		opUnion:   cp.compileUnion,
	}
	cp.prefix = map[rune]func() (Expr, error){
		currLevel:  cp.compileRoot,
		anyLevel:   cp.compileDescendantRoot,
		Name:       cp.compileName,
		variable:   cp.compileVariable,
		currNode:   cp.compileStepExpr,
		parentNode: cp.compileStepExpr,
		attrNode:   cp.compileStepExpr,
		Literal:    cp.compileLiteral,
		Digit:      cp.compileNumber,
		opSub:      cp.compileReverse,
		begGrp:     cp.compileGroup,
	}

	cp.next()
	cp.next()
	return &cp
}

func CompileString(q string) (Expr, error) {
	cp := NewCompiler(strings.NewReader(q))
	cp.query = q
	return cp.Compile()
}

func Compile(r io.Reader) (Expr, error) {
	return NewCompiler(r).Compile()
}

// CompileWithNamespaces compiles q resolving prefixes of name tests with
// the given namespaces.
func CompileWithNamespaces(q string, namespaces environ.Environ[string]) (Expr, error) {
	cp := NewCompiler(strings.NewReader(q))
	cp.query = q
	cp.Namespaces = namespaces
	return cp.Compile()
}

func (c *Compiler) Compile() (Expr, error) {
	if c.done() {
		return nil, c.syntaxError("empty expression")
	}
	expr, err := c.compileExpr(powLowest)
	if err != nil {
		return nil, err
	}
	if !c.done() {
		return nil, c.syntaxError(fmt.Sprintf("unexpected token %s", c.curr))
	}
	return expr, nil
}

func (c *Compiler) compileExpr(pow int) (Expr, error) {
	fn, ok := c.prefix[c.curr.Type]
	if !ok {
		return nil, c.syntaxError(fmt.Sprintf("unexpected prefix expression %s", c.curr))
	}
	left, err := fn()
	if err != nil {
		return nil, err
	}
	for !c.done() && pow < c.power() {
		fn, ok := c.infix[c.curr.Type]
		if !ok {
			return nil, c.syntaxError(fmt.Sprintf("unexpected infix expression %s", c.curr))
		}
		left, err = fn(left)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (c *Compiler) compileRoot() (Expr, error) {
	c.next()
	if !c.isStepStart() {
		return root{}, nil
	}
	right, err := c.compileStepExpr()
	if err != nil {
		return nil, err
	}
	expr := path{
		left:  root{},
		right: right,
	}
	return expr, nil
}

func (c *Compiler) compileDescendantRoot() (Expr, error) {
	c.next()
	right, err := c.compileStepExpr()
	if err != nil {
		return nil, err
	}
	return descendantPath(root{}, right), nil
}

func (c *Compiler) compileStep(left Expr) (Expr, error) {
	c.next()
	right, err := c.compileStepExpr()
	if err != nil {
		return nil, err
	}
	expr := path{
		left:  left,
		right: right,
	}
	return expr, nil
}

func (c *Compiler) compileDescendantStep(left Expr) (Expr, error) {
	c.next()
	right, err := c.compileStepExpr()
	if err != nil {
		return nil, err
	}
	return descendantPath(left, right), nil
}

func descendantPath(left, right Expr) Expr {
	self := step{
		axis: axisDescendantOrSelf,
		test: kindTest{kind: xml.TypeNode},
	}
	return path{
		left: path{
			left:  left,
			right: self,
		},
		right: right,
	}
}

func (c *Compiler) compileName() (Expr, error) {
	if c.peek.Type == begGrp && !isKindTest(c.curr.Literal) {
		return c.compileCall()
	}
	return c.compileStepExpr()
}

func (c *Compiler) compileStepExpr() (Expr, error) {
	var expr step
	switch c.curr.Type {
	case currNode:
		c.next()
		expr.axis = axisSelf
		expr.test = kindTest{kind: xml.TypeNode}
		return expr, nil
	case parentNode:
		c.next()
		expr.axis = axisParent
		expr.test = kindTest{kind: xml.TypeNode}
		return expr, nil
	case attrNode:
		c.next()
		expr.axis = axisAttribute
	case Name:
		expr.axis = axisChild
		if c.peek.Type == opAxis {
			expr.axis = c.curr.Literal
			if _, ok := axes[expr.axis]; !ok {
				return nil, c.syntaxError(fmt.Sprintf("%s: unknown axis", expr.axis))
			}
			c.next()
			c.next()
		}
	default:
		return nil, c.syntaxError(fmt.Sprintf("unexpected token %s in step", c.curr))
	}
	test, err := c.compileNodeTest()
	if err != nil {
		return nil, err
	}
	expr.test = test
	for c.is(begPred) {
		pred, err := c.compilePredicate()
		if err != nil {
			return nil, err
		}
		expr.preds = append(expr.preds, pred)
	}
	return expr, nil
}

func (c *Compiler) compileNodeTest() (nodeTest, error) {
	if !c.is(Name) {
		return nil, c.syntaxError("node test expected")
	}
	name := c.curr.Literal
	if c.peek.Type == begGrp && isKindTest(name) {
		c.next()
		c.next()
		test := kindTest{
			kind: kindTypes[name],
		}
		if c.is(Literal) && test.kind == xml.TypeInstruction {
			test.target = c.curr.Literal
			c.next()
		}
		if !c.is(endGrp) {
			return nil, c.syntaxError("missing closing parenthesis after node test")
		}
		c.next()
		return test, nil
	}
	c.next()

	var test nameTest
	if space, local, ok := strings.Cut(name, ":"); ok {
		test.Space, test.Name = space, local
		if c.Namespaces != nil {
			uri, err := c.Namespaces.Resolve(space)
			if err != nil {
				return nil, c.syntaxError(fmt.Sprintf("%s: undefined namespace prefix", space))
			}
			test.Uri = uri
		}
	} else {
		test.Name = name
	}
	return test, nil
}

func (c *Compiler) compilePredicate() (Expr, error) {
	c.next()
	expr, err := c.compileExpr(powLowest)
	if err != nil {
		return nil, err
	}
	if !c.is(endPred) {
		return nil, c.syntaxError("missing closing bracket after predicate")
	}
	c.next()
	return expr, nil
}

func (c *Compiler) compileFilter(left Expr) (Expr, error) {
	pred, err := c.compilePredicate()
	if err != nil {
		return nil, err
	}
	if f, ok := left.(filter); ok {
		f.preds = append(f.preds, pred)
		return f, nil
	}
	expr := filter{
		expr:  left,
		preds: []Expr{pred},
	}
	return expr, nil
}

func (c *Compiler) compileGroup() (Expr, error) {
	c.next()
	expr, err := c.compileExpr(powLowest)
	if err != nil {
		return nil, err
	}
	if !c.is(endGrp) {
		return nil, c.syntaxError("missing closing parenthesis")
	}
	c.next()
	return filter{expr: expr}, nil
}

func (c *Compiler) compileCall() (Expr, error) {
	expr := call{
		ident: c.curr.Literal,
	}
	c.next()
	c.next()
	for !c.done() && !c.is(endGrp) {
		arg, err := c.compileExpr(powLowest)
		if err != nil {
			return nil, err
		}
		expr.args = append(expr.args, arg)
		switch {
		case c.is(opSeq):
			c.next()
			if c.is(endGrp) {
				return nil, c.syntaxError("argument expected after comma")
			}
		case c.is(endGrp):
		default:
			return nil, c.syntaxError(fmt.Sprintf("unexpected token %s in argument list", c.curr))
		}
	}
	if !c.is(endGrp) {
		return nil, c.syntaxError("missing closing parenthesis after arguments")
	}
	c.next()
	return expr, nil
}

func (c *Compiler) compileUnion(left Expr) (Expr, error) {
	c.next()
	right, err := c.compileExpr(powUnion)
	if err != nil {
		return nil, err
	}
	expr := union{
		left:  left,
		right: right,
	}
	return expr, nil
}

func (c *Compiler) compileBinary(left Expr) (Expr, error) {
	var (
		op  = c.curr.Type
		pow = c.power()
	)
	c.next()
	right, err := c.compileExpr(pow)
	if err != nil {
		return nil, err
	}
	expr := binary{
		left:  left,
		right: right,
		op:    op,
	}
	return expr, nil
}

func (c *Compiler) compileReverse() (Expr, error) {
	c.next()
	expr, err := c.compileExpr(powPrefix)
	if err != nil {
		return nil, err
	}
	return reverse{expr: expr}, nil
}

func (c *Compiler) compileVariable() (Expr, error) {
	defer c.next()
	return identifier(c.curr.Literal), nil
}

func (c *Compiler) compileLiteral() (Expr, error) {
	defer c.next()
	return literal(c.curr.Literal), nil
}

func (c *Compiler) compileNumber() (Expr, error) {
	defer c.next()
	f, err := strconv.ParseFloat(c.curr.Literal, 64)
	if err != nil {
		return nil, c.syntaxError(fmt.Sprintf("%s: invalid number", c.curr.Literal))
	}
	return number(f), nil
}

func (c *Compiler) isStepStart() bool {
	switch c.curr.Type {
	case Name, attrNode, currNode, parentNode:
		return true
	default:
		return false
	}
}

func (c *Compiler) syntaxError(cause string) error {
	return SyntaxError{
		Expr:     c.query,
		Cause:    cause,
		Position: c.curr.Position,
	}
}

func (c *Compiler) power() int {
	return bindings[c.curr.Type]
}

func (c *Compiler) is(kind rune) bool {
	return c.curr.Type == kind
}

func (c *Compiler) done() bool {
	return c.is(EOF)
}

func (c *Compiler) next() {
	c.curr = c.peek
	c.peek = c.scan.Scan()
}

var kindTypes = map[string]xml.NodeType{
	"node":                   xml.TypeNode,
	"text":                   xml.TypeText,
	"comment":                xml.TypeComment,
	"processing-instruction": xml.TypeInstruction,
}

func isKindTest(name string) bool {
	_, ok := kindTypes[name]
	return ok
}

const (
	powLowest = iota
	powOr
	powAnd
	powEq
	powCmp
	powAdd
	powMul
	powPrefix
	powUnion
	powStep
	powPred
)

var bindings = map[rune]int{
	currLevel: powStep,
	anyLevel:  powStep,
	opUnion:   powUnion,
	opEq:      powEq,
	opNe:      powEq,
	opGt:      powCmp,
	opGe:      powCmp,
	opLt:      powCmp,
	opLe:      powCmp,
	opAnd:     powAnd,
	opOr:      powOr,
	opAdd:     powAdd,
	opSub:     powAdd,
	opMul:     powMul,
	opDiv:     powMul,
	opMod:     powMul,
	begPred:   powPred,
}
