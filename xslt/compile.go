package xslt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/midbel/angle/environ"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

const (
	xsltNamespaceUri    = "http://www.w3.org/1999/XSL/Transform"
	xsltNamespacePrefix = "xsl"
)

type compileFunc func(*compiler, *xml.Element) (*TemplateNode, error)

var compilers map[string]compileFunc

func init() {
	compilers = map[string]compileFunc{
		"apply-templates":        (*compiler).compileApplyTemplates,
		"call-template":          (*compiler).compileCallTemplate,
		"for-each":               (*compiler).compileForEach,
		"value-of":               (*compiler).compileValueOf,
		"text":                   (*compiler).compileText,
		"element":                (*compiler).compileElement,
		"attribute":              (*compiler).compileAttribute,
		"comment":                (*compiler).compileComment,
		"processing-instruction": (*compiler).compilePI,
		"copy":                   (*compiler).compileCopy,
		"copy-of":                (*compiler).compileCopyOf,
		"if":                     (*compiler).compileIf,
		"choose":                 (*compiler).compileChoose,
		"variable":               (*compiler).compileVariable,
		"message":                (*compiler).compileMessage,
		"fallback":               (*compiler).compileFallback,
	}
}

// Load compiles the stylesheet found in file. Included and imported
// stylesheets are searched relative to its directory.
func Load(file string) (*Stylesheet, error) {
	doc, err := parseStylesheet(file)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, err
	}
	c := createCompiler(filepath.Base(file))
	c.loading = append(c.loading, abs)
	if err := c.compile(doc, filepath.Dir(abs)); err != nil {
		return nil, err
	}
	return c.sheet, nil
}

// Parse compiles the stylesheet read from r. Relative references are
// resolved from the working directory.
func Parse(r io.Reader) (*Stylesheet, error) {
	p := xml.NewParser(r)
	p.TrimSpace = false
	doc, err := p.Parse()
	if err != nil {
		return nil, err
	}
	return Compile(doc)
}

// Compile builds a stylesheet from a parsed document. Whitespace only text
// nodes are ignored except in xsl:text.
func Compile(doc *xml.Document) (*Stylesheet, error) {
	c := createCompiler("")
	if err := c.compile(doc, "."); err != nil {
		return nil, err
	}
	return c.sheet, nil
}

func parseStylesheet(file string) (*xml.Document, error) {
	r, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	p := xml.NewParser(r)
	p.TrimSpace = false
	return p.Parse()
}

type compiler struct {
	sheet      *Stylesheet
	precedence int
	loading    []string
}

func createCompiler(name string) *compiler {
	return &compiler{
		sheet: NewStylesheet(name),
	}
}

func (c *compiler) compile(doc *xml.Document, dir string) error {
	root, ok := doc.Root().(*xml.Element)
	if !ok {
		return &CompileError{Element: "document", Cause: xml.ErrElement}
	}
	if !isXSL(root, "stylesheet") && !isXSL(root, "transform") {
		return c.simplified(root)
	}
	return c.module(root, dir)
}

// module compiles a stylesheet and the stylesheets it imports. An imported
// module gets a lower precedence than the module importing it and than the
// modules imported before it.
func (c *compiler) module(root *xml.Element, dir string) error {
	decls, imports, err := c.collect(root, dir)
	if err != nil {
		return err
	}
	for _, href := range imports {
		if err := c.importSheet(href); err != nil {
			return err
		}
	}
	c.precedence++
	for _, d := range decls {
		if err := c.declare(d, c.precedence); err != nil {
			return err
		}
	}
	return nil
}

// collect returns the top level elements of root, merged with the ones of
// the stylesheets it includes, and the files it imports.
func (c *compiler) collect(root *xml.Element, dir string) ([]*xml.Element, []string, error) {
	var (
		decls   []*xml.Element
		imports []string
	)
	for _, n := range root.Nodes {
		el, ok := n.(*xml.Element)
		if !ok {
			if err := checkBlank(root, n); err != nil {
				return nil, nil, err
			}
			continue
		}
		switch {
		case isXSL(el, "import"):
			href, err := requiredAttr(el, "href")
			if err != nil {
				return nil, nil, err
			}
			imports = append(imports, filepath.Join(dir, href))
		case isXSL(el, "include"):
			href, err := requiredAttr(el, "href")
			if err != nil {
				return nil, nil, err
			}
			file := filepath.Join(dir, href)
			doc, err := c.enter(el, file)
			if err != nil {
				return nil, nil, err
			}
			others, more, err := c.collect(doc, filepath.Dir(file))
			c.leave()
			if err != nil {
				return nil, nil, err
			}
			decls = append(decls, others...)
			imports = append(imports, more...)
		default:
			decls = append(decls, el)
		}
	}
	return decls, imports, nil
}

func (c *compiler) importSheet(file string) error {
	root, err := c.enter(nil, file)
	if err != nil {
		return err
	}
	defer c.leave()
	if !isXSL(root, "stylesheet") && !isXSL(root, "transform") {
		return &CompileError{Element: root.QualifiedName(), Cause: fmt.Errorf("%s: stylesheet expected", file)}
	}
	return c.module(root, filepath.Dir(file))
}

func (c *compiler) enter(el *xml.Element, file string) (*xml.Element, error) {
	name := "import"
	if el != nil {
		name = el.QualifiedName()
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, &CompileError{Element: name, Cause: err}
	}
	if slices.Contains(c.loading, abs) {
		return nil, &CompileError{Element: name, Cause: fmt.Errorf("%s: stylesheet loaded recursively", file)}
	}
	doc, err := parseStylesheet(file)
	if err != nil {
		return nil, &CompileError{Element: name, Cause: err}
	}
	root, ok := doc.Root().(*xml.Element)
	if !ok {
		return nil, &CompileError{Element: name, Cause: xml.ErrElement}
	}
	c.loading = append(c.loading, abs)
	return root, nil
}

func (c *compiler) leave() {
	c.loading = c.loading[:len(c.loading)-1]
}

func (c *compiler) declare(el *xml.Element, precedence int) error {
	var err error
	switch {
	case isXSL(el, "template"):
		err = c.declareTemplate(el, precedence)
	case isXSL(el, "variable"):
		err = c.declareGlobal(el, false, precedence)
	case isXSL(el, "param"):
		err = c.declareGlobal(el, true, precedence)
	case isXSL(el, "output"):
		c.declareOutput(el)
	case isXSL(el, "strip-space"), isXSL(el, "preserve-space"):
	case el.Uri == xsltNamespaceUri:
		err = ErrUnsupported
	default:
	}
	return wrapCompile(el, err)
}

func (c *compiler) declareTemplate(el *xml.Element, precedence int) error {
	var (
		match, _ = optionalAttr(el, "match")
		name, _  = optionalAttr(el, "name")
		tpl      *Template
		err      error
	)
	switch {
	case match != "":
		tpl, err = NewTemplate(match, namespaces(el))
		if err != nil {
			return err
		}
		tpl.Name = name
	case name != "":
		tpl = NamedTemplate(name)
	default:
		return fmt.Errorf("match or name: %w", ErrMissing)
	}
	tpl.Mode, _ = optionalAttr(el, "mode")
	if prio, ok := optionalAttr(el, "priority"); ok {
		p, err := strconv.ParseFloat(strings.TrimSpace(prio), 64)
		if err != nil {
			return fmt.Errorf("priority: %w", err)
		}
		tpl.SetPriority(p)
	}
	tpl.precedence = precedence

	nodes := el.Nodes
	for len(nodes) > 0 {
		child, ok := nodes[0].(*xml.Element)
		if !ok {
			if isBlank(nodes[0]) {
				nodes = nodes[1:]
				continue
			}
			break
		}
		if !isXSL(child, "param") {
			break
		}
		p, err := c.compileParam(child)
		if err != nil {
			return wrapCompile(child, err)
		}
		tpl.Params = append(tpl.Params, p)
		nodes = nodes[1:]
	}
	if tpl.Body, err = c.compileNodes(nodes); err != nil {
		return err
	}
	return c.sheet.AddTemplate(tpl)
}

func (c *compiler) declareGlobal(el *xml.Element, param bool, precedence int) error {
	p, err := c.compileParam(el)
	if err != nil {
		return err
	}
	return c.sheet.addGlobal(p, param, precedence)
}

func (c *compiler) declareOutput(el *xml.Element) {
	out := &c.sheet.Output
	for _, a := range el.Attrs {
		switch value := strings.TrimSpace(a.Value()); a.Name {
		case "method":
			out.Method = value
		case "version":
			out.Version = value
		case "encoding":
			out.Encoding = value
		case "indent":
			out.Indent = value == "yes"
		case "omit-xml-declaration":
			out.OmitProlog = value == "yes"
		default:
		}
	}
}

// simplified compiles a literal result element used as stylesheet. It becomes
// the body of a template matching the root.
func (c *compiler) simplified(root *xml.Element) error {
	ok := slices.ContainsFunc(root.Attrs, func(a *xml.Attribute) bool {
		return a.Uri == xsltNamespaceUri && a.Name == "version"
	})
	if !ok {
		return &CompileError{Element: root.QualifiedName(), Cause: fmt.Errorf("xsl:version: %w", ErrMissing)}
	}
	tpl, err := NewTemplate("/", nil)
	if err != nil {
		return err
	}
	c.precedence++
	tpl.precedence = c.precedence
	if tpl.Body, err = c.compileNode(root); err != nil {
		return err
	}
	return c.sheet.AddTemplate(tpl)
}

func (c *compiler) compileNodes(nodes []xml.Node) (*TemplateNode, error) {
	var list []*TemplateNode
	for _, n := range nodes {
		var (
			node *TemplateNode
			err  error
		)
		switch n := n.(type) {
		case *xml.Element:
			node, err = c.compileNode(n)
		case *xml.Text:
			if isBlank(n) {
				continue
			}
			node = &TemplateNode{Instruction: &Text{Content: n.Value()}}
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		list = append(list, node)
	}
	return Chain(list...), nil
}

func (c *compiler) compileNode(el *xml.Element) (*TemplateNode, error) {
	if el.Uri != xsltNamespaceUri {
		node, err := c.compileLiteral(el)
		return node, wrapCompile(el, err)
	}
	fn, ok := compilers[el.Name]
	if !ok {
		node, err := c.compileUnsupported(el)
		return node, wrapCompile(el, err)
	}
	node, err := fn(c, el)
	return node, wrapCompile(el, err)
}

// compileUnsupported replaces an unknown instruction by its fallback
// children when it has some.
func (c *compiler) compileUnsupported(el *xml.Element) (*TemplateNode, error) {
	var list []*TemplateNode
	for _, n := range el.Nodes {
		child, ok := n.(*xml.Element)
		if !ok || !isXSL(child, "fallback") {
			continue
		}
		body, err := c.compileNodes(child.Nodes)
		if err != nil {
			return nil, err
		}
		list = append(list, body)
	}
	if len(list) == 0 {
		return nil, ErrUnsupported
	}
	return Chain(list...), nil
}

func (c *compiler) compileLiteral(el *xml.Element) (*TemplateNode, error) {
	var (
		ns  = namespaces(el)
		lit = LiteralElement{
			Ident: el.QName,
		}
	)
	for _, a := range el.Attrs {
		if a.Uri == xsltNamespaceUri {
			continue
		}
		avt, err := CompileAVT(a.Value(), ns)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.QualifiedName(), err)
		}
		lit.Attrs = append(lit.Attrs, LiteralAttribute{QName: a.QName, Value: avt})
	}
	return c.instruction(&lit, el.Nodes)
}

func (c *compiler) compileApplyTemplates(el *xml.Element) (*TemplateNode, error) {
	var (
		apply ApplyTemplates
		err   error
	)
	if query, ok := optionalAttr(el, "select"); ok {
		if apply.Select, err = c.compileExpr(el, query); err != nil {
			return nil, err
		}
	}
	apply.Mode, _ = optionalAttr(el, "mode")
	for _, n := range el.Nodes {
		child, ok := n.(*xml.Element)
		if !ok {
			if err := checkBlank(el, n); err != nil {
				return nil, err
			}
			continue
		}
		switch {
		case isXSL(child, "sort"):
			key, err := c.compileSort(child)
			if err != nil {
				return nil, wrapCompile(child, err)
			}
			apply.Sort = append(apply.Sort, key)
		case isXSL(child, "with-param"):
			p, err := c.compileParam(child)
			if err != nil {
				return nil, wrapCompile(child, err)
			}
			apply.Params = append(apply.Params, p)
		default:
			return nil, wrapCompile(child, fmt.Errorf("unexpected element"))
		}
	}
	return &TemplateNode{Instruction: &apply}, nil
}

func (c *compiler) compileCallTemplate(el *xml.Element) (*TemplateNode, error) {
	name, err := requiredAttr(el, "name")
	if err != nil {
		return nil, err
	}
	call := CallTemplate{
		Ident: name,
	}
	for _, n := range el.Nodes {
		child, ok := n.(*xml.Element)
		if !ok {
			if err := checkBlank(el, n); err != nil {
				return nil, err
			}
			continue
		}
		if !isXSL(child, "with-param") {
			return nil, wrapCompile(child, fmt.Errorf("unexpected element"))
		}
		p, err := c.compileParam(child)
		if err != nil {
			return nil, wrapCompile(child, err)
		}
		call.Params = append(call.Params, p)
	}
	return &TemplateNode{Instruction: &call}, nil
}

func (c *compiler) compileForEach(el *xml.Element) (*TemplateNode, error) {
	expr, err := c.requiredExpr(el, "select")
	if err != nil {
		return nil, err
	}
	each := ForEach{
		Select: expr,
	}
	nodes := el.Nodes
	for len(nodes) > 0 {
		child, ok := nodes[0].(*xml.Element)
		if !ok {
			if isBlank(nodes[0]) {
				nodes = nodes[1:]
				continue
			}
			break
		}
		if !isXSL(child, "sort") {
			break
		}
		key, err := c.compileSort(child)
		if err != nil {
			return nil, wrapCompile(child, err)
		}
		each.Sort = append(each.Sort, key)
		nodes = nodes[1:]
	}
	return c.instruction(&each, nodes)
}

func (c *compiler) compileSort(el *xml.Element) (SortKey, error) {
	var (
		key SortKey
		err error
	)
	query, ok := optionalAttr(el, "select")
	if !ok {
		query = "."
	}
	if key.Select, err = c.compileExpr(el, query); err != nil {
		return key, err
	}
	key.DataType, _ = optionalAttr(el, "data-type")
	key.Order, _ = optionalAttr(el, "order")
	key.CaseOrder, _ = optionalAttr(el, "case-order")
	key.Lang, _ = optionalAttr(el, "lang")
	return key, key.validate()
}

func (c *compiler) compileValueOf(el *xml.Element) (*TemplateNode, error) {
	expr, err := c.requiredExpr(el, "select")
	if err != nil {
		return nil, err
	}
	return &TemplateNode{Instruction: &ValueOf{Select: expr}}, nil
}

func (c *compiler) compileText(el *xml.Element) (*TemplateNode, error) {
	var str strings.Builder
	for _, n := range el.Nodes {
		if n.Type() != xml.TypeText {
			return nil, fmt.Errorf("%s: text expected", nodeName(n))
		}
		str.WriteString(n.Value())
	}
	return &TemplateNode{Instruction: &Text{Content: str.String()}}, nil
}

func (c *compiler) compileElement(el *xml.Element) (*TemplateNode, error) {
	name, space, err := c.compileName(el)
	if err != nil {
		return nil, err
	}
	elem := Element{
		Ident:      name,
		Namespace:  space,
		Namespaces: namespaces(el),
	}
	return c.instruction(&elem, el.Nodes)
}

func (c *compiler) compileAttribute(el *xml.Element) (*TemplateNode, error) {
	name, space, err := c.compileName(el)
	if err != nil {
		return nil, err
	}
	attr := Attribute{
		Ident:      name,
		Namespace:  space,
		Namespaces: namespaces(el),
	}
	return c.instruction(&attr, el.Nodes)
}

func (c *compiler) compileName(el *xml.Element) (AVT, AVT, error) {
	var space AVT
	str, err := requiredAttr(el, "name")
	if err != nil {
		return AVT{}, space, err
	}
	ns := namespaces(el)
	name, err := CompileAVT(str, ns)
	if err != nil {
		return name, space, err
	}
	if str, ok := optionalAttr(el, "namespace"); ok {
		space, err = CompileAVT(str, ns)
	}
	return name, space, err
}

func (c *compiler) compileComment(el *xml.Element) (*TemplateNode, error) {
	return c.instruction(&Comment{}, el.Nodes)
}

func (c *compiler) compilePI(el *xml.Element) (*TemplateNode, error) {
	str, err := requiredAttr(el, "name")
	if err != nil {
		return nil, err
	}
	name, err := CompileAVT(str, namespaces(el))
	if err != nil {
		return nil, err
	}
	return c.instruction(&ProcessingInstruction{Ident: name}, el.Nodes)
}

func (c *compiler) compileCopy(el *xml.Element) (*TemplateNode, error) {
	return c.instruction(&Copy{}, el.Nodes)
}

func (c *compiler) compileCopyOf(el *xml.Element) (*TemplateNode, error) {
	expr, err := c.requiredExpr(el, "select")
	if err != nil {
		return nil, err
	}
	return &TemplateNode{Instruction: &CopyOf{Select: expr}}, nil
}

func (c *compiler) compileIf(el *xml.Element) (*TemplateNode, error) {
	expr, err := c.requiredExpr(el, "test")
	if err != nil {
		return nil, err
	}
	return c.instruction(&If{Test: expr}, el.Nodes)
}

func (c *compiler) compileChoose(el *xml.Element) (*TemplateNode, error) {
	var choose Choose
	for _, n := range el.Nodes {
		child, ok := n.(*xml.Element)
		if !ok {
			if err := checkBlank(el, n); err != nil {
				return nil, err
			}
			continue
		}
		if choose.Otherwise != nil {
			return nil, wrapCompile(child, fmt.Errorf("otherwise should be the last element"))
		}
		switch {
		case isXSL(child, "when"):
			expr, err := c.requiredExpr(child, "test")
			if err != nil {
				return nil, wrapCompile(child, err)
			}
			body, err := c.compileNodes(child.Nodes)
			if err != nil {
				return nil, err
			}
			choose.When = append(choose.When, When{Test: expr, Body: body})
		case isXSL(child, "otherwise"):
			body, err := c.compileNodes(child.Nodes)
			if err != nil {
				return nil, err
			}
			if body == nil {
				body = &TemplateNode{Instruction: &Text{}}
			}
			choose.Otherwise = body
		default:
			return nil, wrapCompile(child, fmt.Errorf("unexpected element"))
		}
	}
	if len(choose.When) == 0 {
		return nil, fmt.Errorf("when: %w", ErrMissing)
	}
	return &TemplateNode{Instruction: &choose}, nil
}

func (c *compiler) compileVariable(el *xml.Element) (*TemplateNode, error) {
	p, err := c.compileParam(el)
	if err != nil {
		return nil, err
	}
	v := Variable{
		Ident:  p.Ident,
		Select: p.Select,
	}
	return &TemplateNode{Instruction: &v, Children: p.Body}, nil
}

func (c *compiler) compileMessage(el *xml.Element) (*TemplateNode, error) {
	var msg Message
	if str, ok := optionalAttr(el, "terminate"); ok {
		switch str = strings.TrimSpace(str); str {
		case "yes":
			msg.Terminate = true
		case "no":
		default:
			return nil, fmt.Errorf("%s: invalid value for terminate", str)
		}
	}
	return c.instruction(&msg, el.Nodes)
}

// compileFallback gives nothing: xsl:fallback is only used in place of an
// unsupported instruction.
func (c *compiler) compileFallback(_ *xml.Element) (*TemplateNode, error) {
	return nil, nil
}

// compileParam compiles xsl:param, xsl:with-param and xsl:variable. A select
// attribute excludes content.
func (c *compiler) compileParam(el *xml.Element) (*Param, error) {
	name, err := requiredAttr(el, "name")
	if err != nil {
		return nil, err
	}
	p := Param{
		Ident: strings.TrimSpace(name),
	}
	if query, ok := optionalAttr(el, "select"); ok {
		if slices.ContainsFunc(el.Nodes, func(n xml.Node) bool { return !isBlank(n) }) {
			return nil, fmt.Errorf("select attribute can not be used with content")
		}
		p.Select, err = c.compileExpr(el, query)
		return &p, err
	}
	p.Body, err = c.compileNodes(el.Nodes)
	return &p, err
}

func (c *compiler) instruction(inst Instruction, nodes []xml.Node) (*TemplateNode, error) {
	children, err := c.compileNodes(nodes)
	if err != nil {
		return nil, err
	}
	node := TemplateNode{
		Instruction: inst,
		Children:    children,
	}
	return &node, nil
}

func (c *compiler) requiredExpr(el *xml.Element, attr string) (xpath.Expr, error) {
	query, err := requiredAttr(el, attr)
	if err != nil {
		return nil, err
	}
	return c.compileExpr(el, query)
}

func (c *compiler) compileExpr(el *xml.Element, query string) (xpath.Expr, error) {
	return xpath.CompileWithNamespaces(query, namespaces(el))
}

// namespaces returns the prefixes usable in the expressions found on el. The
// default namespace never applies to names in expressions.
func namespaces(el *xml.Element) environ.Environ[string] {
	env := environ.Empty[string]()
	env.Define("xml", xml.NamespaceXML)
	for _, ns := range el.InScopeNamespaces() {
		if ns.Default() {
			continue
		}
		env.Define(ns.Prefix, ns.Uri)
	}
	return env
}

func isXSL(el *xml.Element, name string) bool {
	return el.Uri == xsltNamespaceUri && el.Name == name
}

func isBlank(n xml.Node) bool {
	switch n.Type() {
	case xml.TypeText:
		return strings.TrimSpace(n.Value()) == ""
	case xml.TypeComment, xml.TypeInstruction:
		return true
	default:
		return false
	}
}

func checkBlank(parent *xml.Element, n xml.Node) error {
	if isBlank(n) {
		return nil
	}
	return fmt.Errorf("%s: unexpected %s", parent.QualifiedName(), nodeName(n))
}

func requiredAttr(el *xml.Element, name string) (string, error) {
	str, ok := optionalAttr(el, name)
	if !ok {
		return "", fmt.Errorf("%s: %w", name, ErrMissing)
	}
	return str, nil
}

func optionalAttr(el *xml.Element, name string) (string, bool) {
	a, ok := el.GetAttribute(name)
	if !ok {
		return "", false
	}
	return a.Value(), true
}

// wrapCompile attaches the element to err unless an element deeper in the
// stylesheet already did it.
func wrapCompile(el *xml.Element, err error) error {
	if err == nil {
		return nil
	}
	var ce *CompileError
	if errors.As(err, &ce) {
		return err
	}
	return &CompileError{
		Element: el.QualifiedName(),
		Cause:   err,
	}
}
