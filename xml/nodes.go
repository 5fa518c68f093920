package xml

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
)

type NodeType int8

const (
	TypeDocument NodeType = 1 << iota
	TypeElement
	TypeComment
	TypeAttribute
	TypeInstruction
	TypeText
)

const TypeNode = TypeDocument | TypeElement | TypeComment | TypeAttribute | TypeInstruction | TypeText

func (n NodeType) String() string {
	switch n {
	default:
		return "<>"
	case TypeDocument:
		return "document"
	case TypeElement:
		return "element"
	case TypeComment:
		return "comment"
	case TypeAttribute:
		return "attribute"
	case TypeInstruction:
		return "processing-instruction"
	case TypeText:
		return "text"
	case TypeNode:
		return "node"
	}
}

const (
	NamespaceXML   = "http://www.w3.org/XML/1998/namespace"
	NamespaceXMLNS = "http://www.w3.org/2000/xmlns/"
)

var (
	ErrElement   = errors.New("element expected")
	ErrHierarchy = errors.New("node can not be inserted here")
	ErrReference = errors.New("reference node is not a child")
)

type Cloner interface {
	Clone() Node
}

type Node interface {
	Type() NodeType
	LocalName() string
	QualifiedName() string
	Leaf() bool
	Position() int
	Parent() Node
	Value() string
	Identity() string

	setParent(Node)
	setPosition(int)
}

type NS struct {
	Prefix string
	Uri    string
}

func (n NS) Default() bool {
	return n.Prefix == ""
}

type QName struct {
	Uri   string
	Space string
	Name  string
}

func ParseName(name string) (QName, error) {
	var (
		qn QName
		ok bool
	)
	qn.Space, qn.Name, ok = strings.Cut(name, ":")
	if !ok {
		qn.Name, qn.Space = qn.Space, ""
	}
	if ok && (qn.Space == "" || qn.Name == "") {
		return qn, fmt.Errorf("%s: invalid qualified name", name)
	}
	if qn.Name == "" {
		return qn, fmt.Errorf("empty name")
	}
	return qn, nil
}

func ExpandedName(name, space, uri string) QName {
	return QName{
		Name:  name,
		Space: space,
		Uri:   uri,
	}
}

func LocalName(name string) QName {
	return ExpandedName(name, "", "")
}

func QualifiedName(name, space string) QName {
	return ExpandedName(name, space, "")
}

func (q QName) Zero() bool {
	return q.Space == "" && q.Name == ""
}

// Equal compares expanded names: the prefix is not significant.
func (q QName) Equal(other QName) bool {
	return q.Uri == other.Uri && q.Name == other.Name
}

func (q QName) LocalName() string {
	return q.Name
}

func (q QName) ExpandedName() string {
	if q.Uri == "" {
		return q.LocalName()
	}
	return fmt.Sprintf("{%s}%s", q.Uri, q.Name)
}

func (q QName) QualifiedName() string {
	if q.Space == "" {
		return q.LocalName()
	}
	return fmt.Sprintf("%s:%s", q.Space, q.Name)
}

// sequence numbers documents and nodes in creation order.
var sequence atomic.Uint64

type Document struct {
	Version  string
	Encoding string

	Nodes []Node
	id    uint64
}

func NewDocument(root Node) *Document {
	doc := EmptyDocument()
	if root != nil {
		doc.Append(root)
	}
	return doc
}

func EmptyDocument() *Document {
	doc := Document{
		Version:  SupportedVersion,
		Encoding: SupportedEncoding,
		id:       sequence.Add(1),
	}
	return &doc
}

func (d *Document) Root() Node {
	ix := slices.IndexFunc(d.Nodes, func(n Node) bool {
		return n.Type() == TypeElement
	})
	if ix < 0 {
		return nil
	}
	return d.Nodes[ix]
}

func (d *Document) Append(node Node) error {
	return d.InsertBefore(node, nil)
}

// InsertBefore inserts node among the children of the document just before
// ref. A nil ref appends the node.
func (d *Document) InsertBefore(node, ref Node) error {
	switch node.Type() {
	case TypeAttribute, TypeDocument:
		return fmt.Errorf("%s: %w", node.Type(), ErrHierarchy)
	}
	nodes, err := insertBefore(d, d.Nodes, node, ref)
	if err == nil {
		d.Nodes = nodes
	}
	return err
}

func (d *Document) Clone() Node {
	c := EmptyDocument()
	c.Version = d.Version
	c.Encoding = d.Encoding
	for _, n := range d.Nodes {
		c.Append(cloneNode(n))
	}
	return c
}

func (_ *Document) Type() NodeType {
	return TypeDocument
}

func (_ *Document) LocalName() string {
	return ""
}

func (_ *Document) QualifiedName() string {
	return ""
}

func (d *Document) Leaf() bool {
	return len(d.Nodes) == 0
}

func (_ *Document) Position() int {
	return 0
}

func (_ *Document) Parent() Node {
	return nil
}

func (d *Document) Value() string {
	return textContent(d.Nodes)
}

func (d *Document) Identity() string {
	return fmt.Sprintf("document(%d)", d.id)
}

func (_ *Document) setParent(_ Node) {}

func (_ *Document) setPosition(_ int) {}

type Attribute struct {
	QName
	Datum string

	parent   Node
	position int
	seq      uint64
}

func NewAttribute(name QName, value string) *Attribute {
	return &Attribute{
		QName: name,
		Datum: value,
		seq:   sequence.Add(1),
	}
}

func (a *Attribute) Clone() Node {
	return NewAttribute(a.QName, a.Datum)
}

func (_ *Attribute) Type() NodeType {
	return TypeAttribute
}

func (_ *Attribute) Leaf() bool {
	return true
}

func (a *Attribute) Position() int {
	return a.position
}

func (a *Attribute) Parent() Node {
	return a.parent
}

func (a *Attribute) Value() string {
	return a.Datum
}

func (a *Attribute) Identity() string {
	return fmt.Sprintf("attribute(%s)[%s]", a.QualifiedName(), identityPath(a))
}

func (a *Attribute) setParent(node Node) {
	a.parent = node
}

func (a *Attribute) setPosition(pos int) {
	a.position = pos
}

type Element struct {
	QName
	Attrs      []*Attribute
	Nodes      []Node
	Namespaces []NS

	parent   Node
	position int
	seq      uint64
}

func NewElement(name QName) *Element {
	return &Element{
		QName: name,
		seq:   sequence.Add(1),
	}
}

// Copy returns a shallow copy of the element: name, namespaces and
// attributes but no children.
func (e *Element) Copy() *Element {
	c := NewElement(e.QName)
	c.Namespaces = slices.Clone(e.Namespaces)
	for _, a := range e.Attrs {
		c.SetAttribute(NewAttribute(a.QName, a.Datum))
	}
	return c
}

func (e *Element) Clone() Node {
	c := e.Copy()
	for _, n := range e.Nodes {
		c.Append(cloneNode(n))
	}
	return c
}

func (e *Element) DeclareNS(prefix, uri string) {
	ix := slices.IndexFunc(e.Namespaces, func(n NS) bool {
		return n.Prefix == prefix
	})
	if ix >= 0 {
		e.Namespaces[ix].Uri = uri
		return
	}
	e.Namespaces = append(e.Namespaces, NS{Prefix: prefix, Uri: uri})
}

// LookupNamespace finds the uri bound to prefix on the element or one of its
// ancestors.
func (e *Element) LookupNamespace(prefix string) (string, bool) {
	if prefix == "xml" {
		return NamespaceXML, true
	}
	for n := Node(e); n != nil; n = n.Parent() {
		el, ok := n.(*Element)
		if !ok {
			break
		}
		ix := slices.IndexFunc(el.Namespaces, func(ns NS) bool {
			return ns.Prefix == prefix
		})
		if ix >= 0 {
			return el.Namespaces[ix].Uri, true
		}
	}
	return "", false
}

// InScopeNamespaces returns the namespaces visible from the element, the
// closest declaration of a prefix hiding the others.
func (e *Element) InScopeNamespaces() []NS {
	var (
		list []NS
		seen = make(map[string]struct{})
	)
	for n := Node(e); n != nil; n = n.Parent() {
		el, ok := n.(*Element)
		if !ok {
			break
		}
		for _, ns := range el.Namespaces {
			if _, ok := seen[ns.Prefix]; ok {
				continue
			}
			seen[ns.Prefix] = struct{}{}
			list = append(list, ns)
		}
	}
	return list
}

func (e *Element) Attributes() []*Attribute {
	return e.Attrs
}

func (e *Element) GetAttribute(name string) (*Attribute, bool) {
	ix := slices.IndexFunc(e.Attrs, func(a *Attribute) bool {
		return a.QualifiedName() == name
	})
	if ix < 0 {
		return nil, false
	}
	return e.Attrs[ix], true
}

func (e *Element) SetAttribute(attr *Attribute) {
	ix := slices.IndexFunc(e.Attrs, func(a *Attribute) bool {
		if attr.Uri != "" || a.Uri != "" {
			return a.QName.Equal(attr.QName)
		}
		return a.QualifiedName() == attr.QualifiedName()
	})
	attr.setParent(e)
	if ix < 0 {
		attr.setPosition(len(e.Attrs))
		e.Attrs = append(e.Attrs, attr)
		return
	}
	attr.setPosition(ix)
	e.Attrs[ix].setParent(nil)
	e.Attrs[ix] = attr
}

func (e *Element) RemoveAttribute(name QName) {
	ix := slices.IndexFunc(e.Attrs, func(a *Attribute) bool {
		return a.QName == name
	})
	if ix < 0 {
		return
	}
	e.Attrs[ix].setParent(nil)
	e.Attrs = slices.Delete(e.Attrs, ix, ix+1)
	for i := range e.Attrs {
		e.Attrs[i].setPosition(i)
	}
}

// Append adds node as the last child of the element. Attributes are set
// instead of appended.
func (e *Element) Append(node Node) error {
	return e.InsertBefore(node, nil)
}

func (e *Element) InsertBefore(node, ref Node) error {
	switch node.Type() {
	case TypeAttribute:
		e.SetAttribute(node.(*Attribute))
		return nil
	case TypeDocument:
		return fmt.Errorf("%s: %w", node.Type(), ErrHierarchy)
	}
	nodes, err := insertBefore(e, e.Nodes, node, ref)
	if err == nil {
		e.Nodes = nodes
	}
	return err
}

func (e *Element) RemoveNode(at int) error {
	if at < 0 || at >= len(e.Nodes) {
		return fmt.Errorf("%s: removing node with bad index (%d - %d)", e.QualifiedName(), at, len(e.Nodes))
	}
	e.Nodes[at].setParent(nil)
	e.Nodes = slices.Delete(e.Nodes, at, at+1)
	for i := at; i < len(e.Nodes); i++ {
		e.Nodes[i].setPosition(i)
	}
	return nil
}

func (_ *Element) Type() NodeType {
	return TypeElement
}

func (e *Element) Leaf() bool {
	return !slices.ContainsFunc(e.Nodes, func(n Node) bool {
		return n.Type() == TypeElement
	})
}

func (e *Element) Empty() bool {
	return len(e.Nodes) == 0
}

func (e *Element) Value() string {
	return textContent(e.Nodes)
}

func (e *Element) Position() int {
	return e.position
}

func (e *Element) Parent() Node {
	return e.parent
}

func (e *Element) Identity() string {
	return fmt.Sprintf("element(%s)[%s]", e.QualifiedName(), identityPath(e))
}

func (e *Element) setPosition(pos int) {
	e.position = pos
}

func (e *Element) setParent(parent Node) {
	e.parent = parent
}

type Instruction struct {
	QName
	Content string

	parent   Node
	position int
	seq      uint64
}

func NewInstruction(name QName, content string) *Instruction {
	return &Instruction{
		QName:   name,
		Content: content,
		seq:     sequence.Add(1),
	}
}

func (i *Instruction) Clone() Node {
	return NewInstruction(i.QName, i.Content)
}

func (_ *Instruction) Type() NodeType {
	return TypeInstruction
}

func (_ *Instruction) Leaf() bool {
	return true
}

func (i *Instruction) Value() string {
	return i.Content
}

func (i *Instruction) Position() int {
	return i.position
}

func (i *Instruction) Parent() Node {
	return i.parent
}

func (i *Instruction) Identity() string {
	return fmt.Sprintf("processing-instruction(%s)[%s]", i.Name, identityPath(i))
}

func (i *Instruction) setPosition(pos int) {
	i.position = pos
}

func (i *Instruction) setParent(parent Node) {
	i.parent = parent
}

type Text struct {
	Content string

	parent   Node
	position int
	seq      uint64
}

func NewText(text string) *Text {
	return &Text{
		Content: text,
		seq:     sequence.Add(1),
	}
}

func (t *Text) Clone() Node {
	return NewText(t.Content)
}

func (_ *Text) Type() NodeType {
	return TypeText
}

func (_ *Text) LocalName() string {
	return ""
}

func (_ *Text) QualifiedName() string {
	return ""
}

func (_ *Text) Leaf() bool {
	return true
}

func (t *Text) Value() string {
	return t.Content
}

func (t *Text) Position() int {
	return t.position
}

func (t *Text) Parent() Node {
	return t.parent
}

func (t *Text) Identity() string {
	return fmt.Sprintf("text()[%s]", identityPath(t))
}

func (t *Text) setPosition(pos int) {
	t.position = pos
}

func (t *Text) setParent(parent Node) {
	t.parent = parent
}

type Comment struct {
	Content string

	parent   Node
	position int
	seq      uint64
}

func NewComment(comment string) *Comment {
	return &Comment{
		Content: comment,
		seq:     sequence.Add(1),
	}
}

func (c *Comment) Clone() Node {
	return NewComment(c.Content)
}

func (_ *Comment) Type() NodeType {
	return TypeComment
}

func (_ *Comment) LocalName() string {
	return ""
}

func (_ *Comment) QualifiedName() string {
	return ""
}

func (_ *Comment) Leaf() bool {
	return true
}

func (c *Comment) Value() string {
	return c.Content
}

func (c *Comment) Position() int {
	return c.position
}

func (c *Comment) Parent() Node {
	return c.parent
}

func (c *Comment) Identity() string {
	return fmt.Sprintf("comment()[%s]", identityPath(c))
}

func (c *Comment) setPosition(pos int) {
	c.position = pos
}

func (c *Comment) setParent(parent Node) {
	c.parent = parent
}

func insertBefore(parent Node, nodes []Node, node, ref Node) ([]Node, error) {
	at := len(nodes)
	if ref != nil {
		if ref.Parent() != parent {
			return nodes, ErrReference
		}
		at = ref.Position()
		if at < 0 || at >= len(nodes) || nodes[at] != ref {
			return nodes, ErrReference
		}
	}
	if t, ok := node.(*Text); ok && at > 0 {
		if prev, ok := nodes[at-1].(*Text); ok {
			prev.Content += t.Content
			return nodes, nil
		}
	}
	node.setParent(parent)
	nodes = slices.Insert(nodes, at, node)
	for i := at; i < len(nodes); i++ {
		nodes[i].setPosition(i)
	}
	return nodes, nil
}

func cloneNode(node Node) Node {
	if c, ok := node.(Cloner); ok {
		return c.Clone()
	}
	return node
}

func textContent(nodes []Node) string {
	var str strings.Builder
	for _, n := range nodes {
		switch n.Type() {
		case TypeText, TypeElement:
			str.WriteString(n.Value())
		default:
		}
	}
	return str.String()
}

func identityPath(node Node) string {
	var list []string
	for n := node; n != nil && n.Type() != TypeDocument; n = n.Parent() {
		list = append(list, strconv.Itoa(n.Position()))
	}
	slices.Reverse(list)
	return strings.Join(list, "/")
}
