package xml

import (
	"bytes"
	stdxml "encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/midbel/angle/environ"
	"golang.org/x/text/encoding/ianaindex"
)

const MaxDepth = 512

const (
	SupportedVersion  = "1.0"
	SupportedEncoding = "UTF-8"
)

const AttrXmlNS = "xmlns"

type Position struct {
	Line   int
	Column int
}

type ParseError struct {
	Position
	Element string
	Message string
}

func (p ParseError) Error() string {
	if p.Element == "" {
		return fmt.Sprintf("%d:%d: %s", p.Line, p.Column, p.Message)
	}
	return fmt.Sprintf("%d:%d: %s: %s", p.Line, p.Column, p.Element, p.Message)
}

// Parser builds a Document from the tokens of the standard library decoder.
// Namespace prefixes are resolved by the parser itself so that prefixes
// survive in the tree.
type Parser struct {
	decoder *stdxml.Decoder

	TrimSpace bool
	StrictNS  bool
	MaxDepth  int

	namespaces []environ.Environ[string]
	stack      []*Element
}

func NewParser(r io.Reader) *Parser {
	d := stdxml.NewDecoder(r)
	d.Strict = true
	d.CharsetReader = charsetReader

	root := environ.Empty[string]()
	root.Define("xml", NamespaceXML)

	p := Parser{
		decoder:    d,
		TrimSpace:  true,
		MaxDepth:   MaxDepth,
		namespaces: []environ.Environ[string]{root},
	}
	return &p
}

func ParseFile(file string) (*Document, error) {
	r, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ParseReader(r)
}

func ParseString(str string) (*Document, error) {
	return ParseReader(strings.NewReader(str))
}

func ParseReader(r io.Reader) (*Document, error) {
	return NewParser(r).Parse()
}

func (p *Parser) Parse() (*Document, error) {
	doc := EmptyDocument()
	for {
		tok, err := p.decoder.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, p.wrapError(err)
		}
		if err := p.parseToken(doc, tok); err != nil {
			return nil, err
		}
	}
	if len(p.stack) > 0 {
		el := p.stack[len(p.stack)-1]
		return nil, p.createError(el.QualifiedName(), "closing element is missing")
	}
	if doc.Root() == nil {
		return nil, p.createError("document", "missing root element")
	}
	return doc, nil
}

func (p *Parser) parseToken(doc *Document, tok stdxml.Token) error {
	switch tok := tok.(type) {
	case stdxml.StartElement:
		return p.parseElement(doc, tok)
	case stdxml.EndElement:
		return p.parseCloseElement(tok)
	case stdxml.CharData:
		return p.parseText(string(tok))
	case stdxml.Comment:
		return p.attach(doc, NewComment(string(tok)))
	case stdxml.ProcInst:
		if tok.Target == "xml" {
			return p.parseProlog(doc, string(tok.Inst))
		}
		pi := NewInstruction(LocalName(tok.Target), string(bytes.TrimSpace(tok.Inst)))
		return p.attach(doc, pi)
	case stdxml.Directive:
		return nil
	default:
		return p.createError("document", "unsupported token")
	}
}

func (p *Parser) parseProlog(doc *Document, inst string) error {
	if version := procInstParam(inst, "version"); version != "" {
		if version != SupportedVersion {
			return p.createError("document", "xml version not supported")
		}
		doc.Version = version
	}
	if encoding := procInstParam(inst, "encoding"); encoding != "" {
		doc.Encoding = encoding
	}
	return nil
}

func (p *Parser) parseElement(doc *Document, tok stdxml.StartElement) error {
	if len(p.stack) >= p.MaxDepth {
		return p.createError(tok.Name.Local, "maximum depth reached")
	}
	if len(p.stack) == 0 && doc.Root() != nil {
		return p.createError(tok.Name.Local, "document has more than one root element")
	}
	scope := environ.Enclosed[string](p.currentScope())
	elem := NewElement(QualifiedName(tok.Name.Local, tok.Name.Space))

	for _, a := range tok.Attr {
		switch {
		case a.Name.Space == "" && a.Name.Local == AttrXmlNS:
			scope.Define("", a.Value)
			elem.DeclareNS("", a.Value)
		case a.Name.Space == AttrXmlNS:
			scope.Define(a.Name.Local, a.Value)
			elem.DeclareNS(a.Name.Local, a.Value)
		}
	}
	uri, err := p.resolve(scope, elem.Space, true)
	if err != nil {
		return err
	}
	elem.Uri = uri
	for _, a := range tok.Attr {
		if a.Name.Space == AttrXmlNS || (a.Name.Space == "" && a.Name.Local == AttrXmlNS) {
			continue
		}
		attr := NewAttribute(QualifiedName(a.Name.Local, a.Name.Space), a.Value)
		if attr.Space != "" {
			if attr.Uri, err = p.resolve(scope, attr.Space, false); err != nil {
				return err
			}
		}
		if _, ok := elem.GetAttribute(attr.QualifiedName()); ok {
			return p.createError(elem.QualifiedName(), fmt.Sprintf("%s: duplicate attribute", attr.QualifiedName()))
		}
		elem.SetAttribute(attr)
	}
	if err := p.attach(doc, elem); err != nil {
		return err
	}
	p.stack = append(p.stack, elem)
	p.namespaces = append(p.namespaces, scope)
	return nil
}

func (p *Parser) parseCloseElement(tok stdxml.EndElement) error {
	if len(p.stack) == 0 {
		return p.createError(tok.Name.Local, "unexpected closing element")
	}
	var (
		elem = p.stack[len(p.stack)-1]
		name = QualifiedName(tok.Name.Local, tok.Name.Space)
	)
	if name.QualifiedName() != elem.QualifiedName() {
		return p.createError(elem.QualifiedName(), "name mismatched with opening element")
	}
	p.stack = p.stack[:len(p.stack)-1]
	p.namespaces = p.namespaces[:len(p.namespaces)-1]
	return nil
}

func (p *Parser) parseText(str string) error {
	if len(p.stack) == 0 {
		if strings.TrimSpace(str) != "" {
			return p.createError("document", "text outside of root element")
		}
		return nil
	}
	if p.TrimSpace && strings.TrimSpace(str) == "" {
		return nil
	}
	return p.stack[len(p.stack)-1].Append(NewText(str))
}

func (p *Parser) attach(doc *Document, node Node) error {
	if len(p.stack) == 0 {
		return doc.Append(node)
	}
	return p.stack[len(p.stack)-1].Append(node)
}

func (p *Parser) resolve(scope environ.Environ[string], prefix string, element bool) (string, error) {
	if prefix == "" && !element {
		return "", nil
	}
	uri, err := scope.Resolve(prefix)
	if err != nil {
		if prefix != "" && p.StrictNS {
			return "", p.createError(prefix, "namespace is not defined")
		}
		return "", nil
	}
	return uri, nil
}

func (p *Parser) currentScope() environ.Environ[string] {
	return p.namespaces[len(p.namespaces)-1]
}

func (p *Parser) position() Position {
	line, col := p.decoder.InputPos()
	return Position{
		Line:   line,
		Column: col,
	}
}

func (p *Parser) createError(elem, msg string) error {
	return ParseError{
		Position: p.position(),
		Element:  elem,
		Message:  msg,
	}
}

func (p *Parser) wrapError(err error) error {
	var syntax *stdxml.SyntaxError
	if errors.As(err, &syntax) {
		return ParseError{
			Position: Position{Line: syntax.Line},
			Message:  syntax.Msg,
		}
	}
	return p.createError("", err.Error())
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, fmt.Errorf("%s: encoding not supported", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

func procInstParam(inst, param string) string {
	ix := strings.Index(inst, param+"=")
	if ix < 0 {
		return ""
	}
	inst = inst[ix+len(param)+1:]
	if inst == "" {
		return ""
	}
	quote := inst[0]
	if quote != '"' && quote != '\'' {
		return ""
	}
	value, _, ok := strings.Cut(inst[1:], string(quote))
	if !ok {
		return ""
	}
	return value
}
