package xml

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"slices"
	"strings"
)

type WriterOptions uint64

const (
	OptionCompact WriterOptions = 1 << iota
	OptionNoNamespace
	OptionNoComment
	OptionNoProlog
)

func (w WriterOptions) Compact() bool {
	return w&OptionCompact > 0
}

func (w WriterOptions) NoNamespace() bool {
	return w&OptionNoNamespace > 0
}

func (w WriterOptions) NoComment() bool {
	return w&OptionNoComment > 0
}

func (w WriterOptions) NoProlog() bool {
	return w&OptionNoProlog > 0
}

type Writer struct {
	writer *bufio.Writer

	Indent string
	WriterOptions

	scopes [][]NS
}

// WriteNode serializes node without prolog nor indentation.
func WriteNode(node Node) string {
	var buf bytes.Buffer

	ws := NewWriter(&buf)
	ws.WriterOptions = OptionCompact | OptionNoProlog
	ws.WriteNode(node)
	return buf.String()
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{
		writer: bufio.NewWriter(w),
		Indent: "  ",
	}
}

func (w *Writer) Write(doc *Document) error {
	if err := w.writeProlog(doc); err != nil {
		return err
	}
	for i, n := range doc.Nodes {
		if i > 0 || !w.NoProlog() {
			w.writeNL()
		}
		if err := w.writeNode(n, 0); err != nil {
			return err
		}
	}
	if !w.Compact() && len(doc.Nodes) > 0 {
		w.writer.WriteByte('\n')
	}
	return w.writer.Flush()
}

func (w *Writer) WriteNode(node Node) error {
	if doc, ok := node.(*Document); ok {
		return w.Write(doc)
	}
	if err := w.writeNode(node, 0); err != nil {
		return err
	}
	return w.writer.Flush()
}

func (w *Writer) writeNode(node Node, depth int) error {
	switch node := node.(type) {
	case *Element:
		return w.writeElement(node, depth)
	case *Text:
		w.writer.WriteString(escapeText(node.Content, false))
	case *Comment:
		if !w.NoComment() {
			w.writer.WriteString("<!--")
			w.writer.WriteString(node.Content)
			w.writer.WriteString("-->")
		}
	case *Instruction:
		w.writer.WriteString("<?")
		w.writer.WriteString(node.Name)
		if node.Content != "" {
			w.writer.WriteByte(' ')
			w.writer.WriteString(node.Content)
		}
		w.writer.WriteString("?>")
	case *Attribute:
		w.writer.WriteString(escapeText(node.Value(), false))
	default:
		return fmt.Errorf("node: unknown type (%T)", node)
	}
	return nil
}

func (w *Writer) writeElement(node *Element, depth int) error {
	w.enterScope()
	defer w.leaveScope()

	name := w.nodeName(node.QName)
	w.writer.WriteByte('<')
	w.writer.WriteString(name)
	if !w.NoNamespace() {
		w.writeNamespaces(node)
	}
	for _, a := range node.Attrs {
		w.writer.WriteByte(' ')
		w.writer.WriteString(w.nodeName(a.QName))
		w.writer.WriteString(`="`)
		w.writer.WriteString(escapeText(a.Value(), true))
		w.writer.WriteByte('"')
	}
	if len(node.Nodes) == 0 {
		w.writer.WriteString("/>")
		return nil
	}
	w.writer.WriteByte('>')

	mixed := slices.ContainsFunc(node.Nodes, func(n Node) bool {
		return n.Type() == TypeText
	})
	for _, n := range node.Nodes {
		if !mixed {
			w.writeNL()
			w.writeIndent(depth + 1)
		}
		if err := w.writeNode(n, depth+1); err != nil {
			return err
		}
	}
	if !mixed {
		w.writeNL()
		w.writeIndent(depth)
	}
	w.writer.WriteString("</")
	w.writer.WriteString(name)
	w.writer.WriteByte('>')
	return nil
}

// writeNamespaces writes the declarations of the element and the ones
// required by its name and attributes that are not already in scope.
func (w *Writer) writeNamespaces(node *Element) {
	declare := func(ns NS) {
		if ns.Prefix == "xml" || w.inScope(ns) {
			return
		}
		w.scopes[len(w.scopes)-1] = append(w.scopes[len(w.scopes)-1], ns)
		if ns.Prefix == "" {
			w.writer.WriteString(` xmlns="`)
		} else {
			w.writer.WriteString(" xmlns:")
			w.writer.WriteString(ns.Prefix)
			w.writer.WriteString(`="`)
		}
		w.writer.WriteString(escapeText(ns.Uri, true))
		w.writer.WriteByte('"')
	}
	for _, ns := range node.Namespaces {
		declare(ns)
	}
	if node.Uri != "" || node.Space == "" {
		declare(NS{Prefix: node.Space, Uri: node.Uri})
	}
	for _, a := range node.Attrs {
		if a.Space != "" && a.Uri != "" {
			declare(NS{Prefix: a.Space, Uri: a.Uri})
		}
	}
}

func (w *Writer) inScope(ns NS) bool {
	for i := len(w.scopes) - 1; i >= 0; i-- {
		ix := slices.IndexFunc(w.scopes[i], func(other NS) bool {
			return other.Prefix == ns.Prefix
		})
		if ix >= 0 {
			return w.scopes[i][ix].Uri == ns.Uri
		}
	}
	return ns.Prefix == "" && ns.Uri == ""
}

func (w *Writer) enterScope() {
	w.scopes = append(w.scopes, nil)
}

func (w *Writer) leaveScope() {
	w.scopes = w.scopes[:len(w.scopes)-1]
}

func (w *Writer) nodeName(name QName) string {
	if w.NoNamespace() {
		return name.LocalName()
	}
	return name.QualifiedName()
}

func (w *Writer) writeProlog(doc *Document) error {
	if w.NoProlog() {
		return nil
	}
	encoding := doc.Encoding
	if encoding == "" {
		encoding = SupportedEncoding
	}
	_, err := fmt.Fprintf(w.writer, `<?xml version="%s" encoding="%s"?>`, SupportedVersion, encoding)
	return err
}

func (w *Writer) writeNL() {
	if w.Compact() {
		return
	}
	w.writer.WriteByte('\n')
}

func (w *Writer) writeIndent(depth int) {
	if w.Compact() || depth <= 0 {
		return
	}
	w.writer.WriteString(strings.Repeat(w.Indent, depth))
}

func escapeText(str string, attr bool) string {
	var buf strings.Builder
	for _, r := range str {
		switch r {
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '&':
			buf.WriteString("&amp;")
		case '"':
			if attr {
				buf.WriteString("&quot;")
			} else {
				buf.WriteRune(r)
			}
		default:
			buf.WriteRune(r)
		}
	}
	return buf.String()
}
