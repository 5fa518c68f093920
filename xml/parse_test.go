package xml_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midbel/angle/xml"
)

const prolog = `<?xml version="1.0" encoding="UTF-8"?>`

func TestParseValidDocument(t *testing.T) {
	const str = prolog + `
<catalog xmlns="urn:books" xmlns:x="urn:extra">
	<!-- catalog of books -->
	<book id="1" x:lang="en">
		<title>Go &amp; XML</title>
		<price>10</price>
	</book>
	<?render mode="full"?>
	<book id="2"><title><![CDATA[<raw>]]></title></book>
</catalog>`

	doc, err := xml.ParseString(str)
	require.NoError(t, err)

	root, ok := doc.Root().(*xml.Element)
	require.True(t, ok)
	assert.Equal(t, "catalog", root.QualifiedName())
	assert.Equal(t, "urn:books", root.Uri)
	require.Len(t, root.Nodes, 4)

	assert.Equal(t, xml.TypeComment, root.Nodes[0].Type())
	assert.Equal(t, xml.TypeInstruction, root.Nodes[2].Type())

	book := root.Nodes[1].(*xml.Element)
	assert.Equal(t, "urn:books", book.Uri)
	lang, ok := book.GetAttribute("x:lang")
	require.True(t, ok)
	assert.Equal(t, "urn:extra", lang.Uri)
	assert.Equal(t, "Go & XML10", book.Value())

	other := root.Nodes[3].(*xml.Element)
	assert.Equal(t, "<raw>", other.Value())
}

func TestParseKeepSpace(t *testing.T) {
	p := xml.NewParser(strings.NewReader(`<root> <a/> </root>`))
	p.TrimSpace = false

	doc, err := p.Parse()
	require.NoError(t, err)
	root := doc.Root().(*xml.Element)
	assert.Len(t, root.Nodes, 3)
}

func TestParseInvalidDocument(t *testing.T) {
	data := []struct {
		Xml   string
		Cause string
	}{
		{
			Xml:   ``,
			Cause: "document without root element",
		},
		{
			Xml:   `<root empty-attr></root>`,
			Cause: "attribute without value",
		},
		{
			Xml:   `<root id="id-1" id="id-2"></root>`,
			Cause: "duplicate attribute",
		},
		{
			Xml:   `<root><a></b></root>`,
			Cause: "mismatched closing element",
		},
		{
			Xml:   `<root><a></a>`,
			Cause: "unclosed element",
		},
		{
			Xml:   `<root/><other/>`,
			Cause: "multiple root elements",
		},
		{
			Xml:   `text<root/>`,
			Cause: "text before root element",
		},
	}
	for _, d := range data {
		t.Run(d.Cause, func(t *testing.T) {
			_, err := xml.ParseString(d.Xml)
			assert.Error(t, err)
		})
	}
}

func TestParseStrictNamespace(t *testing.T) {
	p := xml.NewParser(strings.NewReader(`<x:root/>`))
	p.StrictNS = true
	_, err := p.Parse()
	assert.Error(t, err)

	doc, err := xml.ParseString(`<x:root/>`)
	require.NoError(t, err)
	assert.Equal(t, "x:root", doc.Root().QualifiedName())
}
