package xml_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midbel/angle/xml"
)

func TestCompareDocumentOrder(t *testing.T) {
	doc, err := xml.ParseString(`<root id="r"><a x="1" y="2"><b/></a><c>text</c></root>`)
	require.NoError(t, err)

	var (
		root = doc.Root().(*xml.Element)
		a    = root.Nodes[0].(*xml.Element)
		b    = a.Nodes[0]
		c    = root.Nodes[1].(*xml.Element)
		text = c.Nodes[0]
	)
	want := []xml.Node{doc, root, root.Attrs[0], a, a.Attrs[0], a.Attrs[1], b, c, text}
	for i := range want {
		for j := range want {
			got := xml.Compare(want[i], want[j])
			switch {
			case i < j:
				assert.Equal(t, -1, got, "%s vs %s", want[i].Identity(), want[j].Identity())
			case i > j:
				assert.Equal(t, 1, got, "%s vs %s", want[i].Identity(), want[j].Identity())
			default:
				assert.Zero(t, got)
			}
		}
	}

	nodes := []xml.Node{text, c, b, root.Attrs[0], a, doc, a.Attrs[1], root, a.Attrs[0], b}
	nodes = xml.Unique(nodes)
	assert.Equal(t, want, nodes)
}

func TestCompareAcrossDocuments(t *testing.T) {
	first, err := xml.ParseString(`<first/>`)
	require.NoError(t, err)
	second, err := xml.ParseString(`<second/>`)
	require.NoError(t, err)

	assert.True(t, xml.Before(first.Root(), second.Root()))
	assert.True(t, xml.After(second.Root(), first.Root()))
}

func TestCompareDetachedTrees(t *testing.T) {
	var (
		first  = xml.NewElement(xml.LocalName("x"))
		second = xml.NewElement(xml.LocalName("x"))
		text   = xml.NewText("x")
	)
	assert.Equal(t, first.Identity(), second.Identity())
	assert.Equal(t, -1, xml.Compare(first, second))
	assert.Equal(t, 1, xml.Compare(second, first))
	assert.True(t, xml.Before(second, text))

	nodes := xml.Unique([]xml.Node{text, second, first, second})
	assert.Equal(t, []xml.Node{first, second, text}, nodes)
}

func TestInsertBefore(t *testing.T) {
	root := xml.NewElement(xml.LocalName("root"))
	last := xml.NewElement(xml.LocalName("last"))
	require.NoError(t, root.Append(last))

	first := xml.NewElement(xml.LocalName("first"))
	require.NoError(t, root.InsertBefore(first, last))
	assert.Equal(t, []xml.Node{first, last}, root.Nodes)
	assert.Equal(t, 0, first.Position())
	assert.Equal(t, 1, last.Position())
	assert.True(t, xml.Before(first, last))

	other := xml.NewElement(xml.LocalName("other"))
	err := root.InsertBefore(xml.NewText("x"), other)
	assert.ErrorIs(t, err, xml.ErrReference)
}
