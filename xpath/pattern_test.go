package xpath_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midbel/angle/environ"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

func selectNode(t *testing.T, doc *xml.Document, query string) xml.Node {
	t.Helper()
	q, err := xpath.Build(query)
	require.NoError(t, err)
	v, err := q.Evaluate(xpath.NewContext(doc))
	require.NoError(t, err)
	ns, ok := xpath.AsNodeSet(v)
	require.True(t, ok)
	require.NotEmpty(t, ns, query)
	return ns.First()
}

func TestPatternMatch(t *testing.T) {
	tests := []struct {
		Pattern string
		Node    string
		Want    bool
	}{
		{Pattern: "item", Node: "/root/item[1]", Want: true},
		{Pattern: "item", Node: "/root/group", Want: false},
		{Pattern: "root/item", Node: "/root/group/item", Want: false},
		{Pattern: "group/item", Node: "/root/group/item", Want: true},
		{Pattern: "/root/item", Node: "/root/group/item", Want: false},
		{Pattern: "/root/item", Node: "/root/item[2]", Want: true},
		{Pattern: "//item", Node: "/root/group/item", Want: true},
		{Pattern: "root//item", Node: "/root/group/item", Want: true},
		{Pattern: "/", Node: "/", Want: true},
		{Pattern: "/", Node: "/root", Want: false},
		{Pattern: "@id", Node: "/root/item[1]/@id", Want: true},
		{Pattern: "item", Node: "/root/item[1]/@id", Want: false},
		{Pattern: "item/@id", Node: "/root/item[1]/@id", Want: true},
		{Pattern: "*", Node: "/root/group", Want: true},
		{Pattern: "*", Node: "/root/item[1]/@id", Want: false},
		{Pattern: "text()", Node: "/root/item[1]/text()", Want: true},
		{Pattern: "node()", Node: "/root/item[1]/text()", Want: true},
		{Pattern: "node()", Node: "/root/item[1]/@id", Want: false},
		{Pattern: "item[2]", Node: "/root/item[2]", Want: true},
		{Pattern: "item[2]", Node: "/root/item[1]", Want: false},
		{Pattern: "item[@id='3']", Node: "/root/group/item", Want: true},
		{Pattern: "item[position() = last()]", Node: "/root/group/item", Want: true},
		{Pattern: "item | group", Node: "/root/group", Want: true},
	}
	doc := parseSample(t)
	for _, tt := range tests {
		t.Run(tt.Pattern+" on "+tt.Node, func(t *testing.T) {
			list, err := xpath.CompilePattern(tt.Pattern, nil)
			require.NoError(t, err)

			var (
				node = selectNode(t, doc, tt.Node)
				got  bool
			)
			for _, p := range list {
				ok, err := p.Match(xpath.NewContext(node))
				require.NoError(t, err)
				got = got || ok
			}
			assert.Equal(t, tt.Want, got)
		})
	}
}

func TestPatternPriority(t *testing.T) {
	ns := environ.Empty[string]()
	ns.Define("p", "urn:p")

	tests := []struct {
		Pattern string
		Want    []float64
	}{
		{Pattern: "item", Want: []float64{0}},
		{Pattern: "p:item", Want: []float64{0}},
		{Pattern: "@id", Want: []float64{0}},
		{Pattern: "processing-instruction('x')", Want: []float64{0}},
		{Pattern: "p:*", Want: []float64{-0.25}},
		{Pattern: "*", Want: []float64{-0.5}},
		{Pattern: "@*", Want: []float64{-0.5}},
		{Pattern: "text()", Want: []float64{-0.5}},
		{Pattern: "node()", Want: []float64{-0.5}},
		{Pattern: "item[1]", Want: []float64{0.5}},
		{Pattern: "group/item", Want: []float64{0.5}},
		{Pattern: "//item", Want: []float64{0.5}},
		{Pattern: "/", Want: []float64{0.5}},
		{Pattern: "item | *", Want: []float64{0, -0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.Pattern, func(t *testing.T) {
			list, err := xpath.CompilePattern(tt.Pattern, ns)
			require.NoError(t, err)

			var got []float64
			for _, p := range list {
				got = append(got, p.Priority())
			}
			assert.Equal(t, tt.Want, got)
		})
	}
}

func TestPatternString(t *testing.T) {
	tests := []struct {
		Pattern string
		Want    []string
	}{
		{Pattern: "item", Want: []string{"item"}},
		{Pattern: "item[1]", Want: []string{"item[1]"}},
		{Pattern: "item | group", Want: []string{"item", "group"}},
		{Pattern: "//item | a//b", Want: []string{"//item", "a//b"}},
		{Pattern: "/root/item | @id", Want: []string{"/root/item", "@id"}},
	}
	for _, tt := range tests {
		t.Run(tt.Pattern, func(t *testing.T) {
			list, err := xpath.CompilePattern(tt.Pattern, nil)
			require.NoError(t, err)

			var got []string
			for _, p := range list {
				got = append(got, p.String())
			}
			assert.Equal(t, tt.Want, got)
		})
	}
}

func TestPatternInvalid(t *testing.T) {
	tests := []string{
		"1 + 2",
		"ancestor::item",
		"$x",
		"count(item)",
		"(item)",
		"item/..",
		"'literal'",
	}
	for _, str := range tests {
		t.Run(str, func(t *testing.T) {
			_, err := xpath.CompilePattern(str, nil)
			assert.ErrorIs(t, err, xpath.ErrSyntax)
		})
	}
}
