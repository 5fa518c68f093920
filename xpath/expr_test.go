package xpath_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midbel/angle/environ"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<root>
	<item id="1" xml:lang="en">alpha</item>
	<item id="2">beta</item>
	<group>
		<item id="3">gamma</item>
	</group>
</root>`

func parseSample(t *testing.T) *xml.Document {
	t.Helper()
	doc, err := xml.ParseString(sample)
	require.NoError(t, err)
	return doc
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		Query string
		Want  string
	}{
		{Query: "count(//item)", Want: "3"},
		{Query: "count(/root/item)", Want: "2"},
		{Query: "/root/item[2]", Want: "beta"},
		{Query: "//item[@id='3']", Want: "gamma"},
		{Query: "count(//item[last()])", Want: "2"},
		{Query: "(//item)[last()]", Want: "gamma"},
		{Query: "sum(//item/@id)", Want: "6"},
		{Query: "1 + 2 * 3", Want: "7"},
		{Query: "7 mod 3", Want: "1"},
		{Query: "10 div 4", Want: "2.5"},
		{Query: "- 2 + 5", Want: "3"},
		{Query: "count(//item) * 2", Want: "6"},
		{Query: "count(/root/div)", Want: "0"},
		{Query: "//item/@id = 2", Want: "true"},
		{Query: "//item/@id > 2", Want: "true"},
		{Query: "//item/@id > 3", Want: "false"},
		{Query: "//item/@id != 1", Want: "true"},
		{Query: "//missing = ''", Want: "false"},
		{Query: "//missing = false()", Want: "true"},
		{Query: "not(//missing)", Want: "true"},
		{Query: "1 = 1 and 2 < 1", Want: "false"},
		{Query: "1 = 2 or 2 > 1", Want: "true"},
		{Query: "concat('a', 'b', 'c')", Want: "abc"},
		{Query: "substring('12345', 1.5, 2.6)", Want: "234"},
		{Query: "substring('12345', 0, 3)", Want: "12"},
		{Query: "substring('12345', 2)", Want: "2345"},
		{Query: "translate('bar', 'abc', 'ABC')", Want: "BAr"},
		{Query: "translate('--aaa--', 'abc-', 'ABC')", Want: "AAA"},
		{Query: "normalize-space('  a   b ')", Want: "a b"},
		{Query: "substring-before('1999/04/01', '/')", Want: "1999"},
		{Query: "substring-after('1999/04/01', '/')", Want: "04/01"},
		{Query: "starts-with('angle', 'an')", Want: "true"},
		{Query: "contains('angle', 'gl')", Want: "true"},
		{Query: "string-length('angle')", Want: "5"},
		{Query: "round(2.5)", Want: "3"},
		{Query: "round(-2.5)", Want: "-2"},
		{Query: "floor(-1.5)", Want: "-2"},
		{Query: "ceiling(1.2)", Want: "2"},
		{Query: "string(1 div 0)", Want: "Infinity"},
		{Query: "number('abc')", Want: "NaN"},
		{Query: "number(' 12 ')", Want: "12"},
		{Query: "boolean('')", Want: "false"},
		{Query: "name(/root/*[1])", Want: "item"},
		{Query: "local-name(/root/item/@xml:lang)", Want: "lang"},
		{Query: "count(/root/group/preceding-sibling::*)", Want: "2"},
		{Query: "/root/group/preceding-sibling::*[1]", Want: "beta"},
		{Query: "/root/group/item/ancestor::*[last()]/item[1]", Want: "alpha"},
		{Query: "count(//item[1]/following::*)", Want: "3"},
		{Query: "count(//item[lang('en')])", Want: "1"},
		{Query: "count(//item[1] | //item[@id=2])", Want: "3"},
		{Query: "count(/descendant::node()[self::text()])", Want: "3"},
		{Query: "/root/item[1]/@id/..", Want: "alpha"},
		{Query: "count(//item/parent::*)", Want: "2"},
	}
	doc := parseSample(t)
	for _, tt := range tests {
		t.Run(tt.Query, func(t *testing.T) {
			q, err := xpath.Build(tt.Query)
			require.NoError(t, err)

			v, err := q.Evaluate(xpath.NewContext(doc))
			require.NoError(t, err)
			assert.Equal(t, tt.Want, xpath.AsString(v))
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		Query string
		Err   error
	}{
		{Query: "count(", Err: xpath.ErrSyntax},
		{Query: "foo::bar", Err: xpath.ErrSyntax},
		{Query: "//item[", Err: xpath.ErrSyntax},
		{Query: "$undefined", Err: xpath.ErrUndefined},
		{Query: "unknown()", Err: xpath.ErrUndefined},
		{Query: "count(1)", Err: xpath.ErrType},
		{Query: "true(1)", Err: xpath.ErrArgument},
		{Query: "1 | 2", Err: xpath.ErrType},
		{Query: "'a'/item", Err: xpath.ErrType},
	}
	doc := parseSample(t)
	for _, tt := range tests {
		t.Run(tt.Query, func(t *testing.T) {
			q, err := xpath.Build(tt.Query)
			if err == nil {
				_, err = q.Evaluate(xpath.NewContext(doc))
			}
			assert.ErrorIs(t, err, tt.Err)
		})
	}
}

func TestSyntaxError(t *testing.T) {
	_, err := xpath.Build("//item[@id=")

	var se xpath.SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "//item[@id=", se.Expr)
	assert.NotEmpty(t, se.Cause)
}

func TestVariablesAndFunctions(t *testing.T) {
	doc := parseSample(t)

	ctx := xpath.NewContext(doc)
	ctx.Variables.Define("x", xpath.Number(2))
	ctx.Functions.Define("upper", func(_ xpath.Context, args []xpath.Value) (xpath.Value, error) {
		return xpath.String(strings.ToUpper(xpath.AsString(args[0]))), nil
	})

	q, err := xpath.Build("upper(//item[@id = $x])")
	require.NoError(t, err)

	v, err := q.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, xpath.String("BETA"), v)

	_, err = xpath.DefaultFunctions().Resolve("upper")
	assert.Error(t, err, "function defined in a context leaked into the library")
}

func TestContextPosition(t *testing.T) {
	doc := parseSample(t)

	q, err := xpath.Build("concat(position(), '/', last())")
	require.NoError(t, err)

	v, err := q.Eval(doc, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, "2/5", xpath.AsString(v))
}

func TestNamespaces(t *testing.T) {
	doc, err := xml.ParseString(`<r:root xmlns:r="urn:r"><r:item>one</r:item><item>two</item></r:root>`)
	require.NoError(t, err)

	tests := []struct {
		Query string
		Want  string
	}{
		{Query: "count(/x:root/x:item)", Want: "1"},
		{Query: "/x:root/x:item", Want: "one"},
		{Query: "count(/x:root/x:*)", Want: "1"},
		{Query: "count(/x:root/*)", Want: "2"},
		{Query: "namespace-uri(/x:root)", Want: "urn:r"},
	}
	ns := environ.Empty[string]()
	ns.Define("x", "urn:r")
	for _, tt := range tests {
		t.Run(tt.Query, func(t *testing.T) {
			expr, err := xpath.CompileWithNamespaces(tt.Query, ns)
			require.NoError(t, err)

			v, err := expr.Evaluate(xpath.NewContext(doc))
			require.NoError(t, err)
			assert.Equal(t, tt.Want, xpath.AsString(v))
		})
	}

	_, err = xpath.CompileWithNamespaces("/y:root", ns)
	assert.ErrorIs(t, err, xpath.ErrSyntax)
}
