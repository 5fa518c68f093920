package xslt_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
	"github.com/midbel/angle/xslt"
)

type TestCase struct {
	Name   string
	Dir    string
	Failed bool
}

func TestForEach(t *testing.T) {
	tests := []TestCase{
		{
			Name: "for-each/basic",
			Dir:  "testdata/foreach-basic",
		},
		{
			Name: "for-each/empty",
			Dir:  "testdata/foreach-empty",
		},
		{
			Name: "for-each/sort",
			Dir:  "testdata/foreach-sort",
		},
		{
			Name: "for-each/sort-lang",
			Dir:  "testdata/foreach-sort-lang",
		},
	}
	runTest(t, tests)
}

func TestApplyTemplates(t *testing.T) {
	tests := []TestCase{
		{
			Name: "apply-templates/priority",
			Dir:  "testdata/apply-priority",
		},
		{
			Name: "apply-templates/mode",
			Dir:  "testdata/apply-mode",
		},
		{
			Name: "apply-templates/sort",
			Dir:  "testdata/apply-sort",
		},
		{
			Name: "apply-templates/builtin",
			Dir:  "testdata/builtin-rules",
		},
		{
			Name: "call-template",
			Dir:  "testdata/call-template",
		},
		{
			Name: "identity",
			Dir:  "testdata/identity",
		},
	}
	runTest(t, tests)
}

func TestInstructions(t *testing.T) {
	tests := []TestCase{
		{
			Name: "variables",
			Dir:  "testdata/variables",
		},
		{
			Name: "choose",
			Dir:  "testdata/choose",
		},
		{
			Name: "constructors",
			Dir:  "testdata/constructors",
		},
		{
			Name: "copy-of",
			Dir:  "testdata/copy-of",
		},
		{
			Name: "fallback",
			Dir:  "testdata/fallback",
		},
		{
			Name:   "message/terminate",
			Dir:    "testdata/message-terminate",
			Failed: true,
		},
		{
			Name:   "value-of/undefined",
			Dir:    "testdata/valueof-undefined",
			Failed: true,
		},
		{
			Name:   "unsupported",
			Dir:    "testdata/unsupported",
			Failed: true,
		},
	}
	runTest(t, tests)
}

func TestStylesheetModules(t *testing.T) {
	tests := []TestCase{
		{
			Name: "simplified",
			Dir:  "testdata/simplified",
		},
		{
			Name: "import-include",
			Dir:  "testdata/import-include",
		},
		{
			Name:   "include-cycle",
			Dir:    "testdata/include-cycle",
			Failed: true,
		},
	}
	runTest(t, tests)
}

func runTest(t *testing.T, tests []TestCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.Name, executeTest(tt.Dir, tt.Failed))
	}
}

func executeTest(dir string, failure bool) func(*testing.T) {
	return func(t *testing.T) {
		doc, err := xml.ParseFile(filepath.Join(dir, "doc.xml"))
		require.NoError(t, err, "loading document")

		sheet, err := xslt.Load(filepath.Join(dir, "transform.xslt"))
		if failure && err != nil {
			return
		}
		require.NoError(t, err, "loading stylesheet")

		var str bytes.Buffer
		err = sheet.Generate(context.Background(), &str, doc)
		if failure {
			require.Error(t, err, "expected error but transformation pass")
			var te *xslt.TransformError
			assert.ErrorAs(t, err, &te)
			return
		}
		require.NoError(t, err, "executing transform")

		want, err := os.ReadFile(filepath.Join(dir, "result.xml"))
		require.NoError(t, err)
		assert.Equal(t, string(normalizeDoc(want)), string(normalizeDoc(str.Bytes())))
	}
}

func normalizeDoc(doc []byte) []byte {
	x, err := xml.ParseReader(bytes.NewReader(doc))
	if err != nil {
		return doc
	}
	var buf bytes.Buffer
	if err := xml.NewWriter(&buf).Write(x); err != nil {
		return doc
	}
	return buf.Bytes()
}

const items = `<items><item id="1">alpha</item><item id="2">beta</item><item id="3">gamma</item></items>`

func parseSheet(t *testing.T, str string) *xslt.Stylesheet {
	t.Helper()
	sheet, err := xslt.Parse(strings.NewReader(str))
	require.NoError(t, err)
	return sheet
}

func transformString(t *testing.T, sheet *xslt.Stylesheet, options ...xslt.Option) (string, error) {
	t.Helper()
	doc, err := xml.ParseString(items)
	require.NoError(t, err)
	res, err := sheet.Transform(context.Background(), doc, options...)
	if err != nil {
		return "", err
	}
	return xml.WriteNode(res.Root()), nil
}

func TestTransformParams(t *testing.T) {
	sheet := parseSheet(t, `<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
		<xsl:param name="greeting" select="'hello'"/>
		<xsl:variable name="fixed" select="'fixed'"/>
		<xsl:template match="/"><out g="{$greeting}" f="{$fixed}"/></xsl:template>
	</xsl:stylesheet>`)

	tests := []struct {
		Name    string
		Options []xslt.Option
		Want    string
	}{
		{
			Name: "defaults",
			Want: `<out g="hello" f="fixed"/>`,
		},
		{
			Name:    "param",
			Options: []xslt.Option{xslt.WithParam("greeting", "bonjour")},
			Want:    `<out g="bonjour" f="fixed"/>`,
		},
		{
			Name:    "variable-not-overridden",
			Options: []xslt.Option{xslt.WithParam("fixed", "other")},
			Want:    `<out g="hello" f="fixed"/>`,
		},
		{
			Name:    "value",
			Options: []xslt.Option{xslt.WithValue("greeting", xpath.Number(42))},
			Want:    `<out g="42" f="fixed"/>`,
		},
	}
	for _, c := range tests {
		t.Run(c.Name, func(t *testing.T) {
			got, err := transformString(t, sheet, c.Options...)
			require.NoError(t, err)
			assert.Equal(t, c.Want, got)
		})
	}
}

func TestTransformMode(t *testing.T) {
	sheet := parseSheet(t, `<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
		<xsl:template match="/"><default/></xsl:template>
		<xsl:template match="/" mode="alt"><alt><xsl:apply-templates select="items/item[1]" mode="alt"/></alt></xsl:template>
		<xsl:template match="item" mode="alt"><xsl:value-of select="@id"/></xsl:template>
	</xsl:stylesheet>`)

	got, err := transformString(t, sheet)
	require.NoError(t, err)
	assert.Equal(t, `<default/>`, got)

	got, err = transformString(t, sheet, xslt.WithMode("alt"))
	require.NoError(t, err)
	assert.Equal(t, `<alt>1</alt>`, got)
}

func TestTransformVariableScope(t *testing.T) {
	sheet := parseSheet(t, `<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
		<xsl:template match="/">
			<out>
				<xsl:variable name="v" select="'outer'"/>
				<xsl:for-each select="items/item[1]">
					<xsl:variable name="v" select="'inner'"/>
					<in><xsl:value-of select="$v"/></in>
				</xsl:for-each>
				<after><xsl:value-of select="$v"/></after>
				<xsl:call-template name="other"/>
			</out>
		</xsl:template>
		<xsl:template name="other">
			<other><xsl:value-of select="$v"/></other>
		</xsl:template>
	</xsl:stylesheet>`)

	_, err := transformString(t, sheet)
	require.ErrorIs(t, err, xpath.ErrUndefined)
}

func TestTransformVariableShadowing(t *testing.T) {
	sheet := parseSheet(t, `<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
		<xsl:template match="/">
			<out>
				<xsl:variable name="v" select="'outer'"/>
				<xsl:for-each select="items/item[1]">
					<xsl:variable name="v" select="'inner'"/>
					<in><xsl:value-of select="$v"/></in>
				</xsl:for-each>
				<after><xsl:value-of select="$v"/></after>
			</out>
		</xsl:template>
	</xsl:stylesheet>`)

	got, err := transformString(t, sheet)
	require.NoError(t, err)
	assert.Equal(t, `<out><in>inner</in><after>outer</after></out>`, got)
}

func TestTransformFunctions(t *testing.T) {
	sheet := parseSheet(t, `<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
		<xsl:template match="/">
			<out vendor="{system-property('xsl:vendor')}" version="{system-property('xsl:version')}">
				<xsl:for-each select="items/item">
					<xsl:if test="generate-id() = generate-id(current())">
						<same><xsl:value-of select="../item[@id = current()/@id]"/></same>
					</xsl:if>
				</xsl:for-each>
				<xsl:if test="generate-id(items/item[1]) != generate-id(items/item[2])"><distinct/></xsl:if>
				<xsl:if test="generate-id(items/missing) = ''"><empty/></xsl:if>
			</out>
		</xsl:template>
	</xsl:stylesheet>`)

	got, err := transformString(t, sheet)
	require.NoError(t, err)
	want := `<out vendor="angle" version="1"><same>alpha</same><same>beta</same><same>gamma</same><distinct/><empty/></out>`
	assert.Equal(t, want, got)
}

func TestTransformError(t *testing.T) {
	sheet := parseSheet(t, `<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
		<xsl:template match="/">
			<out>
				<before/>
				<xsl:value-of select="unknown()"/>
				<after/>
			</out>
		</xsl:template>
	</xsl:stylesheet>`)

	doc, err := xml.ParseString(items)
	require.NoError(t, err)
	res, err := sheet.Transform(context.Background(), doc)
	require.Error(t, err)

	var te *xslt.TransformError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, xpath.ErrUndefined)
	assert.False(t, errors.As(te.Cause, &te), "transform error wrapped twice")

	require.NotNil(t, res)
	assert.Equal(t, `<out><before/></out>`, xml.WriteNode(res.Root()))
}

func TestTransformMaxDepth(t *testing.T) {
	sheet := parseSheet(t, `<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
		<xsl:template match="/"><xsl:call-template name="loop"/></xsl:template>
		<xsl:template name="loop"><xsl:call-template name="loop"/></xsl:template>
	</xsl:stylesheet>`)

	_, err := transformString(t, sheet, xslt.WithMaxDepth(64))
	assert.ErrorIs(t, err, xslt.ErrDepth)
}

func TestTransformCancel(t *testing.T) {
	sheet := parseSheet(t, `<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
		<xsl:template match="/"><out><xsl:value-of select="count(//item)"/></out></xsl:template>
	</xsl:stylesheet>`)
	doc, err := xml.ParseString(items)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sheet.Transform(ctx, doc)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransformConcurrent(t *testing.T) {
	sheet := parseSheet(t, `<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
		<xsl:param name="p" select="'none'"/>
		<xsl:template match="/">
			<out p="{$p}"><xsl:for-each select="items/item"><xsl:sort select="@id" data-type="number" order="descending"/><xsl:value-of select="@id"/></xsl:for-each></out>
		</xsl:template>
	</xsl:stylesheet>`)

	var (
		wg   sync.WaitGroup
		errs = make(chan error, 16)
		outs = make([]string, 16)
	)
	for i := range outs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc, err := xml.ParseString(items)
			if err != nil {
				errs <- err
				return
			}
			res, err := sheet.Transform(context.Background(), doc, xslt.WithParam("p", string(rune('a'+i))))
			if err != nil {
				errs <- err
				return
			}
			outs[i] = xml.WriteNode(res.Root())
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	for i, str := range outs {
		assert.Equal(t, `<out p="`+string(rune('a'+i))+`">321</out>`, str)
	}
}

func TestGenerateText(t *testing.T) {
	sheet := parseSheet(t, `<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
		<xsl:output method="text"/>
		<xsl:template match="/"><xsl:for-each select="items/item"><xsl:value-of select="."/><xsl:text>;</xsl:text></xsl:for-each></xsl:template>
	</xsl:stylesheet>`)
	doc, err := xml.ParseString(items)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, sheet.Generate(context.Background(), &buf, doc))
	assert.Equal(t, "alpha;beta;gamma;", buf.String())
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		Name  string
		Sheet string
		Err   error
	}{
		{
			Name:  "missing-select",
			Sheet: `<xsl:template match="/"><xsl:value-of/></xsl:template>`,
			Err:   xslt.ErrMissing,
		},
		{
			Name:  "missing-name",
			Sheet: `<xsl:template match="/"><xsl:call-template/></xsl:template>`,
			Err:   xslt.ErrMissing,
		},
		{
			Name:  "unsupported",
			Sheet: `<xsl:key name="k" match="item" use="@id"/>`,
			Err:   xslt.ErrUnsupported,
		},
		{
			Name:  "invalid-pattern",
			Sheet: `<xsl:template match="count(item)"/>`,
			Err:   xpath.ErrSyntax,
		},
		{
			Name:  "invalid-expr",
			Sheet: `<xsl:template match="/"><xsl:value-of select="1 +"/></xsl:template>`,
			Err:   xpath.ErrSyntax,
		},
	}
	for _, c := range tests {
		t.Run(c.Name, func(t *testing.T) {
			str := `<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">` + c.Sheet + `</xsl:stylesheet>`
			_, err := xslt.Parse(strings.NewReader(str))
			require.Error(t, err)

			var ce *xslt.CompileError
			assert.ErrorAs(t, err, &ce)
			assert.ErrorIs(t, err, c.Err)
		})
	}
}
