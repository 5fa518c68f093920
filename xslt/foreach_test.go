package xslt

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

type exprFunc func(xpath.Context) (xpath.Value, error)

func (f exprFunc) Evaluate(ctx xpath.Context) (xpath.Value, error) {
	return f(ctx)
}

func constant(v xpath.Value) (xpath.Expr, *int) {
	var count int
	fn := func(_ xpath.Context) (xpath.Value, error) {
		count++
		return v, nil
	}
	return exprFunc(fn), &count
}

type visit struct {
	Node     xml.Node
	Position int
	Size     int
}

type output struct {
	Parent xml.Node
	Next   xml.Node
}

type recorder struct {
	visits  []visit
	outputs []output
}

func (_ *recorder) Name() string {
	return "record"
}

func (r *recorder) Execute(ctx Context, _ *TemplateNode) error {
	r.visits = append(r.visits, visit{
		Node:     ctx.ContextNode,
		Position: ctx.Position,
		Size:     ctx.Size,
	})
	r.outputs = append(r.outputs, output{
		Parent: ctx.Parent,
		Next:   ctx.NextSibling,
	})
	return nil
}

func (r *recorder) nodes() []xml.Node {
	var list []xml.Node
	for _, v := range r.visits {
		list = append(list, v.Node)
	}
	return list
}

type sampleNodes struct {
	Root *xml.Element
	A    xml.Node
	B    xml.Node
	C    xml.Node
}

func loadSample(t *testing.T) sampleNodes {
	t.Helper()
	doc, err := xml.ParseString(`<root><a n="2">a</a><b n="2">b</b><c n="1">c</c></root>`)
	require.NoError(t, err)
	root, ok := doc.Root().(*xml.Element)
	require.True(t, ok)
	require.Len(t, root.Nodes, 3)
	return sampleNodes{
		Root: root,
		A:    root.Nodes[0],
		B:    root.Nodes[1],
		C:    root.Nodes[2],
	}
}

func testContext(node xml.Node) Context {
	run := newRun(context.Background(), defaultConfig())
	return Context{
		ContextNode: node,
		Position:    1,
		Size:        1,
		Parent:      xml.EmptyDocument(),
		Variables:   run.globals,
		run:         run,
	}
}

// forEach builds a chain made of a for-each with body as child and next as
// following sibling.
func forEach(each *ForEach, body, next Instruction) *TemplateNode {
	node := TemplateNode{
		Instruction: each,
	}
	if body != nil {
		node.Children = &TemplateNode{Instruction: body}
	}
	if next != nil {
		node.Next = &TemplateNode{Instruction: next}
	}
	return &node
}

func TestForEachDocumentOrder(t *testing.T) {
	var (
		sample  = loadSample(t)
		expr, _ = constant(xpath.NodeSet{sample.C, sample.A, sample.B})
		body    recorder
		chain   = forEach(&ForEach{Select: expr}, &body, nil)
	)
	require.NoError(t, chain.Apply(testContext(sample.Root)))

	want := []visit{
		{Node: sample.A, Position: 1, Size: 3},
		{Node: sample.B, Position: 2, Size: 3},
		{Node: sample.C, Position: 3, Size: 3},
	}
	assert.Equal(t, want, body.visits)
}

func TestForEachSortKeys(t *testing.T) {
	sample := loadSample(t)

	tests := []struct {
		Name   string
		Select xpath.Value
		Keys   []SortKey
		Want   []xml.Node
	}{
		{
			Name:   "numeric-stable",
			Select: xpath.NodeSet{sample.C, sample.A, sample.B},
			Keys: []SortKey{
				{Select: mustCompile(t, "@n"), DataType: SortNumber},
			},
			Want: []xml.Node{sample.C, sample.A, sample.B},
		},
		{
			Name:   "numeric-stable-reversed-input",
			Select: xpath.NodeSet{sample.C, sample.B, sample.A},
			Keys: []SortKey{
				{Select: mustCompile(t, "@n"), DataType: SortNumber},
			},
			Want: []xml.Node{sample.C, sample.B, sample.A},
		},
		{
			Name:   "ties-keep-selection-order",
			Select: xpath.NodeSet{sample.B, sample.A, sample.C},
			Keys: []SortKey{
				{Select: mustCompile(t, "0"), DataType: SortNumber},
			},
			Want: []xml.Node{sample.B, sample.A, sample.C},
		},
		{
			Name:   "numeric-descending",
			Select: xpath.NodeSet{sample.C, sample.A, sample.B},
			Keys: []SortKey{
				{Select: mustCompile(t, "@n"), DataType: SortNumber, Order: SortDescending},
			},
			Want: []xml.Node{sample.A, sample.B, sample.C},
		},
		{
			Name:   "text-descending",
			Select: xpath.NodeSet{sample.A, sample.B, sample.C},
			Keys: []SortKey{
				{Select: mustCompile(t, "."), Order: SortDescending},
			},
			Want: []xml.Node{sample.C, sample.B, sample.A},
		},
		{
			Name:   "second-key",
			Select: xpath.NodeSet{sample.A, sample.B, sample.C},
			Keys: []SortKey{
				{Select: mustCompile(t, "@n"), DataType: SortNumber},
				{Select: mustCompile(t, "."), Order: SortDescending},
			},
			Want: []xml.Node{sample.C, sample.B, sample.A},
		},
		{
			Name:   "position-of-for-each",
			Select: xpath.NodeSet{sample.A, sample.B, sample.C},
			Keys: []SortKey{
				{Select: mustCompile(t, "last() - position()"), DataType: SortNumber},
			},
			Want: []xml.Node{sample.A, sample.B, sample.C},
		},
	}
	for _, c := range tests {
		t.Run(c.Name, func(t *testing.T) {
			var (
				expr, _ = constant(c.Select)
				body    recorder
				chain   = forEach(&ForEach{Select: expr, Sort: c.Keys}, &body, nil)
			)
			require.NoError(t, chain.Apply(testContext(sample.Root)))
			assert.Equal(t, c.Want, body.nodes())
			for i, v := range body.visits {
				assert.Equal(t, i+1, v.Position)
				assert.Equal(t, len(c.Want), v.Size)
			}
		})
	}
}

func TestForEachScalar(t *testing.T) {
	sample := loadSample(t)

	tests := []struct {
		Name  string
		Value xpath.Value
	}{
		{Name: "boolean", Value: xpath.Boolean(true)},
		{Name: "number", Value: xpath.Number(3)},
		{Name: "string", Value: xpath.String("a")},
		{Name: "empty", Value: xpath.NodeSet{}},
	}
	for _, c := range tests {
		t.Run(c.Name, func(t *testing.T) {
			var (
				expr, count = constant(c.Value)
				body, next  recorder
				chain       = forEach(&ForEach{Select: expr}, &body, &next)
			)
			require.NoError(t, chain.Apply(testContext(sample.Root)))
			assert.Equal(t, 1, *count)
			assert.Empty(t, body.visits)
			assert.Len(t, next.visits, 1)
		})
	}
}

func TestForEachWithoutChildren(t *testing.T) {
	var (
		sample      = loadSample(t)
		expr, count = constant(xpath.NodeSet{sample.A})
		next        recorder
		chain       = forEach(&ForEach{Select: expr}, nil, &next)
	)
	require.NoError(t, chain.Apply(testContext(sample.Root)))
	assert.Zero(t, *count)
	assert.Len(t, next.visits, 1)
}

func TestForEachSiblingContext(t *testing.T) {
	var (
		sample  = loadSample(t)
		expr, _ = constant(xpath.NodeSet{sample.A, sample.B, sample.C})
		body    recorder
		next    recorder
		chain   = forEach(&ForEach{Select: expr}, &body, &next)
		ctx     = testContext(sample.Root).WithNode(sample.Root, 2, 7)
	)
	require.NoError(t, chain.Apply(ctx))
	require.Len(t, body.visits, 3)

	want := []visit{
		{Node: sample.Root, Position: 2, Size: 7},
	}
	assert.Equal(t, want, next.visits)
}

func TestForEachOutputCoordinates(t *testing.T) {
	var (
		sample  = loadSample(t)
		target  = xml.NewElement(xml.LocalName("out"))
		ref     = xml.NewElement(xml.LocalName("ref"))
		expr, _ = constant(xpath.NodeSet{sample.A, sample.B, sample.C})
		body    recorder
		next    recorder
		chain   = forEach(&ForEach{Select: expr}, &body, &next)
		ctx     = testContext(sample.Root).WithOutput(target, ref)
	)
	require.NoError(t, target.Append(ref))
	require.NoError(t, chain.Apply(ctx))

	want := output{Parent: target, Next: ref}
	require.Len(t, body.outputs, 3)
	for _, o := range body.outputs {
		assert.Same(t, want.Parent, o.Parent)
		assert.Same(t, want.Next, o.Next)
	}
	require.Len(t, next.outputs, 1)
	assert.Same(t, want.Parent, next.outputs[0].Parent)
	assert.Same(t, want.Next, next.outputs[0].Next)
}

func TestForEachSelectError(t *testing.T) {
	var (
		sample = loadSample(t)
		fail   = errors.New("evaluation failed")
		expr   = exprFunc(func(_ xpath.Context) (xpath.Value, error) {
			return nil, fail
		})
		body, next recorder
		chain      = forEach(&ForEach{Select: expr}, &body, &next)
	)
	err := chain.Apply(testContext(sample.Root))
	require.ErrorIs(t, err, fail)
	assert.Empty(t, body.visits)
	assert.Empty(t, next.visits)
}

func TestForEachNested(t *testing.T) {
	var (
		sample = loadSample(t)
		inner  recorder
		outer  = ForEach{Select: mustCompile(t, "*")}
		nested = ForEach{Select: mustCompile(t, "text()")}
		chain  = &TemplateNode{
			Instruction: &outer,
			Children: &TemplateNode{
				Instruction: &nested,
				Children:    &TemplateNode{Instruction: &inner},
			},
		}
	)
	require.NoError(t, chain.Apply(testContext(sample.Root)))
	require.Len(t, inner.visits, 3)
	for i, v := range inner.visits {
		assert.Equal(t, xml.TypeText, v.Node.Type())
		assert.Equal(t, 1, v.Position)
		assert.Equal(t, 1, v.Size)
		assert.Equal(t, sample.Root.Nodes[i], v.Node.Parent())
	}
}

func mustCompile(t *testing.T, query string) xpath.Expr {
	t.Helper()
	expr, err := xpath.CompileString(query)
	require.NoError(t, err)
	return expr
}
