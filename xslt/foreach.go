package xslt

import (
	"github.com/midbel/angle/xpath"
)

// ForEach applies its children once for every node selected, in document
// order or in the order given by its sort keys.
type ForEach struct {
	Select xpath.Expr
	Sort   []SortKey
}

func (_ *ForEach) Name() string {
	return "for-each"
}

// Execute does not evaluate the selection when there is nothing to apply. A
// selection that is not a node-set gives no iteration.
func (f *ForEach) Execute(ctx Context, children *TemplateNode) error {
	if children == nil {
		return nil
	}
	v, err := ctx.Eval(f.Select)
	if err != nil {
		return err
	}
	nodes, ok := xpath.AsNodeSet(v)
	if !ok {
		return nil
	}
	list, err := orderNodes(ctx, nodes, f.Sort)
	if err != nil {
		return err
	}
	for i, n := range list {
		sub := ctx.WithNode(n, i+1, len(list))
		if err := children.Apply(sub); err != nil {
			return err
		}
	}
	return nil
}
