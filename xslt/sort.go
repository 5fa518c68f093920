package xslt

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

const (
	SortText       = "text"
	SortNumber     = "number"
	SortAscending  = "ascending"
	SortDescending = "descending"
	SortUpperFirst = "upper-first"
	SortLowerFirst = "lower-first"
)

// SortKey parameterizes the comparison of a selection for one evaluation of a
// for-each or an apply-templates.
type SortKey struct {
	Select    xpath.Expr
	DataType  string
	Order     string
	CaseOrder string
	Lang      string
}

func (k SortKey) descending() bool {
	return k.Order == SortDescending
}

func (k SortKey) numeric() bool {
	return k.DataType == SortNumber
}

func (k SortKey) validate() error {
	switch k.DataType {
	case "", SortText, SortNumber:
	default:
		return fmt.Errorf("%s: unsupported data-type", k.DataType)
	}
	switch k.Order {
	case "", SortAscending, SortDescending:
	default:
		return fmt.Errorf("%s: unsupported order", k.Order)
	}
	switch k.CaseOrder {
	case "", SortUpperFirst, SortLowerFirst:
	default:
		return fmt.Errorf("%s: unsupported case-order", k.CaseOrder)
	}
	return nil
}

type sortValue struct {
	str string
	num float64
}

type sortItem struct {
	node xml.Node
	keys []sortValue
}

// orderNodes returns the nodes in document order when no key is given.
// Otherwise the selection is ordered by the keys and nodes with equal keys
// keep the order of the selection.
func orderNodes(ctx Context, nodes []xml.Node, keys []SortKey) ([]xml.Node, error) {
	list := slices.Clone(nodes)
	if len(keys) == 0 {
		xml.SortNodes(list)
		return list, nil
	}
	items := make([]sortItem, 0, len(list))
	for _, n := range list {
		item := sortItem{
			node: n,
			keys: make([]sortValue, 0, len(keys)),
		}
		for _, k := range keys {
			v, err := ctx.evalWith(k.Select, n)
			if err != nil {
				return nil, err
			}
			var val sortValue
			if k.numeric() {
				val.num = xpath.AsNumber(v)
			} else {
				val.str = xpath.AsString(v)
			}
			item.keys = append(item.keys, val)
		}
		items = append(items, item)
	}
	compare := keyComparator(keys)
	slices.SortStableFunc(items, func(a, b sortItem) int {
		return compare(a.keys, b.keys)
	})
	for i := range items {
		list[i] = items[i].node
	}
	return list, nil
}

func keyComparator(keys []SortKey) func(a, b []sortValue) int {
	funcs := make([]func(a, b sortValue) int, 0, len(keys))
	for _, k := range keys {
		var fn func(a, b sortValue) int
		if k.numeric() {
			fn = compareNumbers
		} else {
			fn = textComparator(k)
		}
		if k.descending() {
			asc := fn
			fn = func(a, b sortValue) int {
				return -asc(a, b)
			}
		}
		funcs = append(funcs, fn)
	}
	return func(a, b []sortValue) int {
		for i, fn := range funcs {
			if c := fn(a[i], b[i]); c != 0 {
				return c
			}
		}
		return 0
	}
}

// compareNumbers puts NaN before any other number.
func compareNumbers(a, b sortValue) int {
	x, y := math.IsNaN(a.num), math.IsNaN(b.num)
	switch {
	case x && y:
		return 0
	case x:
		return -1
	case y:
		return 1
	default:
		return cmp.Compare(a.num, b.num)
	}
}

func textComparator(k SortKey) func(a, b sortValue) int {
	if k.Lang != "" {
		coll := collate.New(language.Make(k.Lang))
		if k.CaseOrder == "" {
			return func(a, b sortValue) int {
				return coll.CompareString(a.str, b.str)
			}
		}
		fold := collate.New(language.Make(k.Lang), collate.IgnoreCase)
		return func(a, b sortValue) int {
			if c := fold.CompareString(a.str, b.str); c != 0 {
				return c
			}
			return compareCase(a.str, b.str, k.CaseOrder)
		}
	}
	if k.CaseOrder == "" {
		return func(a, b sortValue) int {
			return strings.Compare(a.str, b.str)
		}
	}
	return func(a, b sortValue) int {
		if c := strings.Compare(strings.ToLower(a.str), strings.ToLower(b.str)); c != 0 {
			return c
		}
		return compareCase(a.str, b.str, k.CaseOrder)
	}
}

// compareCase orders strings equal but for the case of their letters.
func compareCase(a, b, order string) int {
	for a != "" && b != "" {
		r1, n1 := utf8.DecodeRuneInString(a)
		r2, n2 := utf8.DecodeRuneInString(b)
		a, b = a[n1:], b[n2:]
		if r1 == r2 {
			continue
		}
		u1, u2 := unicode.IsUpper(r1), unicode.IsUpper(r2)
		if u1 == u2 {
			return cmp.Compare(r1, r2)
		}
		if u1 == (order == SortUpperFirst) {
			return -1
		}
		return 1
	}
	return cmp.Compare(len(a), len(b))
}
