package xpath

import (
	"cmp"
	"math"
)

// compareValues applies the comparison rules of XPath 1.0: a comparison
// involving a node-set is true if it holds for at least one of its nodes.
func compareValues(op rune, left, right Value) bool {
	x, ok1 := left.(NodeSet)
	y, ok2 := right.(NodeSet)
	switch {
	case ok1 && ok2:
		for _, a := range x {
			for _, b := range y {
				if compareAtomics(op, String(a.Value()), String(b.Value())) {
					return true
				}
			}
		}
		return false
	case ok1:
		if _, ok := right.(Boolean); ok {
			return compareAtomics(op, Boolean(len(x) > 0), right)
		}
		for _, a := range x {
			if compareAtomics(op, nodeAtomic(a.Value(), right), right) {
				return true
			}
		}
		return false
	case ok2:
		if _, ok := left.(Boolean); ok {
			return compareAtomics(op, left, Boolean(len(y) > 0))
		}
		for _, b := range y {
			if compareAtomics(op, left, nodeAtomic(b.Value(), left)) {
				return true
			}
		}
		return false
	default:
		return compareAtomics(op, left, right)
	}
}

func nodeAtomic(str string, other Value) Value {
	if _, ok := other.(Number); ok {
		return Number(parseNumber(str))
	}
	return String(str)
}

func compareAtomics(op rune, left, right Value) bool {
	switch op {
	case opEq, opNe:
		eq := equalAtomics(left, right)
		if op == opNe {
			return !eq
		}
		return eq
	default:
		var (
			x = AsNumber(left)
			y = AsNumber(right)
		)
		if math.IsNaN(x) || math.IsNaN(y) {
			return false
		}
		c := cmp.Compare(x, y)
		switch op {
		case opLt:
			return c < 0
		case opLe:
			return c <= 0
		case opGt:
			return c > 0
		case opGe:
			return c >= 0
		default:
			return false
		}
	}
}

func equalAtomics(left, right Value) bool {
	_, b1 := left.(Boolean)
	_, b2 := right.(Boolean)
	if b1 || b2 {
		return AsBoolean(left) == AsBoolean(right)
	}
	_, n1 := left.(Number)
	_, n2 := right.(Number)
	if n1 || n2 {
		return AsNumber(left) == AsNumber(right)
	}
	return AsString(left) == AsString(right)
}
