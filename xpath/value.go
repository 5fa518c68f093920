package xpath

import (
	"math"
	"strconv"
	"strings"

	"github.com/midbel/angle/xml"
)

// Value is the result of an expression: one of String, Number, Boolean or
// NodeSet.
type Value interface {
	Type() string
}

type String string

func (_ String) Type() string {
	return "string"
}

type Number float64

func (_ Number) Type() string {
	return "number"
}

type Boolean bool

func (_ Boolean) Type() string {
	return "boolean"
}

// NodeSet is kept in document order without duplicates by every operation of
// the package.
type NodeSet []xml.Node

func (_ NodeSet) Type() string {
	return "node-set"
}

func (n NodeSet) First() xml.Node {
	if len(n) == 0 {
		return nil
	}
	return n[0]
}

func AsNodeSet(v Value) (NodeSet, bool) {
	ns, ok := v.(NodeSet)
	return ns, ok
}

func IsNodeSet(v Value) bool {
	_, ok := v.(NodeSet)
	return ok
}

func AsString(v Value) string {
	switch v := v.(type) {
	case String:
		return string(v)
	case Number:
		return formatNumber(float64(v))
	case Boolean:
		if v {
			return "true"
		}
		return "false"
	case NodeSet:
		if len(v) == 0 {
			return ""
		}
		return v[0].Value()
	default:
		return ""
	}
}

func AsNumber(v Value) float64 {
	switch v := v.(type) {
	case String:
		return parseNumber(string(v))
	case Number:
		return float64(v)
	case Boolean:
		if v {
			return 1
		}
		return 0
	case NodeSet:
		return parseNumber(AsString(v))
	default:
		return math.NaN()
	}
}

func AsBoolean(v Value) bool {
	switch v := v.(type) {
	case String:
		return len(v) > 0
	case Number:
		f := float64(v)
		return f != 0 && !math.IsNaN(f)
	case Boolean:
		return bool(v)
	case NodeSet:
		return len(v) > 0
	default:
		return false
	}
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	case f == math.Trunc(f) && math.Abs(f) < 1e15:
		return strconv.FormatInt(int64(f), 10)
	default:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
}

// parseNumber accepts the Number production of XPath 1.0 surrounded by
// whitespace, an optional minus sign included. Anything else is NaN.
func parseNumber(str string) float64 {
	str = strings.TrimSpace(str)
	digits := strings.TrimPrefix(str, "-")
	if digits == "" || digits == "." {
		return math.NaN()
	}
	var dot bool
	for _, c := range digits {
		switch {
		case c == '.' && !dot:
			dot = true
		case isDigit(c):
		default:
			return math.NaN()
		}
	}
	f, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
