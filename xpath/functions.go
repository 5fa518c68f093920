package xpath

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/midbel/angle/environ"
	"github.com/midbel/angle/xml"
)

var builtins = environ.From(map[string]Function{
	"last":             callLast,
	"position":         callPosition,
	"count":            callCount,
	"local-name":       callLocalName,
	"name":             callName,
	"namespace-uri":    callNamespaceUri,
	"string":           callString,
	"concat":           callConcat,
	"starts-with":      callStartsWith,
	"contains":         callContains,
	"substring-before": callSubstringBefore,
	"substring-after":  callSubstringAfter,
	"substring":        callSubstring,
	"string-length":    callStringLength,
	"normalize-space":  callNormalizeSpace,
	"translate":        callTranslate,
	"boolean":          callBoolean,
	"not":              callNot,
	"true":             callTrue,
	"false":            callFalse,
	"lang":             callLang,
	"number":           callNumber,
	"sum":              callSum,
	"floor":            callFloor,
	"ceiling":          callCeiling,
	"round":            callRound,
})

// DefaultFunctions returns a scope enclosing the core function library.
// Functions defined in the returned scope hide the core ones.
func DefaultFunctions() environ.Environ[Function] {
	return environ.Enclosed(builtins)
}

func checkArity(name string, args []Value, least, most int) error {
	if len(args) < least || (most >= 0 && len(args) > most) {
		return fmt.Errorf("%s: %w (got %d)", name, ErrArgument, len(args))
	}
	return nil
}

func nodeSetArg(name string, v Value) (NodeSet, error) {
	ns, ok := v.(NodeSet)
	if !ok {
		return nil, fmt.Errorf("%s: %w: node-set expected, got %s", name, ErrType, v.Type())
	}
	return ns, nil
}

// stringArg returns the string value of the optional argument or of the
// context node.
func stringArg(ctx Context, args []Value) string {
	if len(args) == 0 {
		if ctx.Node == nil {
			return ""
		}
		return ctx.Node.Value()
	}
	return AsString(args[0])
}

func nodeArg(name string, ctx Context, args []Value) (xml.Node, error) {
	if len(args) == 0 {
		return ctx.Node, nil
	}
	ns, err := nodeSetArg(name, args[0])
	if err != nil {
		return nil, err
	}
	return ns.First(), nil
}

func callLast(ctx Context, args []Value) (Value, error) {
	if err := checkArity("last", args, 0, 0); err != nil {
		return nil, err
	}
	return Number(ctx.Size), nil
}

func callPosition(ctx Context, args []Value) (Value, error) {
	if err := checkArity("position", args, 0, 0); err != nil {
		return nil, err
	}
	return Number(ctx.Position), nil
}

func callCount(_ Context, args []Value) (Value, error) {
	if err := checkArity("count", args, 1, 1); err != nil {
		return nil, err
	}
	ns, err := nodeSetArg("count", args[0])
	if err != nil {
		return nil, err
	}
	return Number(len(ns)), nil
}

func callLocalName(ctx Context, args []Value) (Value, error) {
	if err := checkArity("local-name", args, 0, 1); err != nil {
		return nil, err
	}
	n, err := nodeArg("local-name", ctx, args)
	if err != nil || n == nil {
		return String(""), err
	}
	return String(n.LocalName()), nil
}

func callName(ctx Context, args []Value) (Value, error) {
	if err := checkArity("name", args, 0, 1); err != nil {
		return nil, err
	}
	n, err := nodeArg("name", ctx, args)
	if err != nil || n == nil {
		return String(""), err
	}
	return String(n.QualifiedName()), nil
}

func callNamespaceUri(ctx Context, args []Value) (Value, error) {
	if err := checkArity("namespace-uri", args, 0, 1); err != nil {
		return nil, err
	}
	n, err := nodeArg("namespace-uri", ctx, args)
	if err != nil {
		return nil, err
	}
	switch n := n.(type) {
	case *xml.Element:
		return String(n.Uri), nil
	case *xml.Attribute:
		return String(n.Uri), nil
	default:
		return String(""), nil
	}
}

func callString(ctx Context, args []Value) (Value, error) {
	if err := checkArity("string", args, 0, 1); err != nil {
		return nil, err
	}
	return String(stringArg(ctx, args)), nil
}

func callConcat(_ Context, args []Value) (Value, error) {
	if err := checkArity("concat", args, 2, -1); err != nil {
		return nil, err
	}
	var str strings.Builder
	for _, a := range args {
		str.WriteString(AsString(a))
	}
	return String(str.String()), nil
}

func callStartsWith(_ Context, args []Value) (Value, error) {
	if err := checkArity("starts-with", args, 2, 2); err != nil {
		return nil, err
	}
	return Boolean(strings.HasPrefix(AsString(args[0]), AsString(args[1]))), nil
}

func callContains(_ Context, args []Value) (Value, error) {
	if err := checkArity("contains", args, 2, 2); err != nil {
		return nil, err
	}
	return Boolean(strings.Contains(AsString(args[0]), AsString(args[1]))), nil
}

func callSubstringBefore(_ Context, args []Value) (Value, error) {
	if err := checkArity("substring-before", args, 2, 2); err != nil {
		return nil, err
	}
	before, _, ok := strings.Cut(AsString(args[0]), AsString(args[1]))
	if !ok {
		return String(""), nil
	}
	return String(before), nil
}

func callSubstringAfter(_ Context, args []Value) (Value, error) {
	if err := checkArity("substring-after", args, 2, 2); err != nil {
		return nil, err
	}
	_, after, ok := strings.Cut(AsString(args[0]), AsString(args[1]))
	if !ok {
		return String(""), nil
	}
	return String(after), nil
}

func callSubstring(_ Context, args []Value) (Value, error) {
	if err := checkArity("substring", args, 2, 3); err != nil {
		return nil, err
	}
	var (
		runes = []rune(AsString(args[0]))
		first = roundNumber(AsNumber(args[1]))
		last  = math.Inf(1)
		str   strings.Builder
	)
	if len(args) == 3 {
		last = first + roundNumber(AsNumber(args[2]))
	}
	for i, r := range runes {
		p := float64(i + 1)
		if p >= first && p < last {
			str.WriteRune(r)
		}
	}
	return String(str.String()), nil
}

func callStringLength(ctx Context, args []Value) (Value, error) {
	if err := checkArity("string-length", args, 0, 1); err != nil {
		return nil, err
	}
	return Number(utf8.RuneCountInString(stringArg(ctx, args))), nil
}

func callNormalizeSpace(ctx Context, args []Value) (Value, error) {
	if err := checkArity("normalize-space", args, 0, 1); err != nil {
		return nil, err
	}
	return String(strings.Join(strings.Fields(stringArg(ctx, args)), " ")), nil
}

func callTranslate(_ Context, args []Value) (Value, error) {
	if err := checkArity("translate", args, 3, 3); err != nil {
		return nil, err
	}
	var (
		from = []rune(AsString(args[1]))
		to   = []rune(AsString(args[2]))
		set  = make(map[rune]rune)
		drop = make(map[rune]bool)
	)
	for i, r := range from {
		if _, ok := set[r]; ok || drop[r] {
			continue
		}
		if i < len(to) {
			set[r] = to[i]
		} else {
			drop[r] = true
		}
	}
	str := strings.Map(func(r rune) rune {
		if drop[r] {
			return -1
		}
		if x, ok := set[r]; ok {
			return x
		}
		return r
	}, AsString(args[0]))
	return String(str), nil
}

func callBoolean(_ Context, args []Value) (Value, error) {
	if err := checkArity("boolean", args, 1, 1); err != nil {
		return nil, err
	}
	return Boolean(AsBoolean(args[0])), nil
}

func callNot(_ Context, args []Value) (Value, error) {
	if err := checkArity("not", args, 1, 1); err != nil {
		return nil, err
	}
	return Boolean(!AsBoolean(args[0])), nil
}

func callTrue(_ Context, args []Value) (Value, error) {
	if err := checkArity("true", args, 0, 0); err != nil {
		return nil, err
	}
	return Boolean(true), nil
}

func callFalse(_ Context, args []Value) (Value, error) {
	if err := checkArity("false", args, 0, 0); err != nil {
		return nil, err
	}
	return Boolean(false), nil
}

func callLang(ctx Context, args []Value) (Value, error) {
	if err := checkArity("lang", args, 1, 1); err != nil {
		return nil, err
	}
	want := strings.ToLower(AsString(args[0]))
	for n := ctx.Node; n != nil; n = n.Parent() {
		el, ok := n.(*xml.Element)
		if !ok {
			continue
		}
		ix := -1
		for i, a := range el.Attrs {
			if a.Name == "lang" && (a.Space == "xml" || a.Uri == xml.NamespaceXML) {
				ix = i
				break
			}
		}
		if ix < 0 {
			continue
		}
		got := strings.ToLower(el.Attrs[ix].Value())
		return Boolean(got == want || strings.HasPrefix(got, want+"-")), nil
	}
	return Boolean(false), nil
}

func callNumber(ctx Context, args []Value) (Value, error) {
	if err := checkArity("number", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return Number(parseNumber(stringArg(ctx, args))), nil
	}
	return Number(AsNumber(args[0])), nil
}

func callSum(_ Context, args []Value) (Value, error) {
	if err := checkArity("sum", args, 1, 1); err != nil {
		return nil, err
	}
	ns, err := nodeSetArg("sum", args[0])
	if err != nil {
		return nil, err
	}
	var total float64
	for _, n := range ns {
		total += parseNumber(n.Value())
	}
	return Number(total), nil
}

func callFloor(_ Context, args []Value) (Value, error) {
	if err := checkArity("floor", args, 1, 1); err != nil {
		return nil, err
	}
	return Number(math.Floor(AsNumber(args[0]))), nil
}

func callCeiling(_ Context, args []Value) (Value, error) {
	if err := checkArity("ceiling", args, 1, 1); err != nil {
		return nil, err
	}
	return Number(math.Ceil(AsNumber(args[0]))), nil
}

func callRound(_ Context, args []Value) (Value, error) {
	if err := checkArity("round", args, 1, 1); err != nil {
		return nil, err
	}
	return Number(roundNumber(AsNumber(args[0]))), nil
}

func roundNumber(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	return math.Floor(f + 0.5)
}
