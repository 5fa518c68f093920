package xslt

import (
	"errors"
	"iter"
	"strings"

	"github.com/midbel/angle/environ"
	"github.com/midbel/angle/xpath"
)

var errAVT = errors.New("unbalanced curly brace in attribute value template")

// AVT is an attribute value template: literal text mixed with expressions
// enclosed in curly braces. Doubled braces stand for themselves.
type AVT struct {
	source string
	parts  []avtPart
}

type avtPart struct {
	text string
	expr xpath.Expr
}

func CompileAVT(str string, namespaces environ.Environ[string]) (AVT, error) {
	avt := AVT{
		source: str,
	}
	for part, err := range iterAVT(str) {
		if err != nil {
			return avt, err
		}
		if !part.expr {
			avt.parts = append(avt.parts, avtPart{text: part.str})
			continue
		}
		expr, err := xpath.CompileWithNamespaces(part.str, namespaces)
		if err != nil {
			return avt, err
		}
		avt.parts = append(avt.parts, avtPart{expr: expr})
	}
	return avt, nil
}

// Static reports whether the template holds no expression.
func (a AVT) Static() bool {
	for _, p := range a.parts {
		if p.expr != nil {
			return false
		}
	}
	return true
}

func (a AVT) Eval(ctx Context) (string, error) {
	var str strings.Builder
	for _, p := range a.parts {
		if p.expr == nil {
			str.WriteString(p.text)
			continue
		}
		v, err := ctx.Eval(p.expr)
		if err != nil {
			return "", err
		}
		str.WriteString(xpath.AsString(v))
	}
	return str.String(), nil
}

func (a AVT) String() string {
	return a.source
}

type avtToken struct {
	str  string
	expr bool
}

func iterAVT(str string) iter.Seq2[avtToken, error] {
	fn := func(yield func(avtToken, error) bool) {
		var buf strings.Builder
		for i := 0; i < len(str); i++ {
			switch c := str[i]; {
			case c == '{' && i+1 < len(str) && str[i+1] == '{':
				buf.WriteByte(c)
				i++
			case c == '}' && i+1 < len(str) && str[i+1] == '}':
				buf.WriteByte(c)
				i++
			case c == '}':
				yield(avtToken{}, errAVT)
				return
			case c == '{':
				end := strings.IndexByte(str[i+1:], '}')
				if end < 0 {
					yield(avtToken{}, errAVT)
					return
				}
				if buf.Len() > 0 {
					if !yield(avtToken{str: buf.String()}, nil) {
						return
					}
					buf.Reset()
				}
				if !yield(avtToken{str: str[i+1 : i+1+end], expr: true}, nil) {
					return
				}
				i += end + 1
			default:
				buf.WriteByte(c)
			}
		}
		if buf.Len() > 0 {
			yield(avtToken{str: buf.String()}, nil)
		}
	}
	return fn
}
