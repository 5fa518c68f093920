package xpath

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode"
	"unicode/utf8"
)

type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

const (
	kwAnd = "and"
	kwOr  = "or"
	kwDiv = "div"
	kwMod = "mod"
)

const (
	EOF rune = -(1 + iota)
	Name
	Literal
	Digit
	Invalid
)

const (
	currNode = -(iota + 1000)
	parentNode
	attrNode
	variable
	currLevel
	anyLevel
	begPred
	endPred
	begGrp
	endGrp
	opAdd
	opSub
	opMul
	opDiv
	opMod
	opEq
	opNe
	opGt
	opGe
	opLt
	opLe
	opUnion
	opAnd
	opOr
	opSeq
	opAxis
)

type Token struct {
	Literal string
	Type    rune
	Position
}

func (t Token) String() string {
	switch t.Type {
	case opUnion:
		return "<union>"
	case opAxis:
		return "<axis>"
	case currNode:
		return "<current-node>"
	case parentNode:
		return "<parent-node>"
	case attrNode:
		return "<attribute>"
	case currLevel:
		return "<current-level>"
	case anyLevel:
		return "<any-level>"
	case begPred:
		return "<begin-predicate>"
	case endPred:
		return "<end-predicate>"
	case begGrp:
		return "<begin-group>"
	case endGrp:
		return "<end-group>"
	case opAdd:
		return "<add>"
	case opSub:
		return "<subtract>"
	case opMul:
		return "<multiply>"
	case opDiv:
		return "<divide>"
	case opMod:
		return "<modulo>"
	case opEq:
		return "<equal>"
	case opNe:
		return "<not-equal>"
	case opGt:
		return "<greater-than>"
	case opGe:
		return "<greater-eq>"
	case opLt:
		return "<lesser-than>"
	case opLe:
		return "<lesser-eq>"
	case opAnd:
		return "<and>"
	case opOr:
		return "<or>"
	case opSeq:
		return "<sequence>"
	case EOF:
		return "<eof>"
	case Digit:
		return fmt.Sprintf("number(%s)", t.Literal)
	case Name:
		return fmt.Sprintf("name(%s)", t.Literal)
	case Literal:
		return fmt.Sprintf("literal(%s)", t.Literal)
	case variable:
		return fmt.Sprintf("variable(%s)", t.Literal)
	case Invalid:
		return "<invalid>"
	default:
		return "<unknown>"
	}
}

// Scanner splits an expression into tokens. It applies the lexical rule of
// XPath 1.0: "*" and the names and, or, div and mod are operators only when
// the previous token can end an operand.
type Scanner struct {
	input *bufio.Reader
	char  rune
	str   bytes.Buffer
	prev  rune

	Position
}

func Scan(r io.Reader) *Scanner {
	scan := &Scanner{
		input: bufio.NewReader(r),
	}
	scan.Line = 1
	scan.read()
	return scan
}

func (s *Scanner) Scan() Token {
	s.str.Reset()
	s.skipBlank()

	var tok Token
	tok.Position = s.Position
	if s.done() {
		tok.Type = EOF
		return tok
	}
	switch {
	case s.char == quote || s.char == apos:
		s.scanLiteral(&tok)
	case s.char == dollar:
		s.scanVariable(&tok)
	case isDigit(s.char) || (s.char == dot && isDigit(s.peek())):
		s.scanNumber(&tok)
	case s.char == star:
		s.scanStar(&tok)
	case isNameStart(s.char):
		s.scanIdent(&tok)
	default:
		s.scanDelimiter(&tok)
	}
	s.prev = tok.Type
	return tok
}

func (s *Scanner) operatorExpected() bool {
	switch s.prev {
	case Name, Literal, Digit, variable, endGrp, endPred, currNode, parentNode:
		return true
	default:
		return false
	}
}

func (s *Scanner) scanDelimiter(tok *Token) {
	switch k := s.peek(); s.char {
	case colon:
		tok.Type = Invalid
		if k == colon {
			s.read()
			tok.Type = opAxis
		}
	case dot:
		tok.Type = currNode
		if k == dot {
			s.read()
			tok.Type = parentNode
		}
	case arobase:
		tok.Type = attrNode
	case comma:
		tok.Type = opSeq
	case pipe:
		tok.Type = opUnion
	case lsquare:
		tok.Type = begPred
	case rsquare:
		tok.Type = endPred
	case lparen:
		tok.Type = begGrp
	case rparen:
		tok.Type = endGrp
	case slash:
		tok.Type = currLevel
		if k == slash {
			s.read()
			tok.Type = anyLevel
		}
	case plus:
		tok.Type = opAdd
	case dash:
		tok.Type = opSub
	case equal:
		tok.Type = opEq
	case bang:
		tok.Type = Invalid
		if k == equal {
			s.read()
			tok.Type = opNe
		}
	case langle:
		tok.Type = opLt
		if k == equal {
			s.read()
			tok.Type = opLe
		}
	case rangle:
		tok.Type = opGt
		if k == equal {
			s.read()
			tok.Type = opGe
		}
	default:
		tok.Type = Invalid
		tok.Literal = string(s.char)
	}
	s.read()
}

func (s *Scanner) scanStar(tok *Token) {
	s.read()
	if s.operatorExpected() {
		tok.Type = opMul
		return
	}
	tok.Type = Name
	tok.Literal = "*"
}

func (s *Scanner) scanLiteral(tok *Token) {
	quote := s.char
	s.read()
	for !s.done() && s.char != quote {
		s.write()
		s.read()
	}
	tok.Type = Literal
	tok.Literal = s.str.String()
	if s.char != quote {
		tok.Type = Invalid
		return
	}
	s.read()
}

func (s *Scanner) scanNumber(tok *Token) {
	for !s.done() && isDigit(s.char) {
		s.write()
		s.read()
	}
	if s.char == dot {
		s.write()
		s.read()
		for !s.done() && isDigit(s.char) {
			s.write()
			s.read()
		}
	}
	tok.Type = Digit
	tok.Literal = s.str.String()
}

func (s *Scanner) scanVariable(tok *Token) {
	s.read()
	s.scanQName()
	tok.Type = variable
	tok.Literal = s.str.String()
	if tok.Literal == "" {
		tok.Type = Invalid
	}
}

func (s *Scanner) scanIdent(tok *Token) {
	operator := s.operatorExpected()
	s.scanQName()
	tok.Literal = s.str.String()
	tok.Type = Name
	if !operator {
		return
	}
	switch tok.Literal {
	case kwAnd:
		tok.Type = opAnd
	case kwOr:
		tok.Type = opOr
	case kwDiv:
		tok.Type = opDiv
	case kwMod:
		tok.Type = opMod
	default:
	}
}

// scanQName reads an NCName optionally followed by ":" and an NCName or "*".
func (s *Scanner) scanQName() {
	for !s.done() && isNameChar(s.char) {
		s.write()
		s.read()
	}
	if s.char != colon || s.str.Len() == 0 {
		return
	}
	k := s.peek()
	if k != star && !isNameStart(k) {
		return
	}
	s.write()
	s.read()
	if s.char == star {
		s.write()
		s.read()
		return
	}
	for !s.done() && isNameChar(s.char) {
		s.write()
		s.read()
	}
}

func (s *Scanner) skipBlank() {
	for !s.done() && unicode.IsSpace(s.char) {
		s.read()
	}
}

func (s *Scanner) write() {
	s.str.WriteRune(s.char)
}

func (s *Scanner) read() {
	if s.char == nl {
		s.Column = 0
		s.Line++
	}
	s.Column++
	c, _, err := s.input.ReadRune()
	if err != nil {
		s.char = utf8.RuneError
	} else {
		s.char = c
	}
}

func (s *Scanner) peek() rune {
	c, _, err := s.input.ReadRune()
	if err != nil {
		return utf8.RuneError
	}
	s.input.UnreadRune()
	return c
}

func (s *Scanner) done() bool {
	return s.char == utf8.RuneError
}

const (
	langle     = '<'
	rangle     = '>'
	lsquare    = '['
	rsquare    = ']'
	lparen     = '('
	rparen     = ')'
	colon      = ':'
	quote      = '"'
	apos       = '\''
	slash      = '/'
	bang       = '!'
	equal      = '='
	dollar     = '$'
	arobase    = '@'
	comma      = ','
	dot        = '.'
	pipe       = '|'
	plus       = '+'
	dash       = '-'
	star       = '*'
	underscore = '_'
	nl         = '\n'
)

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}

func isNameStart(c rune) bool {
	return unicode.IsLetter(c) || c == underscore
}

func isNameChar(c rune) bool {
	return isNameStart(c) || unicode.IsDigit(c) || c == dash || c == dot
}
