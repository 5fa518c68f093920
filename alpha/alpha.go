// Package alpha generates sequences of short names such as aa, ab, ac or
// a0-b1. It is used to give stable identifiers to nodes.
package alpha

import (
	"errors"
	"io"
	"strings"
	"unicode/utf8"
)

// Namer gives the next name of a sequence. It returns io.EOF once every name
// has been produced.
type Namer interface {
	Next() (string, error)
	Reset()
}

const (
	lowerA  = 'a'
	lowerZ  = 'z'
	number0 = '0'
	number9 = '9'
)

// Char walks through a range of runes.
type Char struct {
	step int
	curr rune
	min  rune
	max  rune
}

func Create(min, max rune, step int) *Char {
	if step <= 0 {
		step = 1
	}
	return &Char{
		step: step,
		curr: min,
		min:  min,
		max:  max,
	}
}

func Lower() *Char {
	return Create(lowerA, lowerZ, 1)
}

func Number() *Char {
	return Create(number0, number9, 1)
}

func (c *Char) Get() rune {
	return c.curr
}

func (c *Char) Next() rune {
	if c.Done() {
		return c.Get()
	}
	c.curr += rune(c.step)
	if c.curr > c.max {
		c.curr = utf8.RuneError
	}
	return c.curr
}

func (c *Char) Done() bool {
	return c.curr == utf8.RuneError
}

func (c *Char) Reset() {
	c.curr = c.min
}

type chain struct {
	list []*Char
	done bool
}

// Chain combines runes ranges into fixed size names, the last range moving
// the fastest.
func Chain(list ...*Char) Namer {
	return &chain{
		list: list,
	}
}

func NewLowerString(size int) Namer {
	return repeat(size, Lower)
}

func NewNumberString(size int) Namer {
	return repeat(size, Number)
}

func repeat(size int, mk func() *Char) Namer {
	var c chain
	for i := 0; i < size; i++ {
		c.list = append(c.list, mk())
	}
	return &c
}

func (c *chain) Next() (string, error) {
	if len(c.list) == 0 || c.done {
		return "", io.EOF
	}
	chars := make([]rune, 0, len(c.list))
	for _, a := range c.list {
		chars = append(chars, a.Get())
	}
	c.done = true
	for i := len(c.list) - 1; i >= 0; i-- {
		c.list[i].Next()
		if !c.list[i].Done() {
			for j := i + 1; j < len(c.list); j++ {
				c.list[j].Reset()
			}
			c.done = false
			break
		}
	}
	return string(chars), nil
}

func (c *chain) Reset() {
	c.done = false
	for i := range c.list {
		c.list[i].Reset()
	}
}

type compose struct {
	list []Namer
	buf  []string
	sep  string
	done bool
}

// Compose joins the names of its parts with a dash. The last part moves the
// fastest: when it is exhausted, it is reset and the part before it advances.
func Compose(part ...Namer) Namer {
	c := compose{
		list: part,
		sep:  "-",
	}
	c.Reset()
	return &c
}

func (c *compose) Next() (string, error) {
	if len(c.list) == 0 || c.done {
		return "", io.EOF
	}
	str := strings.Join(c.buf, c.sep)
	return str, c.advance()
}

func (c *compose) advance() error {
	for i := len(c.list) - 1; i >= 0; i-- {
		str, err := c.list[i].Next()
		if err == nil {
			c.buf[i] = str
			return nil
		}
		if !errors.Is(err, io.EOF) {
			return err
		}
		c.list[i].Reset()
		str, err = c.list[i].Next()
		if err != nil {
			return err
		}
		c.buf[i] = str
	}
	c.done = true
	return nil
}

func (c *compose) Reset() {
	c.done = false
	c.buf = c.buf[:0]
	for i := range c.list {
		c.list[i].Reset()
		str, err := c.list[i].Next()
		if err != nil {
			c.done = true
		}
		c.buf = append(c.buf, str)
	}
}
