package environ

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

var ErrDefined = errors.New("undefined identifier")

// Environ is a lexical scope mapping identifiers to values of type T.
type Environ[T any] interface {
	Resolve(string) (T, error)
	Define(string, T)
	Names() []string
	Len() int
}

type Env[T any] struct {
	values map[string]T
	parent Environ[T]
}

func Empty[T any]() Environ[T] {
	return Enclosed[T](nil)
}

func Enclosed[T any](parent Environ[T]) Environ[T] {
	e := Env[T]{
		values: make(map[string]T),
		parent: parent,
	}
	return &e
}

// From creates a root scope holding a copy of the given values.
func From[T any](values map[string]T) Environ[T] {
	e := Env[T]{
		values: maps.Clone(values),
	}
	if e.values == nil {
		e.values = make(map[string]T)
	}
	return &e
}

func (e *Env[T]) Len() int {
	return len(e.values)
}

// Names returns the sorted identifiers defined in this scope only.
func (e *Env[T]) Names() []string {
	return slices.Sorted(maps.Keys(e.values))
}

func (e *Env[T]) Define(ident string, value T) {
	e.values[ident] = value
}

func (e *Env[T]) Resolve(ident string) (T, error) {
	value, ok := e.values[ident]
	if ok {
		return value, nil
	}
	if e.parent != nil {
		return e.parent.Resolve(ident)
	}
	var t T
	return t, fmt.Errorf("%s: %w", ident, ErrDefined)
}
