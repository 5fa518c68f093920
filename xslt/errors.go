package xslt

import (
	"errors"
	"fmt"
)

var (
	ErrTerminate   = errors.New("terminate")
	ErrDepth       = errors.New("maximum depth reached")
	ErrNoMatch     = errors.New("no template match")
	ErrMissing     = errors.New("missing attribute")
	ErrUnsupported = errors.New("unsupported instruction")
	ErrUndefined   = errors.New("undefined")
)

// TransformError is the only error returned by a transformation. The cause
// is kept as raised by the expression evaluator, the sink or an instruction.
type TransformError struct {
	Stylesheet string
	Cause      error
}

func (e *TransformError) Error() string {
	if e.Stylesheet == "" {
		return fmt.Sprintf("transform: %s", e.Cause)
	}
	return fmt.Sprintf("transform %s: %s", e.Stylesheet, e.Cause)
}

func (e *TransformError) Unwrap() error {
	return e.Cause
}

type CompileError struct {
	Element string
	Cause   error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: %s", e.Element, e.Cause)
}

func (e *CompileError) Unwrap() error {
	return e.Cause
}

func errorWithContext(ctx string, err error) error {
	return fmt.Errorf("%s: %w", ctx, err)
}
