package xslt

import (
	"io"
	"log/slog"
	"os"

	"github.com/midbel/angle/xml"
)

type Tracer interface {
	Enter(Context, Instruction)
	Leave(Context, Instruction)
	Error(Context, Instruction, error)
}

func NoopTracer() Tracer {
	return discardTracer{}
}

type discardTracer struct{}

func (_ discardTracer) Enter(_ Context, _ Instruction) {}

func (_ discardTracer) Leave(_ Context, _ Instruction) {}

func (_ discardTracer) Error(_ Context, _ Instruction, _ error) {}

// MultiTracer forwards every event to each of the given tracers in order.
func MultiTracer(list ...Tracer) Tracer {
	return multiTracer(list)
}

type multiTracer []Tracer

func (m multiTracer) Enter(ctx Context, i Instruction) {
	for _, t := range m {
		t.Enter(ctx, i)
	}
}

func (m multiTracer) Leave(ctx Context, i Instruction) {
	for _, t := range m {
		t.Leave(ctx, i)
	}
}

func (m multiTracer) Error(ctx Context, i Instruction, err error) {
	for _, t := range m {
		t.Error(ctx, i, err)
	}
}

type logTracer struct {
	logger *slog.Logger
}

func LogTracer(logger *slog.Logger) Tracer {
	return logTracer{
		logger: logger,
	}
}

func Stdout() Tracer {
	return LogTracer(stdioLogger(os.Stdout))
}

func Stderr() Tracer {
	return LogTracer(stdioLogger(os.Stderr))
}

func stdioLogger(w io.Writer) *slog.Logger {
	opts := slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	return slog.New(slog.NewTextHandler(w, &opts))
}

func (t logTracer) Enter(ctx Context, i Instruction) {
	args := []any{
		"instruction",
		i.Name(),
		"node",
		nodeName(ctx.ContextNode),
		"position",
		ctx.Position,
		"depth",
		ctx.Depth,
	}
	t.logger.Debug("start instruction", args...)
}

func (t logTracer) Leave(ctx Context, i Instruction) {
	args := []any{
		"instruction",
		i.Name(),
		"node",
		nodeName(ctx.ContextNode),
		"depth",
		ctx.Depth,
	}
	t.logger.Debug("done instruction", args...)
}

func (t logTracer) Error(ctx Context, i Instruction, err error) {
	t.logger.Error("error while processing instruction", "instruction", i.Name(), "node", nodeName(ctx.ContextNode), "depth", ctx.Depth, "err", err.Error())
}

func nodeName(node xml.Node) string {
	if node == nil {
		return ""
	}
	switch node.Type() {
	case xml.TypeElement, xml.TypeAttribute, xml.TypeInstruction:
		return node.QualifiedName()
	default:
		return "#" + node.Type().String()
	}
}
