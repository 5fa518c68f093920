package xslt

import (
	"bufio"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/midbel/angle/alpha"
	"github.com/midbel/angle/environ"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

type Output struct {
	Method     string
	Encoding   string
	Version    string
	Indent     bool
	OmitProlog bool
}

func defaultOutput() Output {
	return Output{
		Method:   "xml",
		Version:  xml.SupportedVersion,
		Encoding: xml.SupportedEncoding,
	}
}

// Template is a rule of the stylesheet. A template has a pattern, a name or
// both.
type Template struct {
	Name     string
	Match    string
	Mode     string
	Priority float64
	Params   []*Param
	Body     *TemplateNode

	patterns    []*xpath.Pattern
	hasPriority bool
	precedence  int
	position    int
}

// NewTemplate creates a template matching the nodes selected by pattern. Its
// priority is computed from the pattern unless SetPriority is called.
func NewTemplate(pattern string, namespaces environ.Environ[string]) (*Template, error) {
	list, err := xpath.CompilePattern(pattern, namespaces)
	if err != nil {
		return nil, err
	}
	tpl := Template{
		Match:    pattern,
		patterns: list,
	}
	return &tpl, nil
}

// NamedTemplate creates a template only reachable by its name.
func NamedTemplate(name string) *Template {
	return &Template{
		Name: name,
	}
}

func (t *Template) SetPriority(prio float64) {
	t.Priority = prio
	t.hasPriority = true
}

// Call runs the body of the template with ctx as context. The body sees the
// global variables, the parameters of the template and nothing else. A
// parameter missing from params takes its default value.
func (t *Template) Call(ctx Context, params map[string]xpath.Value) error {
	ctx = ctx.Template()
	for _, p := range t.Params {
		v, ok := params[p.Ident]
		if !ok {
			var err error
			if v, err = p.Eval(ctx); err != nil {
				return err
			}
		}
		ctx.define(p.Ident, v)
	}
	return t.Body.Apply(ctx)
}

func (t *Template) String() string {
	if t.Name != "" {
		return t.Name
	}
	if t.Mode != "" {
		return fmt.Sprintf("%s[%s]", t.Match, t.Mode)
	}
	return t.Match
}

type rule struct {
	*Template
	pattern  *xpath.Pattern
	priority float64
}

type global struct {
	*Param
	param      bool
	precedence int
}

// Stylesheet holds the compiled templates and the global declarations. It is
// never modified by a transformation and can be used by several goroutines
// at once.
type Stylesheet struct {
	Name   string
	Output Output

	named   map[string]*Template
	modes   map[string][]rule
	globals []*global
	count   int
}

func NewStylesheet(name string) *Stylesheet {
	return &Stylesheet{
		Name:   name,
		Output: defaultOutput(),
		named:  make(map[string]*Template),
		modes:  make(map[string][]rule),
	}
}

// AddTemplate registers tpl. Its rules are ordered by priority, then by
// import precedence, then by declaration order, the highest first.
func (s *Stylesheet) AddTemplate(tpl *Template) error {
	s.count++
	tpl.position = s.count
	if tpl.Name != "" {
		other, ok := s.named[tpl.Name]
		if ok && other.precedence == tpl.precedence {
			return fmt.Errorf("%s: template already defined", tpl.Name)
		}
		if !ok || other.precedence < tpl.precedence {
			s.named[tpl.Name] = tpl
		}
	}
	if len(tpl.patterns) == 0 {
		return nil
	}
	list := s.modes[tpl.Mode]
	for _, p := range tpl.patterns {
		r := rule{
			Template: tpl,
			pattern:  p,
			priority: p.Priority(),
		}
		if tpl.hasPriority {
			r.priority = tpl.Priority
		}
		list = append(list, r)
	}
	slices.SortStableFunc(list, compareRules)
	s.modes[tpl.Mode] = list
	return nil
}

func compareRules(a, b rule) int {
	if c := cmp.Compare(b.priority, a.priority); c != 0 {
		return c
	}
	if c := cmp.Compare(b.precedence, a.precedence); c != 0 {
		return c
	}
	return cmp.Compare(b.position, a.position)
}

// AddParam declares a global parameter. Its value can be replaced when the
// transformation starts.
func (s *Stylesheet) AddParam(p *Param) error {
	return s.addGlobal(p, true, 0)
}

// AddVariable declares a global variable.
func (s *Stylesheet) AddVariable(p *Param) error {
	return s.addGlobal(p, false, 0)
}

func (s *Stylesheet) addGlobal(p *Param, param bool, precedence int) error {
	g := global{
		Param:      p,
		param:      param,
		precedence: precedence,
	}
	ix := slices.IndexFunc(s.globals, func(other *global) bool {
		return other.Ident == p.Ident
	})
	if ix < 0 {
		s.globals = append(s.globals, &g)
		return nil
	}
	switch other := s.globals[ix]; {
	case other.precedence == precedence:
		return fmt.Errorf("%s: global variable already defined", p.Ident)
	case other.precedence < precedence:
		s.globals[ix] = &g
	}
	return nil
}

// Modes returns the names of the modes having at least one template.
func (s *Stylesheet) Modes() []string {
	var list []string
	for m := range s.modes {
		list = append(list, m)
	}
	slices.Sort(list)
	return list
}

// Find returns the template with the given name.
func (s *Stylesheet) Find(name string) (*Template, error) {
	tpl, ok := s.named[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w template", name, ErrUndefined)
	}
	return tpl, nil
}

// Match returns the template to apply to node in mode. ErrNoMatch is returned
// when no template matches and the built-in rules apply.
func (s *Stylesheet) Match(node xml.Node, mode string) (*Template, error) {
	run := newRun(context.Background(), defaultConfig())
	tpl, err := s.match(run, node, mode)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, fmt.Errorf("%s: %w", nodeName(node), ErrNoMatch)
	}
	return tpl, nil
}

func (s *Stylesheet) match(run *runState, node xml.Node, mode string) (*Template, error) {
	ctx := xpath.Context{
		Node:      node,
		Position:  1,
		Size:      1,
		Current:   node,
		Variables: run.globals,
		Functions: run.functions,
	}
	for _, r := range s.modes[mode] {
		ok, err := r.pattern.Match(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.pattern, err)
		}
		if ok {
			return r.Template, nil
		}
	}
	return nil, nil
}

// applyTemplates processes nodes in the mode of ctx. Each node is given to
// the template resolved for it at this moment or to the built-in rule.
func (s *Stylesheet) applyTemplates(ctx Context, nodes []xml.Node, params map[string]xpath.Value) error {
	for i, n := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		sub := ctx.WithNode(n, i+1, len(nodes))
		tpl, err := s.match(ctx.run, n, ctx.Mode)
		if err != nil {
			return err
		}
		if tpl != nil {
			err = tpl.Call(sub, params)
		} else {
			sub.Depth++
			if sub.Depth > sub.maxDepth() {
				return fmt.Errorf("%s: %w (%d)", nodeName(n), ErrDepth, sub.maxDepth())
			}
			err = builtinRule(sub)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Transform applies the stylesheet to doc and returns the result tree. When
// an error occurs, the result built so far is returned with it.
func (s *Stylesheet) Transform(ctx context.Context, doc xml.Node, options ...Option) (*xml.Document, error) {
	cfg := defaultConfig()
	for _, o := range options {
		o(&cfg)
	}
	var (
		run    = newRun(ctx, cfg)
		result = xml.EmptyDocument()
		root   = Context{
			Stylesheet:  s,
			Mode:        cfg.mode,
			ContextNode: doc,
			Position:    1,
			Size:        1,
			Parent:      result,
			Variables:   run.globals,
			run:         run,
		}
	)
	result.Encoding = s.Output.Encoding
	run.logger.Debug("transform", "stylesheet", s.Name, "mode", cfg.mode)
	if err := s.defineGlobals(root, cfg.params); err != nil {
		return result, s.transformError(err)
	}
	if err := s.applyTemplates(root, []xml.Node{doc}, nil); err != nil {
		return result, s.transformError(err)
	}
	return result, nil
}

// Generate transforms doc and writes the result to w as the output
// declaration of the stylesheet says.
func (s *Stylesheet) Generate(ctx context.Context, w io.Writer, doc xml.Node, options ...Option) error {
	result, err := s.Transform(ctx, doc, options...)
	if err != nil {
		return err
	}
	return s.Write(w, result)
}

func (s *Stylesheet) Write(w io.Writer, result *xml.Document) error {
	if strings.EqualFold(s.Output.Method, "text") {
		ws := bufio.NewWriter(w)
		ws.WriteString(result.Value())
		return ws.Flush()
	}
	writer := xml.NewWriter(w)
	if !s.Output.Indent {
		writer.WriterOptions |= xml.OptionCompact
	}
	if s.Output.OmitProlog {
		writer.WriterOptions |= xml.OptionNoProlog
	}
	return writer.Write(result)
}

func (s *Stylesheet) transformError(err error) error {
	var te *TransformError
	if errors.As(err, &te) {
		return err
	}
	return &TransformError{
		Stylesheet: s.Name,
		Cause:      err,
	}
}

// defineGlobals evaluates the global variables and parameters. A global can
// refer to globals declared after it.
func (s *Stylesheet) defineGlobals(ctx Context, params map[string]xpath.Value) error {
	var pending []*global
	for _, g := range s.globals {
		if v, ok := params[g.Ident]; ok && g.param {
			ctx.define(g.Ident, v)
			continue
		}
		pending = append(pending, g)
	}
	for len(pending) > 0 {
		var (
			rest []*global
			last error
		)
		for _, g := range pending {
			v, err := g.Eval(ctx)
			if err != nil {
				if !errors.Is(err, xpath.ErrUndefined) {
					return errorWithContext(g.Ident, err)
				}
				rest, last = append(rest, g), err
				continue
			}
			ctx.define(g.Ident, v)
		}
		if len(rest) == len(pending) {
			return errorWithContext(rest[0].Ident, last)
		}
		pending = rest
	}
	return nil
}

type config struct {
	mode     string
	params   map[string]xpath.Value
	sink     Sink
	tracer   Tracer
	logger   *slog.Logger
	maxDepth int
}

func defaultConfig() config {
	return config{
		params:   make(map[string]xpath.Value),
		sink:     TreeSink(),
		tracer:   NoopTracer(),
		logger:   slog.New(slog.DiscardHandler),
		maxDepth: MaxDepth,
	}
}

type Option func(*config)

// WithParam gives a string value to a global parameter.
func WithParam(name, value string) Option {
	return WithValue(name, xpath.String(value))
}

func WithValue(name string, value xpath.Value) Option {
	return func(c *config) {
		c.params[name] = value
	}
}

// WithMode sets the mode in which the document is processed first.
func WithMode(mode string) Option {
	return func(c *config) {
		c.mode = mode
	}
}

func WithTracer(tracer Tracer) Option {
	return func(c *config) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithSink(sink Sink) Option {
	return func(c *config) {
		if sink != nil {
			c.sink = sink
		}
	}
}

func WithMaxDepth(depth int) Option {
	return func(c *config) {
		if depth > 0 {
			c.maxDepth = depth
		}
	}
}

func newRun(ctx context.Context, cfg config) *runState {
	run := runState{
		ctx:      ctx,
		sink:     cfg.sink,
		tracer:   cfg.tracer,
		logger:   cfg.logger,
		maxDepth: cfg.maxDepth,
		globals:  environ.Empty[xpath.Value](),
		ids:      make(map[xml.Node]string),
		namer:    alpha.Compose(alpha.NewLowerString(3), alpha.NewNumberString(2)),
	}
	run.functions = run.library()
	return &run
}
