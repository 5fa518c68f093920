package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/midbel/distance"
)

var ErrUsage = errors.New("missing command")

type SuggestionError struct {
	Name   string
	Others []string
}

func (e SuggestionError) Error() string {
	return fmt.Sprintf("%s: unknown subcommand", e.Name)
}

type Command struct {
	Name    string
	Alias   []string
	Summary string
	Handler
}

type Handler interface {
	Run([]string) error
}

type HandlerFunc func([]string) error

func (f HandlerFunc) Run(args []string) error {
	return f(args)
}

type CommandNode struct {
	Name     string
	Summary  string
	Children map[string]*CommandNode
	Handler
}

func createNode(name string) *CommandNode {
	return &CommandNode{
		Name:     name,
		Children: make(map[string]*CommandNode),
	}
}

type CommandTrie struct {
	root *CommandNode
}

func New() *CommandTrie {
	trie := CommandTrie{
		root: createNode(""),
	}
	return &trie
}

// Add registers cmd under its name and each of its aliases.
func (t *CommandTrie) Add(cmd Command) error {
	for _, n := range append([]string{cmd.Name}, cmd.Alias...) {
		if err := t.register([]string{n}, cmd.Summary, cmd.Handler); err != nil {
			return err
		}
	}
	return nil
}

func (t *CommandTrie) Register(paths []string, handler Handler) error {
	return t.register(paths, "", handler)
}

func (t *CommandTrie) register(paths []string, summary string, handler Handler) error {
	if len(paths) == 0 {
		return fmt.Errorf("empty command path")
	}
	node := t.root
	for _, name := range paths {
		if node.Children[name] == nil {
			node.Children[name] = createNode(name)
		}
		node = node.Children[name]
	}
	if node.Handler != nil {
		return fmt.Errorf("%s: command already registered", node.Name)
	}
	node.Handler = handler
	node.Summary = summary
	return nil
}

func (t *CommandTrie) Execute(args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}
	var (
		node = t.root
		ix   int
	)
	for _, name := range args {
		child := node.Children[name]
		if child == nil {
			break
		}
		node = child
		ix++
	}
	if node.Handler == nil {
		if ix >= len(args) {
			return ErrUsage
		}
		list := slices.Collect(maps.Keys(node.Children))
		slices.Sort(list)
		return t.suggest(args[ix], list)
	}
	return node.Handler.Run(args[ix:])
}

// Help writes the top level commands with their summary.
func (t *CommandTrie) Help(w io.Writer) {
	names := slices.Sorted(maps.Keys(t.root.Children))
	for _, n := range names {
		fmt.Fprintf(w, "  %-12s %s", n, t.root.Children[n].Summary)
		fmt.Fprintln(w)
	}
}

func (t *CommandTrie) suggest(name string, others []string) error {
	return SuggestionError{
		Name:   name,
		Others: distance.Levenshtein(name, others),
	}
}

func NewFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}
