package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/midbel/angle/cmd/cli"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

var queryCmd = cli.Command{
	Name:    "query",
	Alias:   []string{"exec"},
	Summary: "evaluate an xpath expression against a document",
	Handler: &QueryCmd{},
}

type QueryCmd struct {
	Noout bool
	Text  bool
	Limit int
}

const queryInfo = "query took %s - %d nodes matching %q"

func (q *QueryCmd) Run(args []string) error {
	set := cli.NewFlagSet("query")
	set.IntVar(&q.Limit, "limit", 0, "limit number of results returned by query")
	set.BoolVar(&q.Noout, "q", false, "suppress output - default is to print the result nodes")
	set.BoolVar(&q.Text, "text", false, "print only value of node")
	if err := set.Parse(args); err != nil {
		return err
	}
	doc, err := parseDocument(set.Arg(1))
	if err != nil {
		return err
	}
	now := time.Now()
	query, err := xpath.Build(set.Arg(0))
	if err != nil {
		return err
	}
	value, err := query.Eval(doc, 1, 1)
	if err != nil {
		return err
	}
	elapsed := time.Since(now)

	nodes, ok := xpath.AsNodeSet(value)
	if !ok {
		if !q.Noout {
			fmt.Fprintln(os.Stdout, xpath.AsString(value))
		}
		return nil
	}
	if q.Limit > 0 && len(nodes) > q.Limit {
		nodes = nodes[:q.Limit]
	}
	if !q.Noout {
		if q.Text {
			printValues(os.Stdout, nodes)
		} else {
			printNodes(os.Stdout, nodes)
		}
	}
	fmt.Fprintf(os.Stderr, queryInfo, elapsed, len(nodes), set.Arg(0))
	fmt.Fprintln(os.Stderr)
	if len(nodes) == 0 {
		return errFail
	}
	return nil
}

func printValues(w io.Writer, nodes xpath.NodeSet) {
	for _, n := range nodes {
		fmt.Fprintln(w, n.Value())
	}
}

func printNodes(w io.Writer, nodes xpath.NodeSet) {
	for _, n := range nodes {
		fmt.Fprintln(w, xml.WriteNode(n))
	}
}
