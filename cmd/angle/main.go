package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/midbel/angle/cmd/cli"
)

var errFail = errors.New("fail")

const summary = "angle applies xslt stylesheets to xml documents"

func main() {
	root := prepare()
	args := os.Args[1:]
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		usage(root)
		os.Exit(2)
	}
	if err := root.Execute(args); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			usage(root)
			os.Exit(2)
		}
		if !errors.Is(err, errFail) {
			cli.PrintError(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func usage(root *cli.CommandTrie) {
	fmt.Fprintln(os.Stderr, summary)
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "commands:")
	root.Help(os.Stderr)
}

func prepare() *cli.CommandTrie {
	root := cli.New()
	root.Add(transformCmd)
	root.Add(queryCmd)
	root.Add(formatCmd)
	root.Add(serveCmd)
	return root
}
