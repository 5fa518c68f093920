package main

import (
	"github.com/midbel/angle/cmd/cli"
)

var formatCmd = cli.Command{
	Name:    "format",
	Alias:   []string{"fmt"},
	Summary: "rewrite a xml document",
	Handler: &FormatCmd{},
}

type FormatCmd struct {
	OutFile string
	WriterOptions
}

func (f *FormatCmd) Run(args []string) error {
	set := cli.NewFlagSet("format")
	set.BoolVar(&f.NoNamespace, "no-namespace", false, "don't write xml namespace into the output document")
	set.BoolVar(&f.NoProlog, "no-prolog", false, "don't write the xml prolog into the output document")
	set.BoolVar(&f.NoComment, "no-comment", false, "don't write the comment present in the input document")
	set.BoolVar(&f.Compact, "compact", false, "write compact output")
	set.StringVar(&f.OutFile, "o", "", "specify the path to the file where the document will be written")
	if err := set.Parse(args); err != nil {
		return err
	}

	doc, err := parseDocument(set.Arg(0))
	if err != nil {
		return err
	}
	return writeDocument(doc, f.OutFile, f.WriterOptions)
}
