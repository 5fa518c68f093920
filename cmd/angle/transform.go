package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"

	"github.com/midbel/angle/cmd/cli"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xslt"
)

var transformCmd = cli.Command{
	Name:    "transform",
	Alias:   []string{"xslt"},
	Summary: "apply transformation defined in xslt to xml document",
	Handler: &TransformCmd{},
}

type TransformCmd struct {
	Mode     string
	Config   string
	File     string
	Trace    bool
	Quiet    bool
	Progress bool
	Indent   bool
	MaxDepth int
	Params   []string
	WriterOptions
}

func (c *TransformCmd) Run(args []string) error {
	set := cli.NewFlagSet("transform")
	set.StringVar(&c.Mode, "m", "", "initial mode")
	set.StringVar(&c.File, "o", "", "output file")
	set.StringVar(&c.Config, "c", "", "configuration file giving default mode and parameters")
	set.BoolVar(&c.Trace, "trace", false, "trace the instructions executed")
	set.BoolVar(&c.Quiet, "q", false, "discard the result")
	set.BoolVar(&c.Progress, "progress", false, "show a spinner while transforming")
	set.IntVar(&c.MaxDepth, "max-depth", 0, "maximum nesting of templates")
	set.BoolVar(&c.Indent, "indent", false, "indent the output regardless of the stylesheet")
	set.BoolVar(&c.NoProlog, "no-prolog", false, "don't write the xml prolog")
	set.Func("p", "stylesheet parameter given as name=value", func(str string) error {
		if _, _, err := splitParam(str); err != nil {
			return err
		}
		c.Params = append(c.Params, str)
		return nil
	})
	if err := set.Parse(args); err != nil {
		return err
	}

	options, err := c.options()
	if err != nil {
		return err
	}
	sheet, err := xslt.Load(set.Arg(0))
	if err != nil {
		return err
	}
	if c.Indent {
		sheet.Output.Indent = true
	}
	if c.NoProlog {
		sheet.Output.OmitProlog = true
	}
	doc, err := parseDocument(set.Arg(1))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var (
		logger = newLogger(os.Stderr, logLevel(c.Trace)).With("run", uuid.NewString())
		now    = time.Now()
	)
	options = append(options, xslt.WithLogger(logger))
	if c.Trace {
		options = append(options, xslt.WithTracer(xslt.LogTracer(logger)))
	}
	var result *xml.Document
	transform := func() error {
		result, err = sheet.Transform(ctx, doc, options...)
		return err
	}
	if c.Progress && !c.Trace {
		spin := cli.NewSpinner(os.Stderr)
		spin.SetMessage("transforming " + set.Arg(1))
		err = spin.Run(transform)
	} else {
		err = transform()
	}
	if err != nil {
		logger.Error("transform failed", "stylesheet", sheet.Name, "elapsed", time.Since(now), "error", err)
		return err
	}
	logger.Debug("transform done", "stylesheet", sheet.Name, "elapsed", time.Since(now))

	if c.Quiet {
		return sheet.Write(io.Discard, result)
	}
	return withOutput(c.File, func(w io.Writer) error {
		return sheet.Write(w, result)
	})
}

// options merges the configuration file with the command line. The command
// line wins.
func (c *TransformCmd) options() ([]xslt.Option, error) {
	var options []xslt.Option
	if c.Config != "" {
		cfg, err := loadConfig(c.Config)
		if err != nil {
			return nil, err
		}
		for name, value := range cfg.Params {
			options = append(options, xslt.WithParam(name, value))
		}
		if c.Mode == "" {
			c.Mode = cfg.Mode
		}
		if c.MaxDepth == 0 {
			c.MaxDepth = cfg.MaxDepth
		}
		c.Trace = c.Trace || cfg.Trace
	}
	for _, p := range c.Params {
		name, value, err := splitParam(p)
		if err != nil {
			return nil, err
		}
		options = append(options, xslt.WithParam(name, value))
	}
	options = append(options, xslt.WithMode(c.Mode), xslt.WithMaxDepth(c.MaxDepth))
	return options, nil
}
