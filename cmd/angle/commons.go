package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/midbel/angle/xml"
)

var ErrDocument = errors.New("bad xml document")

type WriterOptions struct {
	NoNamespace bool
	NoProlog    bool
	NoComment   bool
	Compact     bool
}

func (o WriterOptions) apply(ws *xml.Writer) {
	if o.NoNamespace {
		ws.WriterOptions |= xml.OptionNoNamespace
	}
	if o.NoComment {
		ws.WriterOptions |= xml.OptionNoComment
	}
	if o.Compact {
		ws.WriterOptions |= xml.OptionCompact
	}
	if o.NoProlog {
		ws.WriterOptions |= xml.OptionNoProlog
	}
}

func parseDocument(file string) (*xml.Document, error) {
	if file == "" {
		return nil, fmt.Errorf("%w: no file given", ErrDocument)
	}
	r, err := openFile(file)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	doc, err := xml.ParseReader(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return doc, nil
}

func writeDocument(doc *xml.Document, file string, options WriterOptions) error {
	if doc == nil {
		return fmt.Errorf("no document to be written")
	}
	return withOutput(file, func(w io.Writer) error {
		ws := xml.NewWriter(w)
		options.apply(ws)
		return ws.Write(doc)
	})
}

// withOutput calls fn with the file to create or with stdout when file is
// empty.
func withOutput(file string, fn func(io.Writer) error) error {
	if file == "" || file == "-" {
		return fn(os.Stdout)
	}
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func openFile(file string) (io.ReadCloser, error) {
	if file == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	u, err := url.Parse(file)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http", "https":
		req, err := http.NewRequest(http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("accept", "text/xml")
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		if res.StatusCode != http.StatusOK {
			res.Body.Close()
			return nil, fmt.Errorf("%s: fail to retrieve remote file (%s)", file, res.Status)
		}
		return res.Body, nil
	default:
		return os.Open(file)
	}
}

// splitParam splits a name=value pair given on the command line.
func splitParam(str string) (string, string, error) {
	name, value, ok := strings.Cut(str, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("%s: parameter should be given as name=value", str)
	}
	return name, value, nil
}
