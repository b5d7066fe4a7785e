// Package convert runs one conversion: project file in, text file out.
package convert

import (
	"fmt"
	"io"

	"ssm2txt/internal/output"
	"ssm2txt/internal/render"
	"ssm2txt/internal/schema"
	"ssm2txt/internal/ssm"
	"ssm2txt/internal/tree"
)

// Converter converts project files with one rule table.
type Converter struct {
	table    *schema.Table
	renderer *render.Renderer
}

// New returns a Converter for table.
func New(table *schema.Table) *Converter {
	return &Converter{table: table, renderer: render.New(table)}
}

// File converts the project at path with the built-in rules and returns the
// path of the written text file.
func File(path string) (string, error) {
	return New(schema.Default()).Convert(path)
}

// Convert writes the text rendering of the project at path next to it and
// returns the output path.
//
// On failure the output path holds no file, not even one from an earlier
// run. Errors are tree.ErrInputNotFound, *tree.ParseError, *schema.Conflict
// or *output.WriteError, wrapped with context.
func (c *Converter) Convert(path string) (string, error) {
	out := output.PathFor(path)
	if err := c.convert(path, out); err != nil {
		if derr := output.Discard(out); derr != nil {
			return "", fmt.Errorf("%w (%v)", err, derr)
		}
		return "", err
	}
	return out, nil
}

func (c *Converter) convert(in, out string) error {
	root, err := tree.Load(in)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	root = ssm.Adapt(root, c.table.Layout)

	err = output.Write(out, func(w io.Writer) error {
		_, err := c.renderer.Stream(w, root)
		return err
	})
	if err != nil {
		return fmt.Errorf("render %s: %w", in, err)
	}
	return nil
}
