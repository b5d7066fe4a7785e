// Command ssm2txt writes a plain-text rendering of a SISTEMA project file
// next to it, so that two revisions of a project can be compared with an
// ordinary diff tool.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/alexflint/go-arg"

	"ssm2txt/internal/convert"
	"ssm2txt/internal/output"
	"ssm2txt/internal/schema"
	"ssm2txt/internal/tree"
)

type args struct {
	Project string `arg:"positional,required" help:"SISTEMA project file (.ssm)"`
}

func (args) Description() string {
	return "Writes a text rendering of a SISTEMA project beside the project file.\n" +
		"The output has the same name with the extension .txt and is overwritten."
}

// errUsage marks a command line that could not be parsed.
var errUsage = errors.New("usage")

// dispatch parses argv and converts the named project. Help goes to stdout.
func dispatch(argv []string, stdout io.Writer) error {
	var a args
	p, err := arg.NewParser(arg.Config{Program: "ssm2txt", IgnoreEnv: true}, &a)
	if err != nil {
		return err
	}
	switch err := p.Parse(argv); {
	case errors.Is(err, arg.ErrHelp):
		p.WriteHelp(stdout)
		return nil
	case err != nil:
		var sb strings.Builder
		p.WriteUsage(&sb)
		return fmt.Errorf("%w: %v\n%s", errUsage, err, strings.TrimRight(sb.String(), "\n"))
	}

	out, err := convert.File(a.Project)
	if err != nil {
		return describe(a.Project, err)
	}
	log.Printf("%s -> %s", a.Project, out)
	return nil
}

// describe prefixes err with the kind of failure it reports.
func describe(path string, err error) error {
	var (
		pe *tree.ParseError
		ce *schema.Conflict
		we *output.WriteError
	)
	switch {
	case errors.Is(err, tree.ErrInputNotFound):
		var fe *os.PathError
		if errors.As(err, &fe) {
			return fmt.Errorf("%w: %s: %v", tree.ErrInputNotFound, path, fe.Err)
		}
		return fmt.Errorf("%w: %s", tree.ErrInputNotFound, path)
	case errors.As(err, &pe):
		return fmt.Errorf("parse error: %w", pe)
	case errors.As(err, &ce):
		return fmt.Errorf("schema conflict in %s: %w", path, ce)
	case errors.As(err, &we):
		return fmt.Errorf("output write error: %w", we)
	}
	return err
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("ssm2txt: ")
	if err := dispatch(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}
