package tree

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/ianaindex"
)

// ErrInputNotFound reports that the input path does not resolve to a
// readable file.
var ErrInputNotFound = errors.New("input not found")

// ParseError reports input that is not well-formed XML. Line and Column are
// 1-based and zero when the parser could not supply a position.
type ParseError struct {
	Path   string
	Line   int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("%s:%d:%d: %v", e.Path, e.Line, e.Column, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Load reads the file at path and parses it into a node tree.
func Load(path string) (*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInputNotFound, err)
	}
	return Parse(bytes.NewReader(data), path)
}

// Parse reads one XML document from r. name is only used in error messages.
//
// Element nesting is checked here rather than by encoding/xml so that tag
// prefixes reach the tree untranslated.
func Parse(r io.Reader, name string) (*Node, error) {
	br := bufio.NewReader(r)
	if head, _ := br.Peek(len(utf8BOM)); bytes.Equal(head, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, &ParseError{Path: name, Err: err}
		}
	}

	d := xml.NewDecoder(br)
	d.CharsetReader = charsetReader

	fail := func(format string, args ...any) error {
		line, col := d.InputPos()
		return &ParseError{Path: name, Line: line, Column: col, Err: errors.Errorf(format, args...)}
	}

	var (
		root  *Node
		stack []*Node
	)
	for {
		tok, err := d.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			line, col := d.InputPos()
			var syn *xml.SyntaxError
			if errors.As(err, &syn) {
				line, col = syn.Line, 0
				err = errors.New(syn.Msg)
			}
			return nil, &ParseError{Path: name, Line: line, Column: col, Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 && root != nil {
				return nil, fail("element <%s> after the root element", qualified(t.Name))
			}
			n := &Node{Tag: qualified(t.Name)}
			for _, a := range t.Attr {
				key := qualified(a.Name)
				if _, dup := n.Get(key); dup {
					return nil, fail("duplicate attribute %q on <%s>", key, n.Tag)
				}
				n.Attrs = append(n.Attrs, Attr{Name: key, Value: a.Value})
			}
			if len(stack) == 0 {
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)

		case xml.EndElement:
			tag := qualified(t.Name)
			if len(stack) == 0 {
				return nil, fail("unexpected end element </%s>", tag)
			}
			if top := stack[len(stack)-1]; top.Tag != tag {
				return nil, fail("element <%s> closed by </%s>", top.Tag, tag)
			}
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			} else if len(bytes.TrimSpace(t)) > 0 {
				return nil, fail("character data outside the root element")
			}
		}
	}

	if len(stack) > 0 {
		return nil, fail("unexpected end of input: element <%s> is not closed", stack[len(stack)-1].Tag)
	}
	if root == nil {
		return nil, fail("no root element")
	}
	return root, nil
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// charsetReader decodes documents whose prolog declares a non-UTF-8
// encoding, e.g. windows-1252 or ISO-8859-1.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(strings.TrimSpace(label))
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %q", label)
	}
	if enc == nil {
		return nil, errors.Errorf("unsupported encoding %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}
