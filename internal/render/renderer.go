// Package render turns a project tree into indented text lines.
//
// Layout of one recognised element at depth d (indent unit "  "):
//
//	<title>                      d
//	  <field>: <value>           d+1
//	  <section title>            d+1
//	    <field>: <value>         d+2
//	  Other attributes           d+1
//	    <attr>: <value>          d+2
//	  text: <content>            d+1
//	  <child header>             d+offset
//
// Elements without a rule get the fallback layout: the tag, each attribute as
// "<name>: <value>" sorted by name, the text line, then every child one level
// deeper. Lines are produced in this order and never reordered afterwards.
package render

import (
	"io"
	"iter"
	"maps"
	"slices"
	"strings"

	"github.com/samber/lo"

	"ssm2txt/internal/schema"
	"ssm2txt/internal/tree"
)

// OtherAttributes heads the attributes a rule does not declare.
const OtherAttributes = "Other attributes"

// Renderer renders node trees with one rule table. It holds no per-call
// state, so one Renderer may render any number of trees.
type Renderer struct {
	table *schema.Table
}

// New returns a Renderer for table.
func New(table *schema.Table) *Renderer {
	return &Renderer{table: table}
}

type frame struct {
	node  *tree.Node
	depth int
}

// Lines returns the rendered lines of root in output order, without line
// terminators. The sequence stops after the first error, which is a
// *schema.Conflict. It may be ranged over any number of times.
func (r *Renderer) Lines(root *tree.Node) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stack := []frame{{node: root}}
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			rule, err := r.table.Resolve(f.node)
			if err != nil {
				yield("", err)
				return
			}

			var b block
			b.indent = r.table.Indent
			offset := 1
			if rule != nil {
				if err := r.element(&b, f, rule); err != nil {
					yield("", err)
					return
				}
				offset = rule.Offset()
			} else {
				r.fallback(&b, f)
			}
			for _, line := range b.lines {
				if !yield(line, nil) {
					return
				}
			}

			children := f.node.Children
			if rule != nil {
				children = lo.Reject(children, func(c *tree.Node, _ int) bool {
					return consumed(rule, c)
				})
			}
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, frame{node: children[i], depth: f.depth + offset})
			}
		}
	}
}

// Render collects all lines of root.
func (r *Renderer) Render(root *tree.Node) ([]string, error) {
	var out []string
	for line, err := range r.Lines(root) {
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

// Stream writes the lines of root to w, each terminated by "\n".
func (r *Renderer) Stream(w io.Writer, root *tree.Node) (int64, error) {
	var n int64
	for line, err := range r.Lines(root) {
		if err != nil {
			return n, err
		}
		m, err := io.WriteString(w, line+"\n")
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Element layouts
// ---------------------------------------------------------------------------

func (r *Renderer) element(b *block, f frame, rule *schema.Rule) error {
	n, d := f.node, f.depth

	head, err := r.header(n, rule)
	if err != nil {
		return err
	}
	b.add(d, head)

	if err := r.fields(b, d+1, n, rule.Fields); err != nil {
		return err
	}
	for _, s := range rule.Sections {
		b.add(d+1, s.Title)
		if err := r.fields(b, d+2, n, s.Fields); err != nil {
			return err
		}
	}

	extras := lo.Filter(n.Attrs, func(a tree.Attr, _ int) bool {
		return !rule.Declares(a.Name)
	})
	if len(extras) > 0 {
		b.add(d+1, OtherAttributes)
		r.attrs(b, d+2, extras)
	}
	b.text(d+1, n.Text)
	return nil
}

func (r *Renderer) fallback(b *block, f frame) {
	b.add(f.depth, f.node.Tag)
	r.attrs(b, f.depth+1, f.node.Attrs)
	b.text(f.depth+1, f.node.Text)
}

func (r *Renderer) header(n *tree.Node, rule *schema.Rule) (string, error) {
	title := rule.Title
	if rule.Heading == nil {
		if title == "" {
			return n.Tag, nil
		}
		return title, nil
	}
	v, ok, err := r.value(n, rule.Heading)
	switch {
	case err != nil:
		return "", err
	case !ok && title == "":
		return n.Tag, nil
	case !ok:
		return title, nil
	case title == "":
		return v, nil
	}
	return title + ": " + v, nil
}

func (r *Renderer) fields(b *block, depth int, n *tree.Node, fields []schema.Field) error {
	for i := range fields {
		f := &fields[i]
		v, ok, err := r.value(n, f)
		if err != nil {
			return err
		}
		if !ok {
			v = r.table.Placeholder
		}
		b.add(depth, f.Label()+": "+v)
	}
	return nil
}

// attrs renders attributes sorted by name, values through the number policy.
func (r *Renderer) attrs(b *block, depth int, attrs []tree.Attr) {
	sorted := slices.SortedFunc(slices.Values(attrs), func(x, y tree.Attr) int {
		return strings.Compare(x.Name, y.Name)
	})
	for _, a := range sorted {
		b.add(depth, a.Name+": "+Number(a.Value, r.table.Precision))
	}
}

// value reads and formats the source of f. ok is false when the source is
// absent from n.
func (r *Renderer) value(n *tree.Node, f *schema.Field) (string, bool, error) {
	var items []string
	if f.Attr != "" {
		raw, ok := n.Get(f.Attr)
		if !ok {
			return "", false, nil
		}
		items = []string{raw}
	} else {
		for _, c := range n.ChildrenByTag(f.Child) {
			if isLeaf(c) {
				items = append(items, strings.TrimSpace(c.Text))
			}
		}
		if len(items) == 0 {
			return "", false, nil
		}
	}

	steps := f.Format
	if f.Enum != "" {
		m := r.table.Map(f.Enum)
		for i, raw := range items {
			mapped, ok := m[raw]
			if !ok {
				return "", false, &schema.Conflict{
					Tag:   n.Tag,
					Attr:  f.Source(),
					Value: raw,
					Valid: slices.Sorted(maps.Keys(m)),
				}
			}
			items[i] = mapped
		}
	} else if len(steps) == 0 {
		steps = defaultFormat
	}

	items = r.apply(items, steps)
	return strings.Join(items, "\n"), true, nil
}

func isLeaf(n *tree.Node) bool {
	return len(n.Attrs) == 0 && len(n.Children) == 0
}

// consumed reports whether child was rendered as a Child field of rule.
func consumed(rule *schema.Rule, child *tree.Node) bool {
	return rule.Consumes(child.Tag) && isLeaf(child)
}

// ---------------------------------------------------------------------------
// Line building
// ---------------------------------------------------------------------------

// block accumulates the lines of one element.
type block struct {
	indent string
	lines  []string
}

// add appends s at depth. Every line break in s starts a continuation line
// one level deeper; trailing whitespace is trimmed from each line.
func (b *block) add(depth int, s string) {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	for i, part := range strings.Split(s, "\n") {
		d := depth
		if i > 0 {
			d++
		}
		line := strings.Repeat(b.indent, d) + part
		b.lines = append(b.lines, strings.TrimRight(line, " \t"))
	}
}

// text adds the "text:" line when s holds more than formatting whitespace.
func (b *block) text(depth int, s string) {
	if s = strings.TrimSpace(s); s != "" {
		b.add(depth, "text: "+s)
	}
}
