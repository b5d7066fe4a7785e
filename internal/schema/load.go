package schema

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"ssm2txt/internal/tree"
)

//go:embed rules.yaml
var rulesYAML []byte

var defaultTable = sync.OnceValues(func() (*Table, error) {
	return Parse(rulesYAML)
})

// Default returns the built-in rule table. The table is parsed once and
// shared; it panics if the embedded rules.yaml is invalid.
func Default() *Table {
	t, err := defaultTable()
	if err != nil {
		panic(fmt.Sprintf("schema: embedded rules.yaml: %v", err))
	}
	return t
}

// Load reads and validates a rule table from r.
func Load(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("schema: read: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML rule table. Unknown keys are rejected.
func Parse(data []byte) (*Table, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var t Table
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("schema: unmarshal: %w", err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Resolve returns the rule for n, or nil when no rule matches its tag and the
// node is left to the generic fallback. A discriminant attribute holding a
// value outside every declared set is a *Conflict.
func (t *Table) Resolve(n *tree.Node) (*Rule, error) {
	candidates := t.byTag[n.Tag]
	if len(candidates) == 0 {
		return nil, nil
	}

	var plain *Rule
	var disc string
	for _, r := range candidates {
		if r.When == nil {
			plain = r
			continue
		}
		disc = r.When.Attr
	}
	if disc == "" {
		return plain, nil
	}

	v, ok := n.Get(disc)
	if !ok {
		return plain, nil
	}
	var valid []string
	for _, r := range candidates {
		if r.When == nil {
			continue
		}
		if slices.Contains(r.When.In, v) {
			return r, nil
		}
		valid = append(valid, r.When.In...)
	}
	slices.Sort(valid)
	return nil, &Conflict{Tag: n.Tag, Attr: disc, Value: v, Valid: valid}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

func (t *Table) validate() error {
	if t.Version != 1 {
		return fmt.Errorf("schema: unsupported version %d", t.Version)
	}
	if t.Indent == "" || strings.TrimSpace(t.Indent) != "" {
		return fmt.Errorf("schema: indent must be non-empty whitespace, got %q", t.Indent)
	}
	if t.Placeholder == "" {
		return fmt.Errorf("schema: placeholder is required")
	}
	if t.Precision < 0 || t.Precision > 15 {
		return fmt.Errorf("schema: precision %d out of range 0..15", t.Precision)
	}

	names := lo.Map(t.Rules, func(r Rule, _ int) string { return r.Name })
	if dups := lo.FindDuplicates(names); len(dups) > 0 {
		return fmt.Errorf("schema: duplicate rule names %v", dups)
	}

	t.byTag = make(map[string][]*Rule)
	for i := range t.Rules {
		r := &t.Rules[i]
		if err := t.validateRule(r); err != nil {
			return fmt.Errorf("schema: rule %q: %w", r.Name, err)
		}
		t.byTag[r.Tag] = append(t.byTag[r.Tag], r)
	}
	for tag, rules := range t.byTag {
		if err := checkDiscriminants(rules); err != nil {
			return fmt.Errorf("schema: tag %q: %w", tag, err)
		}
	}
	return t.validateLayout()
}

func (t *Table) validateRule(r *Rule) error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.Tag == "" {
		return fmt.Errorf("tag is required")
	}
	if r.ChildOffset != nil && *r.ChildOffset < 0 {
		return fmt.Errorf("child_offset must not be negative")
	}
	if r.When != nil {
		if r.When.Attr == "" || len(r.When.In) == 0 {
			return fmt.Errorf("discriminant needs an attribute and at least one value")
		}
	}

	r.declared = make(map[string]bool)
	r.consumed = make(map[string]bool)

	fields := r.allFields()
	if r.Heading != nil {
		fields = append(fields, *r.Heading)
	}
	for _, f := range fields {
		if err := t.validateField(f); err != nil {
			return err
		}
		if f.Attr != "" {
			r.declared[f.Attr] = true
		}
		if f.Child != "" {
			r.consumed[f.Child] = true
		}
	}
	for _, s := range r.Sections {
		if s.Title == "" {
			return fmt.Errorf("section without title")
		}
	}
	return nil
}

// allFields returns the rule's fields followed by its section fields, in
// rendering order.
func (r *Rule) allFields() []Field {
	out := slices.Clone(r.Fields)
	for _, s := range r.Sections {
		out = append(out, s.Fields...)
	}
	return out
}

func (t *Table) validateField(f Field) error {
	if (f.Attr == "") == (f.Child == "") {
		return fmt.Errorf("field %q: exactly one of attr and child is required", f.Label())
	}
	if f.Enum != "" && t.Maps[f.Enum] == nil {
		return fmt.Errorf("field %q: unknown enum map %q", f.Label(), f.Enum)
	}
	for _, s := range f.Format {
		if err := t.validateStep(s); err != nil {
			return fmt.Errorf("field %q: %w", f.Label(), err)
		}
	}
	return nil
}

func (t *Table) validateStep(s Step) error {
	switch s.Op {
	case OpText, OpNumber, OpLower, OpPercent, OpBool, OpNegativeFlag, OpSort, OpSplit:
		return nil
	case OpDrop, OpLast:
		if s.N <= 0 {
			return fmt.Errorf("op %s needs n > 0", s.Op)
		}
	case OpMap:
		if t.Maps[s.Arg] == nil {
			return fmt.Errorf("op map: unknown map %q", s.Arg)
		}
	case OpNegative, OpJoin, OpPrefix:
		if s.Arg == "" {
			return fmt.Errorf("op %s needs arg", s.Op)
		}
	default:
		return fmt.Errorf("unknown op %q", s.Op)
	}
	return nil
}

func checkDiscriminants(rules []*Rule) error {
	var attr string
	plain := 0
	seen := make(map[string]string)
	for _, r := range rules {
		if r.When == nil {
			plain++
			continue
		}
		if attr != "" && r.When.Attr != attr {
			return fmt.Errorf("rules discriminate on both %q and %q", attr, r.When.Attr)
		}
		attr = r.When.Attr
		for _, v := range r.When.In {
			if other, dup := seen[v]; dup {
				return fmt.Errorf("value %q claimed by rules %q and %q", v, other, r.Name)
			}
			seen[v] = r.Name
		}
	}
	if plain > 1 {
		return fmt.Errorf("%d rules without discriminant", plain)
	}
	return nil
}

func (t *Table) validateLayout() error {
	l := &t.Layout
	if len(l.Tables) == 0 {
		return nil
	}
	if l.Container == "" || l.TableAttr == "" || l.Rows == "" || l.ID == "" {
		return fmt.Errorf("schema: layout needs container, table_attr, rows and id")
	}
	names := lo.Map(l.Tables, func(m TableMapping, _ int) string { return m.Name })
	if dups := lo.FindDuplicates(names); len(dups) > 0 {
		return fmt.Errorf("schema: layout: duplicate tables %v", dups)
	}
	for _, m := range l.Tables {
		if m.Name == "" || m.Tag == "" {
			return fmt.Errorf("schema: layout: table mapping needs name and tag")
		}
	}
	for _, ref := range l.References {
		if ref.Attr == "" || ref.Tag == "" {
			return fmt.Errorf("schema: layout: reference needs attr and tag")
		}
	}
	return nil
}
