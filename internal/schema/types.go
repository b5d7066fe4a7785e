// Package schema holds the declarative rule table that tells the renderer how
// each SISTEMA element is laid out: which header it gets, which fields appear
// in which order, how raw attribute values are formatted, and how the
// relational table layout of a project file maps onto the project tree.
//
// The built-in table is rules.yaml, embedded at build time. Supporting a new
// SISTEMA schema revision is an edit to that file.
package schema

import (
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Rule table
// ---------------------------------------------------------------------------

// Table is a complete rule table. A Table returned by Parse, Load or Default
// is validated and must be treated as read-only.
type Table struct {
	Version     int                          `yaml:"version"`
	Indent      string                       `yaml:"indent"`
	Placeholder string                       `yaml:"placeholder"`
	Precision   int                          `yaml:"precision"`
	Maps        map[string]map[string]string `yaml:"maps,omitempty"`
	Rules       []Rule                       `yaml:"rules"`
	Layout      Layout                       `yaml:"layout"`

	byTag map[string][]*Rule
}

// Rule describes how one Schema Element is rendered.
type Rule struct {
	Name string `yaml:"name"`
	Tag  string `yaml:"tag"`
	// When restricts the rule to elements whose discriminant attribute holds
	// one of the listed values. Rules sharing a tag must share the attribute.
	When *Discriminant `yaml:"when,omitempty"`
	// Title is the header line. When it is empty the header is the Heading
	// value, or the tag when the rule has no heading either.
	Title string `yaml:"title,omitempty"`
	// Heading is shown after the title. Its attribute is rendered only there,
	// so a change to it touches a single line of output.
	Heading  *Field    `yaml:"heading,omitempty"`
	Fields   []Field   `yaml:"fields,omitempty"`
	Sections []Section `yaml:"sections,omitempty"`
	// ChildOffset is the depth added for structural children; 1 when unset.
	ChildOffset *int `yaml:"child_offset,omitempty"`

	consumed map[string]bool
	declared map[string]bool
}

// Discriminant selects between rules that share a tag.
type Discriminant struct {
	Attr string   `yaml:"attr"`
	In   []string `yaml:"in"`
}

// Section is a titled group of fields, one per tab of the SISTEMA GUI.
type Section struct {
	Title  string  `yaml:"title"`
	Fields []Field `yaml:"fields"`
}

// Field is one rendered line. Exactly one of Attr and Child names its source.
// A Child source takes the text of every child element with that tag that
// has neither attributes nor children of its own; those children are not
// visited separately.
type Field struct {
	// Title is the label; the attribute or child tag when empty.
	Title string `yaml:"title,omitempty"`
	Attr  string `yaml:"attr,omitempty"`
	Child string `yaml:"child,omitempty"`
	// Enum names a value map that must contain the raw value. A value outside
	// it is a Conflict.
	Enum   string `yaml:"enum,omitempty"`
	Format []Step `yaml:"format,omitempty"`
}

// Step is one operation of a field's format pipeline. In YAML a step without
// arguments may be written as a bare op name.
type Step struct {
	Op  string `yaml:"op"`
	N   int    `yaml:"n,omitempty"`
	Arg string `yaml:"arg,omitempty"`
}

// UnmarshalYAML accepts both "lower" and {op: lower}.
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*s = Step{Op: value.Value}
		return nil
	}
	type plain Step
	return value.Decode((*plain)(s))
}

// Format pipeline operations.
const (
	OpText         = "text"          // keep the value verbatim
	OpNumber       = "number"        // fixed-point policy for floating-point values
	OpDrop         = "drop"          // drop the first N characters
	OpLast         = "last"          // keep the last N characters
	OpLower        = "lower"         // lower-case
	OpMap          = "map"           // translate through value map Arg, unknown values pass
	OpPercent      = "percent"       // fraction to percentage
	OpBool         = "bool"          // integer checkbox to True/False
	OpNegative     = "negative"      // replace negative numbers with Arg
	OpNegativeFlag = "negative_flag" // True for a negative number, False for any other
	OpSplit        = "split"         // split every item on Arg (default ","), trimming items
	OpSort         = "sort"          // sort items
	OpJoin         = "join"          // join items with Arg
	OpPrefix       = "prefix"        // prepend Arg
)

// ---------------------------------------------------------------------------
// Table layout
// ---------------------------------------------------------------------------

// Layout describes the relational form SISTEMA stores projects in:
//
//	<root>
//	  <tables>
//	    <table table_name="sfops">
//	      <rows>
//	        <row oid="..." projectopoid="..." .../>
//
// Rows of mapped tables are re-nested under the row their parent attribute
// points at.
type Layout struct {
	Container  string         `yaml:"container"`
	TableAttr  string         `yaml:"table_attr"`
	Rows       string         `yaml:"rows"`
	ID         string         `yaml:"id"`
	Tables     []TableMapping `yaml:"tables"`
	References []Reference    `yaml:"references,omitempty"`
}

// TableMapping maps the rows of one table onto a Schema Element tag.
type TableMapping struct {
	Name   string `yaml:"name"`
	Tag    string `yaml:"tag"`
	Parent string `yaml:"parent,omitempty"`
}

// Reference attaches a copy of the row whose id is held in Attr as a child
// element with tag Tag.
type Reference struct {
	Attr string `yaml:"attr"`
	Tag  string `yaml:"tag"`
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Source returns the attribute name or child tag the field reads.
func (f *Field) Source() string {
	if f.Attr != "" {
		return f.Attr
	}
	return f.Child
}

// Label returns the text printed before the field's value.
func (f *Field) Label() string {
	if f.Title != "" {
		return f.Title
	}
	return f.Source()
}

// Offset returns the depth offset for the rule's structural children.
func (r *Rule) Offset() int {
	if r.ChildOffset == nil {
		return 1
	}
	return *r.ChildOffset
}

// Consumes reports whether children with the given tag are read by one of
// the rule's Child fields.
func (r *Rule) Consumes(tag string) bool {
	return r.consumed[tag]
}

// Declares reports whether the attribute is the source of one of the rule's
// fields or of its heading.
func (r *Rule) Declares(attr string) bool {
	return r.declared[attr]
}

// Map returns the named value map, or nil.
func (t *Table) Map(name string) map[string]string {
	return t.Maps[name]
}

// MappedTable returns the mapping for a table name.
func (l *Layout) MappedTable(name string) (TableMapping, bool) {
	for _, m := range l.Tables {
		if m.Name == name {
			return m, true
		}
	}
	return TableMapping{}, false
}
