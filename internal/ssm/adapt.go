// Package ssm rebuilds the project tree from the relational form SISTEMA
// saves it in.
//
// A .ssm file stores every tree node as a row of a table:
//
//	<tables>
//	  <table table_name="sfops">
//	    <rows>
//	      <row oid="12" projectopoid="3" name="Stop"/>
//
// Adapt turns each row of a mapped table into an element named after its
// table and nests it under the row its parent attribute points at, giving the
// renderer the same Project → SafetyFunction → Subsystem → Channel → Block →
// Element tree the SISTEMA GUI shows.
package ssm

import (
	"github.com/samber/lo"

	"ssm2txt/internal/schema"
	"ssm2txt/internal/tree"
)

// Adapt returns the nested project tree for root. Documents that do not use
// the table layout are returned unchanged. root itself is never modified.
//
// No row is dropped: rows whose parent attribute is missing, unknown or
// would close a cycle become top-level elements, and tables the layout does
// not map stay under the container in their original form.
func Adapt(root *tree.Node, layout schema.Layout) *tree.Node {
	container := root.Child(layout.Container)
	if container == nil || len(layout.Tables) == 0 {
		return root
	}

	a := &adapter{
		layout:   layout,
		rowsByID: make(map[string]*tree.Node),
		byID:     make(map[string]*tree.Node),
		parentOf: make(map[*tree.Node]*tree.Node),
	}
	a.index(container)
	kept := a.collect(container)
	a.link()

	out := &tree.Node{Tag: root.Tag, Attrs: cloneAttrs(root.Attrs), Text: root.Text}
	for _, c := range root.Children {
		if c != container {
			out.Children = append(out.Children, c.Clone())
			continue
		}
		out.Children = append(out.Children, a.top...)
		if len(kept) > 0 {
			out.Children = append(out.Children, &tree.Node{
				Tag:      container.Tag,
				Attrs:    cloneAttrs(container.Attrs),
				Children: kept,
				Text:     container.Text,
			})
		}
	}
	return out
}

type row struct {
	node   *tree.Node
	parent string // parent attribute name, "" for root tables
}

type adapter struct {
	layout schema.Layout

	rowsByID map[string]*tree.Node // source rows of every table, by id
	byID     map[string]*tree.Node // adapted rows of mapped tables, by id
	parentOf map[*tree.Node]*tree.Node
	rows     []row
	top      []*tree.Node
}

// index records every row of every table by id so references can point into
// unmapped tables too. The first row with a given id wins.
func (a *adapter) index(container *tree.Node) {
	for _, t := range container.Children {
		for _, rows := range t.ChildrenByTag(a.layout.Rows) {
			for _, r := range rows.Children {
				if id, ok := r.Get(a.layout.ID); ok {
					if _, dup := a.rowsByID[id]; !dup {
						a.rowsByID[id] = r
					}
				}
			}
		}
	}
}

// collect converts the rows of mapped tables and returns what stays under the
// container: unmapped tables, and mapped tables that carry more than rows.
func (a *adapter) collect(container *tree.Node) []*tree.Node {
	var kept []*tree.Node
	for _, t := range container.Children {
		m, ok := a.layout.MappedTable(t.Attr(a.layout.TableAttr))
		if !ok {
			kept = append(kept, t.Clone())
			continue
		}

		rest := lo.Reject(t.Children, func(c *tree.Node, _ int) bool {
			return c.Tag == a.layout.Rows
		})
		if len(rest) > 0 {
			shell := &tree.Node{Tag: t.Tag, Attrs: cloneAttrs(t.Attrs), Text: t.Text}
			for _, c := range rest {
				shell.Children = append(shell.Children, c.Clone())
			}
			kept = append(kept, shell)
		}

		for _, rows := range t.ChildrenByTag(a.layout.Rows) {
			for _, r := range rows.Children {
				n := r.Clone()
				n.Tag = m.Tag
				a.attachReferences(n)
				if id, ok := r.Get(a.layout.ID); ok {
					if _, dup := a.byID[id]; !dup {
						a.byID[id] = n
					}
				}
				a.rows = append(a.rows, row{node: n, parent: m.Parent})
			}
		}
	}
	return kept
}

// attachReferences adds a copy of every row n references.
func (a *adapter) attachReferences(n *tree.Node) {
	for _, ref := range a.layout.References {
		id, ok := n.Get(ref.Attr)
		if !ok {
			continue
		}
		target, ok := a.rowsByID[id]
		if !ok {
			continue
		}
		c := target.Clone()
		c.Tag = ref.Tag
		n.Children = append(n.Children, c)
	}
}

// link nests every row under its parent. Rows of root tables come first at
// the top level, followed by rows whose parent could not be used.
func (a *adapter) link() {
	var orphans []*tree.Node
	for _, r := range a.rows {
		if r.parent == "" {
			a.top = append(a.top, r.node)
			continue
		}
		p := a.byID[r.node.Attr(r.parent)]
		if p == nil || a.isAncestor(r.node, p) {
			orphans = append(orphans, r.node)
			continue
		}
		p.Children = append(p.Children, r.node)
		a.parentOf[r.node] = p
	}
	a.top = append(a.top, orphans...)
}

// isAncestor reports whether n is p or one of p's ancestors.
func (a *adapter) isAncestor(n, p *tree.Node) bool {
	for ; p != nil; p = a.parentOf[p] {
		if p == n {
			return true
		}
	}
	return false
}

func cloneAttrs(attrs []tree.Attr) []tree.Attr {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]tree.Attr, len(attrs))
	copy(out, attrs)
	return out
}
