// Package tree holds the generic XML node tree the renderer works on and the
// loader that builds it from a file.
//
// A Node keeps only what a SISTEMA project file carries: a tag, attributes in
// document order, ordered child elements and direct character data. Comments,
// processing instructions and namespace resolution are not part of the model.
package tree

// Attr is a single attribute. Prefixed names keep their prefix ("xsi:type").
type Attr struct {
	Name  string
	Value string
}

// Node is one parsed XML element.
type Node struct {
	Tag      string
	Attrs    []Attr
	Children []*Node
	// Text is the concatenated character data directly inside the element,
	// untrimmed. Character data of child elements is not included.
	Text string
}

// Get returns the value of the named attribute and whether it is present.
func (n *Node) Get(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Attr returns the value of the named attribute, or "" when absent.
func (n *Node) Attr(name string) string {
	v, _ := n.Get(name)
	return v
}

// Child returns the first direct child with the given tag, or nil.
func (n *Node) Child(tag string) *Node {
	for _, c := range n.Children {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// ChildrenByTag returns all direct children with the given tag, in order.
func (n *Node) ChildrenByTag(tag string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

// Clone returns a deep copy of n. The copy shares nothing with n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		Tag:  n.Tag,
		Text: n.Text,
	}
	if len(n.Attrs) > 0 {
		c.Attrs = make([]Attr, len(n.Attrs))
		copy(c.Attrs, n.Attrs)
	}
	if len(n.Children) > 0 {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return c
}
