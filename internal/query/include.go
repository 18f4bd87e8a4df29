package query

import (
	"fmt"
	"sort"
	"strings"
)

// Include is a relation expansion tree keyed by relation name.
type Include map[string]*Node

// Node is one expanded relation. A terminal node (the zero Node) loads the
// relation as is; otherwise it carries a filter, ordering, a per-parent limit
// and a further expansion of the related records.
type Node struct {
	Where   Where
	Include Include
	Counts  Include
	OrderBy []string
	Limit   int
	// IncludeDeleted keeps soft-deleted related records for this node only.
	IncludeDeleted bool
}

// Terminal returns a node that loads a relation without further constraints.
func Terminal() *Node { return &Node{} }

// IsTerminal reports whether n carries no filter and no nested expansion.
func (n *Node) IsTerminal() bool {
	return n.Where.Empty() && len(n.Include) == 0 && len(n.Counts) == 0 &&
		len(n.OrderBy) == 0 && n.Limit == 0 && !n.IncludeDeleted
}

// Clone deep-copies n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	out.Where = n.Where.And()
	out.Include = n.Include.Clone()
	out.Counts = n.Counts.Clone()
	if n.OrderBy != nil {
		out.OrderBy = append([]string(nil), n.OrderBy...)
	}
	return &out
}

// Clone deep-copies the tree.
func (inc Include) Clone() Include {
	if inc == nil {
		return nil
	}
	out := make(Include, len(inc))
	for name, node := range inc {
		out[name] = node.Clone()
	}
	return out
}

// Names returns relation names in sorted order.
func (inc Include) Names() []string {
	names := make([]string, 0, len(inc))
	for name := range inc {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Mentions reports whether a relation called name appears anywhere in the
// tree, nested expansions and counts included.
func (inc Include) Mentions(name string) bool {
	for rel, node := range inc {
		if rel == name {
			return true
		}
		if node != nil && (node.Include.Mentions(name) || node.Counts.Mentions(name)) {
			return true
		}
	}
	return false
}

// ParseIncludePaths turns "category,children.products" into an expansion tree.
func ParseIncludePaths(s string) (Include, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	root := Include{}
	for _, path := range strings.Split(s, ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		level := root
		for _, name := range strings.Split(path, ".") {
			if name == "" {
				return nil, fmt.Errorf("%w: empty relation in %q", ErrMalformedInclude, path)
			}
			node, ok := level[name]
			if !ok {
				node = Terminal()
				level[name] = node
			}
			if node.Include == nil {
				node.Include = Include{}
			}
			level = node.Include
		}
	}
	prune(root)
	return root, nil
}

// prune drops empty nested maps left behind by ParseIncludePaths so leaves stay terminal.
func prune(inc Include) {
	for _, node := range inc {
		if len(node.Include) == 0 {
			node.Include = nil
			continue
		}
		prune(node.Include)
	}
}
