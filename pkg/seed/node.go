package seed

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// HookKey marks a leaf: the dbt post-hook that loads the seed.
const HookKey = "+post-hook"

// SeedsKey is the top-level collection holding seed declarations.
const SeedsKey = "seeds"

// Node is a configuration node: either a Leaf or an Interior.
// The variant is decided once, when the YAML is converted.
type Node interface {
	isNode()
}

// Leaf is a node carrying a hook expression.
type Leaf struct {
	Hook string
	// Invalid is set when the hook value is not a string or list of strings
	Invalid string
}

// Interior is a node whose mapping children are themselves nodes, in
// document order.
type Interior struct {
	Children []Child
}

// Child is one named entry of an Interior node.
type Child struct {
	Key  string
	Node Node
}

func (Leaf) isNode()      {}
func (*Interior) isNode() {}

// convert builds the Node for a YAML mapping. Entries whose key starts with
// "+" are dbt configs and are not descended into; non-mapping values are
// configuration scalars and are dropped.
func convert(n *yaml.Node) Node {
	n = deref(n)
	if hook, ok := lookup(n, HookKey); ok {
		return hookLeaf(hook)
	}
	in := &Interior{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i].Value, deref(n.Content[i+1])
		if strings.HasPrefix(key, "+") || val.Kind != yaml.MappingNode {
			continue
		}
		in.Children = append(in.Children, Child{Key: key, Node: convert(val)})
	}
	return in
}

func hookLeaf(n *yaml.Node) Leaf {
	n = deref(n)
	switch n.Kind {
	case yaml.ScalarNode:
		return Leaf{Hook: n.Value}
	case yaml.SequenceNode:
		parts := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			item = deref(item)
			if item.Kind != yaml.ScalarNode {
				return Leaf{Invalid: fmt.Sprintf("%s list item is not a string", HookKey)}
			}
			parts = append(parts, item.Value)
		}
		return Leaf{Hook: strings.Join(parts, "\n")}
	default:
		return Leaf{Invalid: fmt.Sprintf("%s is not a string", HookKey)}
	}
}

// lookup returns the value for key in a mapping node.
func lookup(n *yaml.Node, key string) (*yaml.Node, bool) {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil, false
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1], true
		}
	}
	return nil, false
}

func deref(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}
