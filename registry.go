package plano

import (
	"iter"
	"strings"
)

// Node is one entry of the command tree: a group, a command, or both.
type Node struct {
	Name    string
	Path    []string
	Help    string
	Command *Command

	children []*Node
	index    map[string]*Node
}

// FullPath returns the dotted path of the node. The root's path is "".
func (n *Node) FullPath() string {
	return strings.Join(n.Path, ".")
}

// IsGroup reports whether the node has child entries.
func (n *Node) IsGroup() bool {
	return len(n.children) > 0
}

// Children yields the node's immediate children in declaration order.
func (n *Node) Children() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for _, c := range n.children {
			if !yield(c) {
				return
			}
		}
	}
}

func (n *Node) child(name string) *Node {
	return n.index[name]
}

func (n *Node) ensureChild(name string) *Node {
	if c, ok := n.index[name]; ok {
		return c
	}
	c := &Node{
		Name:  name,
		Path:  append(append([]string{}, n.Path...), name),
		index: make(map[string]*Node),
	}
	n.children = append(n.children, c)
	n.index[name] = c
	return c
}

func (n *Node) summary() string {
	if n.Command != nil && n.Command.Help != "" {
		return n.Command.Help
	}
	return n.Help
}

func (n *Node) hidden() bool {
	return n.Command != nil && n.Command.Hidden && !n.IsGroup()
}

// Registry holds the command tree. It is populated during start-up and
// only read while commands run; it is not safe for concurrent mutation.
type Registry struct {
	root *Node
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{root: &Node{index: make(map[string]*Node)}}
}

// Root returns the unnamed top-level group.
func (r *Registry) Root() *Node {
	return r.root
}

// SplitPath turns "db.migrate" into ["db", "migrate"], dropping empty
// segments.
func SplitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, ".") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// Register adds the command at path. Intermediate groups are created on
// demand.
//
// Arguments:
//   - path: Dotted command path. Empty segments are ignored.
//   - fn: The target function, checked against the declared parameters.
//   - opts: Command options applied before the target is checked.
//
// Returns the Command, a *DuplicateCommandError if path is taken, or a
// *SignatureError if fn does not fit its parameters.
func (r *Registry) Register(path string, fn any, opts ...CommandOption) (*Command, error) {
	parts := SplitPath(path)
	if len(parts) == 0 {
		return nil, &SignatureError{Path: path, Reason: "empty command path"}
	}

	node := r.root
	for _, name := range parts {
		node = node.ensureChild(name)
	}
	if node.Command != nil {
		return nil, &DuplicateCommandError{Path: node.FullPath()}
	}

	cmd := &Command{
		Name: parts[len(parts)-1],
		Path: parts,
	}
	for _, opt := range opts {
		opt(cmd)
	}
	target, err := analyzeTarget(cmd.FullPath(), fn, cmd.Params, cmd.Passthrough)
	if err != nil {
		r.prune(parts)
		return nil, err
	}
	cmd.target = target
	node.Command = cmd
	return cmd, nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(path string, fn any, opts ...CommandOption) *Command {
	cmd, err := r.Register(path, fn, opts...)
	if err != nil {
		panic("plano: " + err.Error())
	}
	return cmd
}

// Group sets the help text of the group at path, creating it if needed.
func (r *Registry) Group(path, help string) *Node {
	node := r.root
	for _, name := range SplitPath(path) {
		node = node.ensureChild(name)
	}
	node.Help = help
	return node
}

// prune removes empty nodes left behind by a failed registration.
func (r *Registry) prune(parts []string) {
	for len(parts) > 0 {
		parent := r.root
		for _, name := range parts[:len(parts)-1] {
			parent = parent.child(name)
		}
		leaf := parent.child(parts[len(parts)-1])
		if leaf == nil || leaf.Command != nil || leaf.IsGroup() || leaf.Help != "" {
			return
		}
		delete(parent.index, leaf.Name)
		for i, c := range parent.children {
			if c == leaf {
				parent.children = append(parent.children[:i], parent.children[i+1:]...)
				break
			}
		}
		parts = parts[:len(parts)-1]
	}
}

// Lookup returns the node at the exact dotted path. A path naming a
// group returns the group node.
func (r *Registry) Lookup(path string) (*Node, error) {
	node := r.root
	for _, name := range SplitPath(path) {
		next := node.child(name)
		if next == nil {
			return nil, &UnknownCommandError{Path: path, Suggestion: suggest(name, childNames(node))}
		}
		node = next
	}
	return node, nil
}

// Command returns the command registered at path.
func (r *Registry) Command(path string) (*Command, error) {
	node, err := r.Lookup(path)
	if err != nil {
		return nil, err
	}
	if node.Command == nil {
		return nil, &UnknownCommandError{Path: path}
	}
	return node.Command, nil
}

// List yields the children of the group at groupPath in declaration
// order. An unknown path yields nothing.
func (r *Registry) List(groupPath string) iter.Seq[*Node] {
	node, err := r.Lookup(groupPath)
	if err != nil {
		return func(func(*Node) bool) {}
	}
	return node.Children()
}

// Resolve walks tokens down the tree and returns the deepest node they
// reach along with the number of tokens consumed. A leading token may
// also be a dotted path.
func (r *Registry) Resolve(tokens []string) (*Node, int) {
	node := r.root
	consumed := 0
	for consumed < len(tokens) {
		tok := tokens[consumed]
		if strings.HasPrefix(tok, "-") {
			break
		}
		next := node
		for _, name := range SplitPath(tok) {
			if next = next.child(name); next == nil {
				break
			}
		}
		if next == nil || next == node {
			break
		}
		node = next
		consumed++
	}
	return node, consumed
}

// Commands yields every registered command, depth first in declaration
// order.
func (r *Registry) Commands() iter.Seq[*Command] {
	return func(yield func(*Command) bool) {
		var walk func(n *Node) bool
		walk = func(n *Node) bool {
			if n.Command != nil && !yield(n.Command) {
				return false
			}
			for _, c := range n.children {
				if !walk(c) {
					return false
				}
			}
			return true
		}
		walk(r.root)
	}
}

func childNames(n *Node) []string {
	names := make([]string, 0, len(n.children))
	for _, c := range n.children {
		if !c.hidden() {
			names = append(names, c.Name)
		}
	}
	return names
}
