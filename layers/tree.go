package layers

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/internal/logging"
)

var (
	// ErrUnknownNode is returned when an operation names a node that does
	// not exist.
	ErrUnknownNode = errors.New("layers: unknown node")

	// ErrCycle is returned when an operation would make a node its own
	// ancestor or a reference chain loop.
	ErrCycle = errors.New("layers: cycle")

	// ErrDuplicateNode is returned when a created node ID is already used.
	ErrDuplicateNode = errors.New("layers: duplicate node")

	// ErrInvalidOp is returned for operations that do not fit the node's
	// kind or position.
	ErrInvalidOp = errors.New("layers: invalid operation")
)

// Tree is an ordered layer tree with exactly one root once populated.
type Tree struct {
	nodes   map[ID]*Node
	root    ID
	factory HostFactory

	// dropped holds payloads replaced or destroyed by the transaction that
	// produced this tree. They are released by ReleaseDropped once the tree
	// is adopted.
	dropped  []*Node
	released bool
}

// NewTree returns an empty tree. factory creates hosts for AttachHost; it
// may be nil when no transaction attaches hosts.
func NewTree(factory HostFactory) *Tree {
	return &Tree{nodes: make(map[ID]*Node), factory: factory}
}

func (t *Tree) clone() *Tree {
	c := &Tree{
		nodes:   make(map[ID]*Node, len(t.nodes)),
		root:    t.root,
		factory: t.factory,
	}
	for id, n := range t.nodes {
		c.nodes[id] = n.clone()
	}
	return c
}

// Len returns the number of nodes, attached or not.
func (t *Tree) Len() int { return len(t.nodes) }

// Root returns the root node, or nil for an empty tree.
func (t *Tree) Root() *Node {
	if t == nil {
		return nil
	}
	return t.nodes[t.root]
}

// Node returns the node with the given ID, or nil.
func (t *Tree) Node(id ID) *Node { return t.nodes[id] }

// Children returns the ordered children of n.
func (t *Tree) Children(n *Node) []*Node {
	out := make([]*Node, 0, len(n.children))
	for _, id := range n.children {
		out = append(out, t.nodes[id])
	}
	return out
}

// Walk visits the subtree of the root depth-first in pre-order, stopping
// early when fn returns false. Reference nodes are visited but not
// followed.
func (t *Tree) Walk(fn func(n *Node, depth int) bool) {
	root := t.Root()
	if root == nil {
		return
	}
	t.walk(root, 0, fn)
}

func (t *Tree) walk(n *Node, depth int, fn func(*Node, int) bool) bool {
	if !fn(n, depth) {
		return false
	}
	for _, c := range t.Children(n) {
		if !t.walk(c, depth+1, fn) {
			return false
		}
	}
	return true
}

// FindPrimaryScrollable returns the first container, in breadth-first
// order from the root, whose frame metrics mark it scrollable. It returns
// the root when no container qualifies and nil for an empty tree.
func (t *Tree) FindPrimaryScrollable() *Node {
	root := t.Root()
	if root == nil {
		return nil
	}
	queue := []*Node{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n.kind == KindContainer && n.metrics != nil && n.metrics.Scrollable {
			return n
		}
		queue = append(queue, t.Children(n)...)
	}
	return root
}

// SetShadowProperties resets every node's shadow transform, visible region
// and clip from its authoritative attributes.
func (t *Tree) SetShadowProperties() {
	for _, n := range t.nodes {
		n.ShadowTransform = n.Transform
		n.ShadowVisible = n.Visible
		if n.Clip != nil {
			c := *n.Clip
			n.ShadowClip = &c
		} else {
			n.ShadowClip = nil
		}
	}
}

// EffectiveTransform composes the shadow transforms from the root down to
// n. A node's transform applies first, then its parent's.
func (t *Tree) EffectiveTransform(n *Node) mgl32.Mat4 {
	m := n.ShadowTransform
	for p := t.nodes[n.parent]; p != nil; p = t.nodes[p.parent] {
		m = geom.Then(m, p.ShadowTransform)
	}
	return m
}

// EffectiveOpacity multiplies the opacity of n and its ancestors.
func (t *Tree) EffectiveOpacity(n *Node) float32 {
	o := n.Opacity
	for p := t.nodes[n.parent]; p != nil; p = t.nodes[p.parent] {
		o *= p.Opacity
	}
	return o
}

// HasRenderableContent reports whether any node reachable from the root,
// following references, can produce pixels.
func (t *Tree) HasRenderableContent() bool {
	found := false
	seen := make(map[ID]bool)
	var visit func(n *Node)
	visit = func(n *Node) {
		if found || n == nil || seen[n.id] || n.Opacity <= 0 {
			return
		}
		seen[n.id] = true
		if n.Renderable() {
			found = true
			return
		}
		if n.kind == KindReference {
			visit(t.nodes[n.ref])
		}
		for _, c := range t.Children(n) {
			visit(c)
		}
	}
	visit(t.Root())
	return found
}

// ReleaseDropped releases the payloads this tree's transaction replaced or
// destroyed. Call it once the tree has replaced its predecessor.
func (t *Tree) ReleaseDropped() {
	for _, n := range t.dropped {
		n.releasePayload()
	}
	t.dropped = nil
}

// Release frees every payload in the tree exactly once. The tree must not
// be drawn afterwards.
func (t *Tree) Release() {
	if t == nil || t.released {
		return
	}
	t.ReleaseDropped()
	for _, n := range t.nodes {
		n.releasePayload()
	}
	t.released = true
	logging.Logger().Debug("layers: tree released", "nodes", len(t.nodes))
}
