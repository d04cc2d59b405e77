package layers

import (
	"fmt"

	"github.com/gogpu/compositor/effect"
	"github.com/gogpu/compositor/internal/logging"
)

// Transaction is an ordered batch of operations applied atomically.
type Transaction struct {
	Ops []Op

	// FirstPaint marks the first update of a new page.
	FirstPaint bool
}

// Add appends operations and returns t.
func (t *Transaction) Add(ops ...Op) *Transaction {
	t.Ops = append(t.Ops, ops...)
	return t
}

// Op is one tree mutation.
type Op interface {
	apply(t *Tree) error
}

// Create adds an unparented node.
type Create struct {
	ID   ID
	Kind Kind
}

// SetRoot makes a node the root.
type SetRoot struct{ ID ID }

// InsertAfter inserts Child into Parent's child list after After, or
// first when After is zero. Child must be unparented.
type InsertAfter struct {
	Parent, Child, After ID
}

// RemoveChild detaches Child from Parent. The child keeps existing.
type RemoveChild struct {
	Parent, Child ID
}

// SetAttributes replaces a node's authoritative geometry.
type SetAttributes struct {
	ID         ID
	Attributes Attributes
}

// AttachHost gives a raster, canvas or image node a new content host.
type AttachHost struct {
	ID   ID
	Mode HostMode
}

// SetImage gives an image node a decoded image.
type SetImage struct {
	ID    ID
	Image *Image
}

// SetColor sets the premultiplied color of a color node.
type SetColor struct {
	ID    ID
	Color [4]float32
}

// SetMetrics sets the frame metrics of a container.
type SetMetrics struct {
	ID      ID
	Metrics FrameMetrics
}

// SetMask sets the mask applied to a node's content. A nil Mask removes it.
type SetMask struct {
	ID   ID
	Mask *effect.Mask
}

// SetRef points a reference node at another node.
type SetRef struct {
	ID, Target ID
}

// Destroy removes a node, detaching it from its parent and its children
// from it, and releases its payload once the tree is adopted.
type Destroy struct{ ID ID }

func (t *Tree) lookup(id ID) (*Node, error) {
	n := t.nodes[id]
	if n == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	return n, nil
}

func (t *Tree) lookupKind(id ID, kinds ...Kind) (*Node, error) {
	n, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	for _, k := range kinds {
		if n.kind == k {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrInvalidOp, n)
}

func (op Create) apply(t *Tree) error {
	if op.ID == 0 {
		return fmt.Errorf("%w: node ID 0", ErrInvalidOp)
	}
	if t.nodes[op.ID] != nil {
		return fmt.Errorf("%w: %d", ErrDuplicateNode, op.ID)
	}
	t.nodes[op.ID] = newNode(op.ID, op.Kind)
	return nil
}

func (op SetRoot) apply(t *Tree) error {
	n, err := t.lookup(op.ID)
	if err != nil {
		return err
	}
	if n.parent != 0 {
		return fmt.Errorf("%w: root %v has a parent", ErrInvalidOp, n)
	}
	t.root = op.ID
	return nil
}

func (op InsertAfter) apply(t *Tree) error {
	parent, err := t.lookupKind(op.Parent, KindContainer)
	if err != nil {
		return err
	}
	child, err := t.lookup(op.Child)
	if err != nil {
		return err
	}
	if child.parent != 0 {
		return fmt.Errorf("%w: %v already has a parent", ErrInvalidOp, child)
	}
	if op.Child == t.root {
		return fmt.Errorf("%w: cannot insert the root", ErrCycle)
	}
	for p := parent; p != nil; p = t.nodes[p.parent] {
		if p.id == op.Child {
			return fmt.Errorf("%w: %v is an ancestor of %v", ErrCycle, child, parent)
		}
	}

	at := 0
	if op.After != 0 {
		at = -1
		for i, id := range parent.children {
			if id == op.After {
				at = i + 1
				break
			}
		}
		if at < 0 {
			return fmt.Errorf("%w: %d is not a child of %v", ErrUnknownNode, op.After, parent)
		}
	}
	parent.children = append(parent.children, 0)
	copy(parent.children[at+1:], parent.children[at:])
	parent.children[at] = op.Child
	child.parent = op.Parent
	return nil
}

func (op RemoveChild) apply(t *Tree) error {
	parent, err := t.lookup(op.Parent)
	if err != nil {
		return err
	}
	child, err := t.lookup(op.Child)
	if err != nil {
		return err
	}
	if child.parent != op.Parent {
		return fmt.Errorf("%w: %v is not a child of %v", ErrInvalidOp, child, parent)
	}
	parent.children = removeID(parent.children, op.Child)
	child.parent = 0
	return nil
}

func removeID(ids []ID, id ID) []ID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func (op SetAttributes) apply(t *Tree) error {
	n, err := t.lookup(op.ID)
	if err != nil {
		return err
	}
	a := op.Attributes
	if a.Opacity < 0 || a.Opacity > 1 {
		return fmt.Errorf("%w: opacity %v", ErrInvalidOp, a.Opacity)
	}
	if a.Clip != nil {
		c := *a.Clip
		a.Clip = &c
	}
	n.Attributes = a
	return nil
}

func (op AttachHost) apply(t *Tree) error {
	n, err := t.lookupKind(op.ID, KindRaster, KindCanvas, KindImage)
	if err != nil {
		return err
	}
	if t.factory == nil {
		return fmt.Errorf("%w: no host factory", ErrInvalidOp)
	}
	t.drop(n)
	n.host = t.factory(op.Mode)
	n.image = nil
	return nil
}

func (op SetImage) apply(t *Tree) error {
	n, err := t.lookupKind(op.ID, KindImage)
	if err != nil {
		return err
	}
	if op.Image == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidOp)
	}
	t.drop(n)
	n.host = nil
	n.image = op.Image
	return nil
}

// drop schedules n's current content payload for release.
func (t *Tree) drop(n *Node) {
	if n.host == nil && n.image == nil {
		return
	}
	t.dropped = append(t.dropped, &Node{id: n.id, host: n.host, image: n.image})
}

func (op SetColor) apply(t *Tree) error {
	n, err := t.lookupKind(op.ID, KindColor)
	if err != nil {
		return err
	}
	n.color = op.Color
	return nil
}

func (op SetMetrics) apply(t *Tree) error {
	n, err := t.lookupKind(op.ID, KindContainer)
	if err != nil {
		return err
	}
	m := op.Metrics
	n.metrics = &m
	return nil
}

func (op SetMask) apply(t *Tree) error {
	n, err := t.lookup(op.ID)
	if err != nil {
		return err
	}
	if n.mask != nil && (op.Mask == nil || n.mask.Handle != op.Mask.Handle) {
		t.dropped = append(t.dropped, &Node{id: n.id, mask: n.mask})
	}
	n.mask = op.Mask
	return nil
}

func (op SetRef) apply(t *Tree) error {
	n, err := t.lookupKind(op.ID, KindReference)
	if err != nil {
		return err
	}
	if _, err := t.lookup(op.Target); err != nil {
		return err
	}
	n.ref = op.Target
	return nil
}

func (op Destroy) apply(t *Tree) error {
	n, err := t.lookup(op.ID)
	if err != nil {
		return err
	}
	if p := t.nodes[n.parent]; p != nil {
		p.children = removeID(p.children, n.id)
	}
	for _, c := range n.children {
		if cn := t.nodes[c]; cn != nil {
			cn.parent = 0
		}
	}
	if t.root == n.id {
		t.root = 0
	}
	t.dropped = append(t.dropped, n)
	delete(t.nodes, n.id)
	return nil
}

// Apply returns a new tree with tx applied. t is not modified; on error
// the returned tree is nil and no operation takes effect. The caller
// adopts the result and then calls ReleaseDropped on it.
func (t *Tree) Apply(tx *Transaction) (*Tree, error) {
	next := t.clone()
	for i, op := range tx.Ops {
		if err := op.apply(next); err != nil {
			next.discardCreated(t)
			return nil, fmt.Errorf("layers: op %d (%T): %w", i, op, err)
		}
	}
	if err := next.validate(); err != nil {
		next.discardCreated(t)
		return nil, err
	}
	logging.Logger().Debug("layers: transaction applied",
		"ops", len(tx.Ops),
		"nodes", len(next.nodes),
		"firstPaint", tx.FirstPaint)
	return next, nil
}

// discardCreated releases hosts created by a rejected transaction, which
// no surviving tree references.
func (t *Tree) discardCreated(prev *Tree) {
	owned := make(map[ContentHost]bool)
	for _, n := range prev.nodes {
		if n.host != nil {
			owned[n.host] = true
		}
	}
	release := func(h ContentHost) {
		if h != nil && !owned[h] {
			h.Release()
			owned[h] = true
		}
	}
	for _, n := range t.nodes {
		release(n.host)
	}
	for _, n := range t.dropped {
		release(n.host)
	}
}

// validate checks that references resolve without loops and that every
// parent link is mirrored by a child link.
func (t *Tree) validate() error {
	if t.root != 0 && t.nodes[t.root] == nil {
		return fmt.Errorf("%w: root %d", ErrUnknownNode, t.root)
	}
	for _, n := range t.nodes {
		if n.parent != 0 && t.nodes[n.parent] == nil {
			return fmt.Errorf("%w: parent %d of %v", ErrUnknownNode, n.parent, n)
		}
		if n.kind != KindReference {
			continue
		}
		if n.ref != 0 && t.nodes[n.ref] == nil {
			return fmt.Errorf("%w: reference target %d of %v", ErrUnknownNode, n.ref, n)
		}
		if t.refLoops(n) {
			return fmt.Errorf("%w: reference %v reaches itself", ErrCycle, n)
		}
	}
	return nil
}

// refLoops reports whether following references from n, through the
// referenced subtrees, reaches n again.
func (t *Tree) refLoops(start *Node) bool {
	seen := make(map[ID]bool)
	var visit func(id ID) bool
	visit = func(id ID) bool {
		if id == start.id {
			return true
		}
		if id == 0 || seen[id] {
			return false
		}
		seen[id] = true
		n := t.nodes[id]
		if n == nil {
			return false
		}
		if n.kind == KindReference && visit(n.ref) {
			return true
		}
		for _, c := range n.children {
			if visit(c) {
				return true
			}
		}
		return false
	}
	return visit(start.ref)
}
