// Package hierarchy builds the scope and variable tree of a trace and assigns
// every distinct signal a dense slot.
//
// Nodes live in a single arena and refer to each other by NodeID; a child's
// parent link is a plain index, so the tree has no owning back-pointers.
package hierarchy

import (
	"fmt"
	"iter"
	"math"

	"github.com/arloliu/wavemem/errs"
	"github.com/arloliu/wavemem/format"
	"github.com/arloliu/wavemem/internal/options"
)

type (
	// SignalID is the stable numeric id a front-end assigns to a signal.
	SignalID uint64

	// Ref is the dense slot of a signal, 0..NumSignals()-1, in order of first appearance.
	Ref uint32

	// NodeID is the position of a node in the hierarchy arena.
	NodeID uint32
)

// NoNode marks the absent parent of a root node.
const NoNode NodeID = math.MaxUint32

// Kind distinguishes scopes from variables.
type Kind uint8

const (
	KindScope Kind = iota + 1
	KindVar
)

func (k Kind) String() string {
	switch k {
	case KindScope:
		return "Scope"
	case KindVar:
		return "Var"
	default:
		return "Unknown"
	}
}

// Node is a scope or variable of the hierarchy.
type Node struct {
	Name     string
	Type     string
	Kind     Kind
	Parent   NodeID
	Children []NodeID

	// Signal is the slot of the variable's signal. Only meaningful for KindVar.
	Signal Ref
}

// SignalInfo describes one distinct signal.
type SignalInfo struct {
	ID     SignalID
	Ref    Ref
	Width  int
	Domain format.Domain

	// Vars lists every variable node that refers to the signal.
	Vars []NodeID
}

// Hierarchy is the immutable scope/variable tree of a trace.
// It is safe for concurrent use.
type Hierarchy struct {
	nodes   []Node
	roots   []NodeID
	signals []SignalInfo
	byID    map[SignalID]Ref
}

type buildConfig struct {
	flattenEmptyScopes bool
}

// BuildOption configures Build.
type BuildOption = options.Option[*buildConfig]

// WithFlattenEmptyScopes hoists the children of scopes with an empty name into
// their parent instead of rejecting the description.
func WithFlattenEmptyScopes(enabled bool) BuildOption {
	return options.NoError(func(c *buildConfig) {
		c.flattenEmptyScopes = enabled
	})
}

// Build validates desc and builds the hierarchy.
//
// Returns ErrInvalidHierarchy when a name is empty, a variable has children, a
// declaration has an unknown domain or a non-positive vector width, or two
// variables alias one signal id with different widths or domains.
func Build(desc Description, opts ...BuildOption) (*Hierarchy, error) {
	cfg := &buildConfig{}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	b := &builder{
		cfg: cfg,
		h: &Hierarchy{
			byID: make(map[SignalID]Ref),
		},
	}

	for i := range desc.Items {
		if err := b.add(&desc.Items[i], NoNode, "/"); err != nil {
			return nil, err
		}
	}

	return b.h, nil
}

type builder struct {
	cfg *buildConfig
	h   *Hierarchy
}

func (b *builder) add(item *Item, parent NodeID, path string) error {
	if item.Name == "" {
		if item.Var == nil && b.cfg.flattenEmptyScopes {
			for i := range item.Children {
				if err := b.add(&item.Children[i], parent, path); err != nil {
					return err
				}
			}

			return nil
		}

		return fmt.Errorf("%w: unnamed item under %s", errs.ErrInvalidHierarchy, path)
	}

	if uint64(len(b.h.nodes)) >= uint64(NoNode) {
		return fmt.Errorf("%w: too many nodes", errs.ErrInvalidHierarchy)
	}

	id := NodeID(len(b.h.nodes)) //nolint:gosec
	node := Node{
		Name:   item.Name,
		Type:   item.Type,
		Kind:   KindScope,
		Parent: parent,
	}

	if item.Var != nil {
		if len(item.Children) > 0 {
			return fmt.Errorf("%w: variable %s%s has children", errs.ErrInvalidHierarchy, path, item.Name)
		}
		ref, err := b.signal(item.Var, id, path+item.Name)
		if err != nil {
			return err
		}
		node.Kind = KindVar
		node.Signal = ref
	}

	b.h.nodes = append(b.h.nodes, node)
	if parent == NoNode {
		b.h.roots = append(b.h.roots, id)
	} else {
		b.h.nodes[parent].Children = append(b.h.nodes[parent].Children, id)
	}

	for i := range item.Children {
		if err := b.add(&item.Children[i], id, path+item.Name+"/"); err != nil {
			return err
		}
	}

	return nil
}

func (b *builder) signal(v *VarDesc, node NodeID, path string) (Ref, error) {
	if !v.Domain.Valid() {
		return 0, fmt.Errorf("%w: variable %s has unknown domain %d", errs.ErrInvalidHierarchy, path, v.Domain)
	}

	width := v.Width
	if v.Domain.IsBitVector() {
		if width <= 0 {
			return 0, fmt.Errorf("%w: variable %s has width %d", errs.ErrInvalidHierarchy, path, width)
		}
	} else {
		width = 0
	}

	if ref, ok := b.h.byID[v.ID]; ok {
		info := &b.h.signals[ref]
		if info.Width != width || info.Domain != v.Domain {
			return 0, fmt.Errorf("%w: variable %s aliases signal %d as %s/%d, declared %s/%d",
				errs.ErrInvalidHierarchy, path, v.ID, v.Domain, width, info.Domain, info.Width)
		}
		info.Vars = append(info.Vars, node)

		return ref, nil
	}

	ref := Ref(len(b.h.signals)) //nolint:gosec
	b.h.signals = append(b.h.signals, SignalInfo{
		ID:     v.ID,
		Ref:    ref,
		Width:  width,
		Domain: v.Domain,
		Vars:   []NodeID{node},
	})
	b.h.byID[v.ID] = ref

	return ref, nil
}

// NumNodes returns the number of scopes and variables.
func (h *Hierarchy) NumNodes() int {
	return len(h.nodes)
}

// NumSignals returns the number of distinct signals.
func (h *Hierarchy) NumSignals() int {
	return len(h.signals)
}

// Roots returns the top-level nodes in declaration order.
func (h *Hierarchy) Roots() []NodeID {
	return h.roots
}

// Node returns the node with the given id.
// The returned node must not be modified.
func (h *Hierarchy) Node(id NodeID) (*Node, bool) {
	if int(id) >= len(h.nodes) {
		return nil, false
	}

	return &h.nodes[id], true
}

// Lookup returns the slot of a signal id.
func (h *Hierarchy) Lookup(id SignalID) (Ref, bool) {
	ref, ok := h.byID[id]
	return ref, ok
}

// Signal returns the declaration of the signal in slot ref.
func (h *Hierarchy) Signal(ref Ref) (*SignalInfo, bool) {
	if int(ref) >= len(h.signals) {
		return nil, false
	}

	return &h.signals[ref], true
}

// SignalByID returns the declaration of a signal id.
//
// Returns ErrUnknownSignal if the id is not part of the hierarchy.
func (h *Hierarchy) SignalByID(id SignalID) (*SignalInfo, error) {
	ref, ok := h.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", errs.ErrUnknownSignal, id)
	}

	return &h.signals[ref], nil
}

// Signals yields every distinct signal in slot order.
func (h *Hierarchy) Signals() iter.Seq[*SignalInfo] {
	return func(yield func(*SignalInfo) bool) {
		for i := range h.signals {
			if !yield(&h.signals[i]) {
				return
			}
		}
	}
}

// Walk yields every node in depth-first declaration order.
func (h *Hierarchy) Walk() iter.Seq2[NodeID, *Node] {
	return func(yield func(NodeID, *Node) bool) {
		var stack []NodeID
		for i := len(h.roots) - 1; i >= 0; i-- {
			stack = append(stack, h.roots[i])
		}

		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			node := &h.nodes[id]
			if !yield(id, node) {
				return
			}
			for i := len(node.Children) - 1; i >= 0; i-- {
				stack = append(stack, node.Children[i])
			}
		}
	}
}
