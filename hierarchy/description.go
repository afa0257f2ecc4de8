package hierarchy

import "github.com/arloliu/wavemem/format"

// Description is the static hierarchy a format front-end hands to the loader:
// an ordered forest of scopes and variables.
type Description struct {
	Items []Item
}

// Item is one entry of a Description.
//
// An Item with a nil Var is a scope and may have children. An Item with a
// non-nil Var is a variable and must not have children.
type Item struct {
	// Name is the local name of the scope or variable.
	Name string

	// Type is the front-end's type tag, e.g. "module" or "wire". The engine
	// carries it through without interpreting it.
	Type string

	// Children are the ordered members of a scope.
	Children []Item

	// Var describes the signal a variable refers to.
	Var *VarDesc
}

// VarDesc is the signal declaration of a variable.
type VarDesc struct {
	// ID is the front-end's stable signal id. Several variables may share one
	// id when they alias the same signal.
	ID SignalID

	// Width is the bit width of vector signals. It is ignored for string and real signals.
	Width int

	// Domain is the value domain of the signal.
	Domain format.Domain
}

// Scope returns a scope item.
func Scope(name, typ string, children ...Item) Item {
	return Item{Name: name, Type: typ, Children: children}
}

// Var returns a variable item.
func Var(name, typ string, id SignalID, width int, domain format.Domain) Item {
	return Item{
		Name: name,
		Type: typ,
		Var:  &VarDesc{ID: id, Width: width, Domain: domain},
	}
}
