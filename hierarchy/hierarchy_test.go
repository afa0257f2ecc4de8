package hierarchy

import (
	"testing"

	"github.com/arloliu/wavemem/errs"
	"github.com/arloliu/wavemem/format"
	"github.com/stretchr/testify/require"
)

func sampleDescription() Description {
	return Description{Items: []Item{
		Scope("top", "module",
			Var("clk", "wire", 7, 1, format.DomainTwoState),
			Scope("cpu", "module",
				Var("pc", "reg", 3, 32, format.DomainFourState),
				Var("state", "string", 9, 0, format.DomainString),
				Var("clk", "wire", 7, 1, format.DomainTwoState),
			),
			Var("temp", "real", 4, 64, format.DomainReal),
		),
	}}
}

func TestBuild(t *testing.T) {
	h, err := Build(sampleDescription())
	require.NoError(t, err)

	require.Equal(t, 7, h.NumNodes())
	require.Equal(t, 4, h.NumSignals())
	require.Len(t, h.Roots(), 1)

	t.Run("refs follow first appearance", func(t *testing.T) {
		for i, id := range []SignalID{7, 3, 9, 4} {
			ref, ok := h.Lookup(id)
			require.True(t, ok)
			require.Equal(t, Ref(i), ref)
		}
		_, ok := h.Lookup(100)
		require.False(t, ok)
	})

	t.Run("aliases share one signal", func(t *testing.T) {
		info, err := h.SignalByID(7)
		require.NoError(t, err)
		require.Len(t, info.Vars, 2)
		for _, nid := range info.Vars {
			node, ok := h.Node(nid)
			require.True(t, ok)
			require.Equal(t, "clk", node.Name)
			require.Equal(t, KindVar, node.Kind)
			require.Equal(t, info.Ref, node.Signal)
		}
	})

	t.Run("non-vector width is dropped", func(t *testing.T) {
		info, err := h.SignalByID(4)
		require.NoError(t, err)
		require.Equal(t, 0, info.Width)
		require.Equal(t, format.DomainReal, info.Domain)
	})

	t.Run("parents are back-references", func(t *testing.T) {
		root, ok := h.Node(h.Roots()[0])
		require.True(t, ok)
		require.Equal(t, NoNode, root.Parent)
		require.Len(t, root.Children, 3)

		cpu, ok := h.Node(root.Children[1])
		require.True(t, ok)
		require.Equal(t, "cpu", cpu.Name)
		require.Equal(t, KindScope, cpu.Kind)
		require.Equal(t, h.Roots()[0], cpu.Parent)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := h.SignalByID(100)
		require.ErrorIs(t, err, errs.ErrUnknownSignal)
		_, ok := h.Signal(Ref(4))
		require.False(t, ok)
		_, ok = h.Node(NodeID(99))
		require.False(t, ok)
	})
}

func TestWalk(t *testing.T) {
	h, err := Build(sampleDescription())
	require.NoError(t, err)

	var names []string
	for _, node := range h.Walk() {
		names = append(names, node.Name)
	}
	require.Equal(t, []string{"top", "clk", "cpu", "pc", "state", "clk", "temp"}, names)

	count := 0
	for range h.Walk() {
		count++
		if count == 2 {
			break
		}
	}
	require.Equal(t, 2, count)
}

func TestSignals(t *testing.T) {
	h, err := Build(sampleDescription())
	require.NoError(t, err)

	var ids []SignalID
	for info := range h.Signals() {
		ids = append(ids, info.ID)
	}
	require.Equal(t, []SignalID{7, 3, 9, 4}, ids)
}

func TestBuild_Invalid(t *testing.T) {
	tests := []struct {
		name string
		desc Description
	}{
		{
			name: "unnamed scope",
			desc: Description{Items: []Item{Scope("", "module")}},
		},
		{
			name: "unnamed variable",
			desc: Description{Items: []Item{Var("", "wire", 1, 1, format.DomainTwoState)}},
		},
		{
			name: "zero width vector",
			desc: Description{Items: []Item{Var("a", "wire", 1, 0, format.DomainFourState)}},
		},
		{
			name: "unknown domain",
			desc: Description{Items: []Item{Var("a", "wire", 1, 1, format.Domain(42))}},
		},
		{
			name: "alias width mismatch",
			desc: Description{Items: []Item{
				Var("a", "wire", 1, 4, format.DomainTwoState),
				Var("b", "wire", 1, 8, format.DomainTwoState),
			}},
		},
		{
			name: "alias domain mismatch",
			desc: Description{Items: []Item{
				Var("a", "wire", 1, 4, format.DomainTwoState),
				Var("b", "wire", 1, 4, format.DomainFourState),
			}},
		},
		{
			name: "variable with children",
			desc: Description{Items: []Item{{
				Name:     "a",
				Var:      &VarDesc{ID: 1, Width: 1, Domain: format.DomainTwoState},
				Children: []Item{Scope("b", "module")},
			}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.desc)
			require.ErrorIs(t, err, errs.ErrInvalidHierarchy)
		})
	}
}

func TestBuild_FlattenEmptyScopes(t *testing.T) {
	desc := Description{Items: []Item{
		Scope("top", "module",
			Scope("", "generate",
				Var("a", "wire", 1, 1, format.DomainTwoState),
			),
			Var("b", "wire", 2, 1, format.DomainTwoState),
		),
	}}

	_, err := Build(desc)
	require.ErrorIs(t, err, errs.ErrInvalidHierarchy)

	h, err := Build(desc, WithFlattenEmptyScopes(true))
	require.NoError(t, err)
	require.Equal(t, 3, h.NumNodes())

	root, _ := h.Node(h.Roots()[0])
	require.Len(t, root.Children, 2)
	a, _ := h.Node(root.Children[0])
	require.Equal(t, "a", a.Name)
	require.Equal(t, h.Roots()[0], a.Parent)
}

func TestBuild_Empty(t *testing.T) {
	h, err := Build(Description{})
	require.NoError(t, err)
	require.Equal(t, 0, h.NumNodes())
	require.Equal(t, 0, h.NumSignals())
	require.Empty(t, h.Roots())
}
