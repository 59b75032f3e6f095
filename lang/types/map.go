package types

import (
	"fmt"

	"github.com/dolthub/swiss"
)

// A Map represents a map or dictionary. If you know the exact final number of
// entries, it is more efficient to call NewMap. Iteration yields (key, value)
// tuples in insertion order.
type Map struct {
	m      *swiss.Map[Value, Value]
	keys   []Value // insertion order
	frozen bool
}

var (
	_ Value     = (*Map)(nil)
	_ Mapping   = (*Map)(nil)
	_ HasSetKey = (*Map)(nil)
	_ Iterable  = (*Map)(nil)
)

// NewMap returns a map with initial capacity for at least size items.
func NewMap(size int) *Map {
	m := swiss.NewMap[Value, Value](uint32(size))
	return &Map{m: m}
}

func (m *Map) String() string { return fmt.Sprintf("map(%p)", m) }
func (m *Map) Type() string   { return "map" }
func (m *Map) Truth() Bool    { return True }
func (m *Map) Len() int       { return len(m.keys) }

func (m *Map) Get(k Value) (Value, bool, error) {
	v, ok := m.m.Get(k)
	return v, ok, nil
}

func (m *Map) SetKey(k, v Value) error {
	if m.frozen {
		return fmt.Errorf("cannot insert into frozen map")
	}
	if _, ok := m.m.Get(k); !ok {
		m.keys = append(m.keys, k)
	}
	m.m.Put(k, v)
	return nil
}

func (m *Map) Freeze() {
	if m.frozen {
		return
	}
	m.frozen = true
	for _, k := range m.keys {
		k.Freeze()
		if v, ok := m.m.Get(k); ok {
			v.Freeze()
		}
	}
}

func (m *Map) Iterate() Iterator { return &mapIterator{m: m} }

type mapIterator struct {
	m *Map
	i int
}

func (it *mapIterator) Next(p *Value) bool {
	if it.i >= len(it.m.keys) {
		return false
	}
	k := it.m.keys[it.i]
	it.i++
	v, _ := it.m.m.Get(k)
	*p = Tuple{k, v}
	return true
}

func (it *mapIterator) Done() {}
