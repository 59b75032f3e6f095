package types

import (
	"fmt"
	"strings"
)

// A Tuple represents an immutable list of values. The zero value is a valid
// empty tuple. Callers should not modify the underlying slice after a tuple
// has been shared.
type Tuple []Value

var (
	_ Value     = Tuple(nil)
	_ Indexable = Tuple(nil)
	_ Iterable  = Tuple(nil)
)

func (t Tuple) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, v := range t {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprint(&sb, v.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

func (t Tuple) Type() string      { return "tuple" }
func (t Tuple) Truth() Bool       { return len(t) > 0 }
func (t Tuple) Len() int          { return len(t) }
func (t Tuple) Index(i int) Value { return t[i] }

// Freeze freezes every element of the tuple; the tuple itself is already
// immutable.
func (t Tuple) Freeze() {
	for _, v := range t {
		v.Freeze()
	}
}

func (t Tuple) Iterate() Iterator { return &tupleIterator{t: t} }

type tupleIterator struct {
	t Tuple
	i int
}

func (it *tupleIterator) Next(p *Value) bool {
	if it.i < len(it.t) {
		*p = it.t[it.i]
		it.i++
		return true
	}
	return false
}

func (it *tupleIterator) Done() {}
