package types

import (
	"strconv"
	"strings"
)

// String is the type of a text string. It encapsulates an immutable sequence
// of bytes.
type String string

var (
	_ Value     = String("")
	_ Ordered   = String("")
	_ Indexable = String("")
)

func (s String) String() string    { return strconv.Quote(string(s)) }
func (s String) Type() string      { return "string" }
func (s String) Freeze()           {} // immutable
func (s String) Truth() Bool       { return len(s) > 0 }
func (s String) Len() int          { return len(s) }
func (s String) Index(i int) Value { return s[i : i+1] }

func (s String) Cmp(y Value) (int, error) {
	sb := y.(String)
	return strings.Compare(string(s), string(sb)), nil
}
