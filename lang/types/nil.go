package types

// NilType is the type of Nil. Its only legal value is Nil.
type NilType byte

// Nil is the nil value.
const Nil = NilType(0)

var _ Value = Nil

func (NilType) String() string { return "nil" }
func (NilType) Type() string   { return "nil" }
func (NilType) Freeze()        {} // immutable
func (NilType) Truth() Bool    { return False }
