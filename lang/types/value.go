// Package types defines the value model shared by all script threads. Values
// are created inside one interpreter context but may be published to other
// threads through the shared object store; the Freeze method is the contract
// that makes such publishing safe.
package types

// Value is the interface implemented by any value manipulated by the runtime.
type Value interface {
	// String returns the string representation of the value.
	String() string

	// Type returns a short string describing the value's type.
	Type() string

	// Freeze causes the value, and all values transitively reachable from it
	// through collections, to be marked as frozen. All subsequent mutations to
	// the data structure will fail dynamically, making the data structure
	// immutable and safe for publishing to other threads running concurrently.
	Freeze()

	// Truth returns the truth value of an object.
	Truth() Bool
}

// An Ordered type is a type whose values are ordered: if x and y are of the
// same Ordered type, then x must be less than y, greater than y, or equal to
// y.
type Ordered interface {
	Value
	// Cmp compares two values x and y of the same ordered type. It returns
	// negative if x < y, positive if x > y, and zero if the values are equal.
	Cmp(y Value) (int, error)
}

// An Iterable abstracts a sequence of values. An iterable value may be
// iterated over.
type Iterable interface {
	Value
	// Iterate returns an Iterator. It must be followed by call to Iterator.Done.
	Iterate() Iterator
}

// An Indexable is a sequence of known length that supports efficient random
// access.
type Indexable interface {
	Value
	// Index returns the value at the specified index, which must satisfy 0 <= i
	// < Len().
	Index(i int) Value
	Len() int
}

// A HasSetIndex is an Indexable value whose elements may be assigned (x[i] =
// y).
type HasSetIndex interface {
	Indexable
	SetIndex(index int, v Value) error
}

// An Iterator provides a sequence of values to the caller. The caller must
// call Done when the iterator is no longer needed.
//
// Example usage:
//
//	iter := iterable.Iterate()
//	defer iter.Done()
//	var x Value
//	for iter.Next(&x) {
//		...
//	}
type Iterator interface {
	// If the iterator is exhausted, Next returns false. Otherwise it sets *p to
	// the current element of the sequence, advances the iterator, and returns
	// true.
	Next(p *Value) bool
	// Done must be called on the Iterator once it is no longer needed.
	Done()
}

// A Mapping is a mapping from keys to values, such as a map.
type Mapping interface {
	Value
	// Get returns the value corresponding to the specified key, or !found if the
	// mapping does not contain the key.
	Get(Value) (v Value, found bool, err error)
}

// A HasSetKey supports map update using x[k]=v syntax.
type HasSetKey interface {
	Mapping
	SetKey(k, v Value) error
}
