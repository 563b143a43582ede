package grammar

import "errors"

var (
	// ErrCycle is returned when an edge would close a derivation cycle.
	ErrCycle = errors.New("grammar: edge would create a cycle")
	// ErrPrimitiveChild is returned when an edge targets a primitive index.
	ErrPrimitiveChild = errors.New("grammar: primitive index cannot be a child")
	// ErrIndexOutOfRange is returned for indices outside the feature set.
	ErrIndexOutOfRange = errors.New("grammar: index out of range")
)
