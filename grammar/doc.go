// Package grammar grows a feature space during training.
//
// A Rule maps a high-weight feature (its generator reference and term) to new
// child generators. The Expander applies every rule to a chosen global index,
// fits the children on the training partition, drops child terms that are
// already allocated, and appends the rest to the feature set as new
// contiguous ranges. Parent to child edges are recorded in a Graph, a DAG over
// global indices in which primitive indices (those present before training)
// are never children.
//
// Rule templates may reference the parent through three variables:
//
//	${SRC_GEN}   reference name of the parent's generator
//	${SRC_TERM}  the parent's term
//	${SRC}       the parent's display name, "generator_term"
package grammar
