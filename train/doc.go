// Package train fits binary logistic models over a feature set whose index
// space may grow during training.
//
// Two variants are supported. Plain uses one weight per global index.
// TwoChannel keeps a non-negative positive and negative channel per index and
// combines derived features multiplicatively with the excess weight of their
// parents:
//
//	primitive i:  C_i = u_i - v_i
//	derived i:    C_i = (sum over parents p of max(0, |C_p| - t)) * (u_i - v_i)
//
// Every ExpandEvery steps, indices whose weight (or either channel) exceeds
// the threshold t are expanded through the grammar rules, and the weight
// vector grows with the feature set.
package train
