package data

import (
	"fmt"
	"slices"
)

// Label is a class label. The empty label means "unlabeled".
type Label string

// String returns the label text.
func (l Label) String() string { return string(l) }

// Boolean labels produced by binarization.
const (
	True  Label = "true"
	False Label = "false"
)

// LabelSpace is an ordered set of labels.
type LabelSpace struct {
	labels []Label
	index  map[Label]int
}

// NewLabelSpace creates a label space from labels, dropping duplicates and empties.
func NewLabelSpace(labels ...Label) *LabelSpace {
	ls := &LabelSpace{index: make(map[Label]int)}
	for _, l := range labels {
		ls.add(l)
	}
	return ls
}

// BooleanSpace returns the {true, false} label space.
func BooleanSpace() *LabelSpace {
	return NewLabelSpace(True, False)
}

func (ls *LabelSpace) add(l Label) {
	if l == "" {
		return
	}
	if _, ok := ls.index[l]; ok {
		return
	}
	ls.index[l] = len(ls.labels)
	ls.labels = append(ls.labels, l)
}

// Labels returns the labels in order.
func (ls *LabelSpace) Labels() []Label { return slices.Clone(ls.labels) }

// Len returns the number of labels.
func (ls *LabelSpace) Len() int { return len(ls.labels) }

// Contains reports whether l is in the space.
func (ls *LabelSpace) Contains(l Label) bool {
	_, ok := ls.index[l]
	return ok
}

// Index returns the position of l.
func (ls *LabelSpace) Index(l Label) (int, bool) {
	i, ok := ls.index[l]
	return i, ok
}

// Parse converts a string to a label of this space.
func (ls *LabelSpace) Parse(s string) (Label, error) {
	l := Label(s)
	if !ls.Contains(l) {
		return "", fmt.Errorf("label %q not in label space", s)
	}
	return l, nil
}

// LabelIndicator maps a label space onto the boolean space.
type LabelIndicator struct {
	// Name identifies the indicator (typically the positive label).
	Name string
	// Positive reports whether a source label maps to True.
	Positive func(Label) bool
}

// Indicator returns the one-vs-rest indicator for label l.
func Indicator(l Label) LabelIndicator {
	return LabelIndicator{
		Name:     l.String(),
		Positive: func(x Label) bool { return x == l },
	}
}

// Apply maps a source label. Unlabeled stays unlabeled.
func (ind LabelIndicator) Apply(l Label) Label {
	if l == "" {
		return ""
	}
	if ind.Positive != nil && ind.Positive(l) {
		return True
	}
	return False
}
