package featureset

import (
	"fmt"

	"github.com/cmunell/featurespace/feature"
)

// State is the persisted form of a feature set.
type State struct {
	Generators []*feature.State `json:"generators"`
	Ranges     []Range          `json:"ranges"`
	Binary     string           `json:"binary,omitempty"`
}

// State returns the generator states and ranges in add order.
func (fs *FeatureSet) State() *State {
	l := fs.layout.Load()
	s := &State{
		Generators: make([]*feature.State, len(l.gens)),
		Ranges:     append([]Range(nil), l.ranges...),
		Binary:     fs.binary,
	}
	for i, g := range l.gens {
		s.Generators[i] = g.State()
	}
	return s
}

// Restore rebuilds a feature set from s, creating generators through reg.
// If reg is nil the registry from WithRegistry, or the default registry, is used.
// The restored ranges must reproduce the persisted ones.
func Restore(s *State, reg *feature.Registry, opts ...Option) (*FeatureSet, error) {
	if s == nil {
		return nil, fmt.Errorf("nil feature set state")
	}
	fs := New(opts...)
	if reg == nil {
		reg = fs.opts.registry
	}
	if reg == nil {
		reg = feature.DefaultRegistry()
	}
	fs.binary = s.Binary
	for _, gs := range s.Generators {
		g, err := reg.FromState(gs)
		if err != nil {
			return nil, fmt.Errorf("restore generator %q: %w", gsName(gs), err)
		}
		if err := fs.Add(g); err != nil {
			return nil, err
		}
	}
	if s.Ranges != nil {
		got := fs.layout.Load().ranges
		if len(got) != len(s.Ranges) {
			return nil, fmt.Errorf("restored %d ranges, want %d", len(got), len(s.Ranges))
		}
		for i := range got {
			if got[i] != s.Ranges[i] {
				return nil, fmt.Errorf("generator %q: restored range %v, want %v", gsName(s.Generators[i]), got[i], s.Ranges[i])
			}
		}
	}
	return fs, nil
}

func gsName(s *feature.State) string {
	if s == nil {
		return "<nil>"
	}
	return s.Name
}
