package grammar

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/cmunell/featurespace/feature"
)

// KindTemplate is the registry kind of Template.
const KindTemplate = "Template"

const paramPrefix = "param."

// Template instantiates a registered generator kind per parent, substituting
// the template variables into the child name and every "param.<key>" value.
type Template struct {
	name   string
	kind   string
	child  string
	match  string
	params map[string]string

	gens *feature.Registry
	re   atomic.Pointer[regexp.Regexp]
}

var _ Rule = (*Template)(nil)

// NewTemplate creates a template rule resolving kinds through gens.
func NewTemplate(name string, gens *feature.Registry) *Template {
	if gens == nil {
		gens = feature.DefaultRegistry()
	}
	return &Template{
		name:   name,
		kind:   feature.KindFiltered,
		child:  name + "[" + VarSource + "]",
		params: make(map[string]string),
		gens:   gens,
	}
}

func (r *Template) Name() string { return r.name }
func (r *Template) Kind() string { return KindTemplate }

// ParameterNames returns kind, name, match and the sorted "param.<key>" entries.
func (r *Template) ParameterNames() []string {
	names := []string{"kind", "name", "match"}
	keys := make([]string, 0, len(r.params))
	for k := range r.params {
		keys = append(keys, paramPrefix+k)
	}
	sort.Strings(keys)
	return append(names, keys...)
}

func (r *Template) ParameterValue(name string) (string, error) {
	switch name {
	case "kind":
		return r.kind, nil
	case "name":
		return r.child, nil
	case "match":
		return r.match, nil
	}
	if k, ok := strings.CutPrefix(name, paramPrefix); ok {
		if v, ok := r.params[k]; ok {
			return v, nil
		}
	}
	return "", feature.NewConfigurationError(r.name, name, "", feature.ErrUnknownParameter)
}

// SetParameterValue accepts any "param.<key>"; keys are validated against the
// child kind when the rule is applied.
func (r *Template) SetParameterValue(name, value string) error {
	switch name {
	case "kind":
		if _, err := r.gens.New(value, "probe"); err != nil {
			return feature.NewConfigurationError(r.name, name, value, feature.ErrUnknownKind)
		}
		r.kind = value
	case "name":
		if value == "" {
			return feature.NewConfigurationError(r.name, name, value, fmt.Errorf("%w: empty name", feature.ErrInvalidValue))
		}
		r.child = value
	case "match":
		if _, err := regexp.Compile(value); err != nil {
			return feature.NewConfigurationError(r.name, name, value, fmt.Errorf("%w: %v", feature.ErrInvalidValue, err))
		}
		r.match = value
	default:
		k, ok := strings.CutPrefix(name, paramPrefix)
		if !ok || k == "" {
			return feature.NewConfigurationError(r.name, name, value, feature.ErrUnknownParameter)
		}
		r.params[k] = value
	}
	return nil
}

// Apply instantiates one child for env.
func (r *Template) Apply(env Env) ([]feature.Generator, error) {
	ok, err := matchSource(r.name, r.match, &r.re, env)
	if err != nil || !ok {
		return nil, err
	}
	child, err := r.gens.New(r.kind, env.Expand(r.child))
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(r.params))
	for k, v := range r.params {
		values[k] = env.Expand(v)
	}
	if err := feature.Apply(child, values); err != nil {
		return nil, fmt.Errorf("rule %q: %w", r.name, err)
	}
	return []feature.Generator{child}, nil
}
