package feature

import (
	"fmt"
	"slices"
	"strconv"
)

// Params is the configuration surface every generator and rule exposes so an
// external loader can round-trip configuration.
type Params interface {
	ParameterNames() []string
	ParameterValue(name string) (string, error)
	SetParameterValue(name, value string) error
}

type param struct {
	name string
	get  func() string
	set  func(string) error
}

// ParamSet is an ordered set of named parameters bound to fields of a component.
// Components embed a *ParamSet to implement Params.
type ParamSet struct {
	owner  string
	params []param
	frozen func() bool
}

// NewParamSet creates an empty parameter set for the named component.
func NewParamSet(owner string) *ParamSet {
	return &ParamSet{owner: owner}
}

// FreezeWhen makes SetParameterValue fail with ErrFrozen whenever fn returns true.
func (p *ParamSet) FreezeWhen(fn func() bool) { p.frozen = fn }

// ParameterNames returns the parameter names in declaration order.
func (p *ParamSet) ParameterNames() []string {
	names := make([]string, len(p.params))
	for i, pr := range p.params {
		names[i] = pr.name
	}
	return names
}

// ParameterValue returns the current value of a parameter.
func (p *ParamSet) ParameterValue(name string) (string, error) {
	pr, ok := p.lookup(name)
	if !ok {
		return "", NewConfigurationError(p.owner, name, "", ErrUnknownParameter)
	}
	return pr.get(), nil
}

// SetParameterValue parses and assigns a parameter.
func (p *ParamSet) SetParameterValue(name, value string) error {
	pr, ok := p.lookup(name)
	if !ok {
		return NewConfigurationError(p.owner, name, value, ErrUnknownParameter)
	}
	if p.frozen != nil && p.frozen() {
		return NewConfigurationError(p.owner, name, value, ErrFrozen)
	}
	if err := pr.set(value); err != nil {
		return NewConfigurationError(p.owner, name, value, fmt.Errorf("%w: %v", ErrInvalidValue, err))
	}
	return nil
}

// Values returns all parameters as a name->value map.
func (p *ParamSet) Values() map[string]string {
	m := make(map[string]string, len(p.params))
	for _, pr := range p.params {
		m[pr.name] = pr.get()
	}
	return m
}

func (p *ParamSet) lookup(name string) (param, bool) {
	for _, pr := range p.params {
		if pr.name == name {
			return pr, true
		}
	}
	return param{}, false
}

// String binds a free-form string parameter.
func (p *ParamSet) String(name string, ptr *string) {
	p.params = append(p.params, param{
		name: name,
		get:  func() string { return *ptr },
		set:  func(v string) error { *ptr = v; return nil },
	})
}

// Enum binds a string parameter restricted to allowed values.
func (p *ParamSet) Enum(name string, ptr *string, allowed ...string) {
	p.params = append(p.params, param{
		name: name,
		get:  func() string { return *ptr },
		set: func(v string) error {
			if !slices.Contains(allowed, v) {
				return fmt.Errorf("must be one of %v", allowed)
			}
			*ptr = v
			return nil
		},
	})
}

// Int binds an integer parameter with a lower bound.
func (p *ParamSet) Int(name string, ptr *int, minValue int) {
	p.params = append(p.params, param{
		name: name,
		get:  func() string { return strconv.Itoa(*ptr) },
		set: func(v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			if n < minValue {
				return fmt.Errorf("must be >= %d", minValue)
			}
			*ptr = n
			return nil
		},
	})
}

// Float binds a float parameter.
func (p *ParamSet) Float(name string, ptr *float64) {
	p.params = append(p.params, param{
		name: name,
		get:  func() string { return strconv.FormatFloat(*ptr, 'g', -1, 64) },
		set: func(v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return err
			}
			*ptr = f
			return nil
		},
	})
}

// Bool binds a boolean parameter.
func (p *ParamSet) Bool(name string, ptr *bool) {
	p.params = append(p.params, param{
		name: name,
		get:  func() string { return strconv.FormatBool(*ptr) },
		set: func(v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			*ptr = b
			return nil
		},
	})
}

// Apply sets every parameter of values on target in target's declaration order.
// Names unknown to target produce a ConfigurationError.
func Apply(target Params, values map[string]string) error {
	known := target.ParameterNames()
	for _, name := range known {
		if v, ok := values[name]; ok {
			if err := target.SetParameterValue(name, v); err != nil {
				return err
			}
		}
	}
	for name, v := range values {
		if !slices.Contains(known, name) {
			return target.SetParameterValue(name, v)
		}
	}
	return nil
}
