package grammar

import (
	"fmt"
	"regexp"
	"strconv"
	"sync/atomic"

	"github.com/cmunell/featurespace/feature"
)

// KindAffix is the registry kind of Affix.
const KindAffix = "Affix"

// Affix derives a Filtered view of a source vocabulary holding the terms that
// share the parent term's first (prefix) or last (suffix) length characters.
type Affix struct {
	*feature.ParamSet

	name     string
	source   string
	mode     string
	length   int
	minCount int
	match    string

	re atomic.Pointer[regexp.Regexp]
}

var _ Rule = (*Affix)(nil)

// NewAffix creates a suffix rule of length 3 over the parent's own generator.
func NewAffix(name string) *Affix {
	r := &Affix{
		name:     name,
		source:   VarSourceGenerator,
		mode:     feature.MatchSuffix,
		length:   3,
		minCount: 1,
	}
	p := feature.NewParamSet(name)
	p.String("source", &r.source)
	p.Enum("mode", &r.mode, feature.MatchPrefix, feature.MatchSuffix)
	p.Int("length", &r.length, 1)
	p.Int("minCount", &r.minCount, 0)
	p.String("match", &r.match)
	r.ParamSet = p
	return r
}

func (r *Affix) Name() string { return r.name }
func (r *Affix) Kind() string { return KindAffix }

// Apply returns one Filtered child, or none if the parent term is shorter
// than length or its generator does not satisfy match.
func (r *Affix) Apply(env Env) ([]feature.Generator, error) {
	ok, err := matchSource(r.name, r.match, &r.re, env)
	if err != nil || !ok {
		return nil, err
	}
	runes := []rune(env.SourceTerm)
	if len(runes) < r.length {
		return nil, nil
	}
	var pattern string
	if r.mode == feature.MatchPrefix {
		pattern = string(runes[:r.length])
	} else {
		pattern = string(runes[len(runes)-r.length:])
	}

	source := env.Expand(r.source)
	child := feature.NewFiltered(fmt.Sprintf("%s[%s:%s]", r.name, source, pattern), source)
	if err := feature.Apply(child, map[string]string{
		"mode":     r.mode,
		"pattern":  pattern,
		"minCount": strconv.Itoa(r.minCount),
	}); err != nil {
		return nil, err
	}
	return []feature.Generator{child}, nil
}

// matchSource reports whether env's generator satisfies the rule's match
// expression. The compiled expression is cached in re.
func matchSource(rule, expr string, re *atomic.Pointer[regexp.Regexp], env Env) (bool, error) {
	if expr == "" {
		return true, nil
	}
	c := re.Load()
	if c == nil || c.String() != expr {
		var err error
		c, err = regexp.Compile(expr)
		if err != nil {
			return false, feature.NewConfigurationError(rule, "match", expr, fmt.Errorf("%w: %v", feature.ErrInvalidValue, err))
		}
		re.Store(c)
	}
	return c.MatchString(env.SourceGenerator), nil
}
