package grammar

import "strings"

// Template variables.
const (
	VarSourceGenerator = "${SRC_GEN}"
	VarSourceTerm      = "${SRC_TERM}"
	VarSource          = "${SRC}"
)

// Env describes the parent feature a rule is applied to.
type Env struct {
	SourceGenerator string
	SourceTerm      string
	Combined        string
}

// Expand substitutes the template variables in s.
func (e Env) Expand(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return strings.NewReplacer(
		VarSourceGenerator, e.SourceGenerator,
		VarSourceTerm, e.SourceTerm,
		VarSource, e.Combined,
	).Replace(s)
}
