package formula

import "strings"

// Env is the variable environment an expression is evaluated against. Keys
// are folded to lower case once, at construction.
type Env struct {
	values map[string]float64
}

// NewEnv builds an environment from code→value pairs. When two codes differ
// only by case, the already lower-cased one wins.
func NewEnv(values map[string]float64) Env {
	folded := make(map[string]float64, len(values))
	for code, v := range values {
		lower := strings.ToLower(code)
		if lower == code {
			continue
		}
		folded[lower] = v
	}
	for code, v := range values {
		if strings.ToLower(code) == code {
			folded[code] = v
		}
	}
	return Env{values: folded}
}

// Lookup returns the value bound to name, ignoring case.
func (e Env) Lookup(name string) (float64, bool) {
	v, ok := e.values[strings.ToLower(name)]
	return v, ok
}

// Len reports the number of bound variables.
func (e Env) Len() int { return len(e.values) }

// Values returns a copy of the normalised bindings.
func (e Env) Values() map[string]float64 {
	out := make(map[string]float64, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}

func (e Env) lookupFolded(name string) (float64, bool) {
	v, ok := e.values[name]
	return v, ok
}
