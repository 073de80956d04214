package formula

import "math"

type builtin func(args []float64) float64

// builtins is the fixed function library. Names are lower case.
var builtins = map[string]builtin{
	"min":   minOf,
	"max":   maxOf,
	"abs":   firstArg(math.Abs),
	"ceil":  firstArg(math.Ceil),
	"floor": firstArg(math.Floor),
	"round": roundTo,
}

// IsBuiltin reports whether name (case-insensitive after parsing) is part of
// the function library.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

func minOf(args []float64) float64 {
	if len(args) == 0 {
		return 0
	}
	m := args[0]
	for _, v := range args[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(args []float64) float64 {
	if len(args) == 0 {
		return 0
	}
	m := args[0]
	for _, v := range args[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func firstArg(fn func(float64) float64) builtin {
	return func(args []float64) float64 {
		if len(args) == 0 {
			return 0
		}
		return fn(args[0])
	}
}

// roundTo implements round(x[, precision]); precision is truncated to an
// integer and limited to ±15 digits.
func roundTo(args []float64) float64 {
	if len(args) == 0 {
		return 0
	}
	x := args[0]
	precision := 0.0
	if len(args) > 1 {
		precision = math.Trunc(args[1])
	}
	precision = math.Max(-15, math.Min(15, precision))
	if precision == 0 {
		return math.Round(x)
	}
	factor := math.Pow(10, precision)
	return math.Round(x*factor) / factor
}
