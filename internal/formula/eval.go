package formula

import "math"

// Mode selects how evaluation treats unknown names and malformed programs.
type Mode int

const (
	// Lenient maps unknown variables and functions to 0 and never fails.
	// This is the pricing-safe default.
	Lenient Mode = iota
	// Strict reports those conditions as *EvalError.
	Strict
)

// Eval executes a compiled program against env. It is an iterative stack
// machine: memory is bounded by the program length and there is no
// recursion. Arithmetic never fails: division and modulo by exactly zero
// yield 0 and non-finite results are coerced to 0.
func Eval(p Program, env Env, mode Mode) (float64, error) {
	stack := make([]float64, 0, len(p))

	// pop returns the top value; on underflow it reports false and yields 0.
	pop := func() (float64, bool) {
		if len(stack) == 0 {
			return 0, false
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, true
	}

	for _, in := range p {
		switch in.Op {
		case OpNumber:
			stack = append(stack, in.Num)

		case OpVariable:
			v, ok := env.lookupFolded(in.Name)
			if !ok {
				if mode == Strict {
					return 0, &EvalError{Kind: UnknownName, Name: in.Name}
				}
				v = 0
			}
			stack = append(stack, v)

		case OpOperator:
			if in.Name == NegateSymbol {
				v, ok := pop()
				if !ok && mode == Strict {
					return 0, &EvalError{Kind: Malformed}
				}
				stack = append(stack, -v)
				continue
			}
			right, okR := pop()
			left, okL := pop()
			if (!okR || !okL) && mode == Strict {
				return 0, &EvalError{Kind: Malformed}
			}
			stack = append(stack, applyOperator(in.Name, left, right))

		case OpFunction:
			fn, known := builtins[in.Name]
			argc := in.Argc
			if argc > len(stack) {
				if mode == Strict {
					return 0, &EvalError{Kind: Malformed, Name: in.Name}
				}
				argc = len(stack)
			}
			args := make([]float64, argc)
			copy(args, stack[len(stack)-argc:])
			stack = stack[:len(stack)-argc]
			if !known {
				if mode == Strict {
					return 0, &EvalError{Kind: UnknownFunction, Name: in.Name}
				}
				stack = append(stack, 0)
				continue
			}
			stack = append(stack, finite(fn(args)))
		}
	}

	switch len(stack) {
	case 0:
		return 0, nil
	case 1:
		return finite(stack[0]), nil
	default:
		if mode == Strict {
			return 0, &EvalError{Kind: Malformed}
		}
		return finite(stack[len(stack)-1]), nil
	}
}

func applyOperator(sym string, left, right float64) float64 {
	switch sym {
	case "+":
		return left + right
	case "-":
		return left - right
	case "*":
		return left * right
	case "/":
		if right == 0 {
			return 0
		}
		return left / right
	case "%":
		if right == 0 {
			return 0
		}
		return math.Mod(left, right)
	case "^":
		return finite(math.Pow(left, right))
	default:
		return 0
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
