package formula

import (
	"strconv"
	"strings"
)

// OpCode tags an RPN instruction.
type OpCode uint8

const (
	OpNumber OpCode = iota + 1
	OpVariable
	OpOperator
	OpFunction
)

// NegateSymbol is the operator symbol emitted for unary minus.
const NegateSymbol = "neg"

// Instruction is one step of a compiled program. Num is set for OpNumber,
// Name holds the (lower-cased) variable or function name or the operator
// symbol, Argc is the argument count of an OpFunction.
type Instruction struct {
	Op   OpCode
	Num  float64
	Name string
	Argc int
}

// Program is a flat postfix instruction sequence. Programs are immutable once
// built and safe to share between goroutines.
type Program []Instruction

// Variables lists the distinct variable names referenced by the program in
// first-use order.
func (p Program) Variables() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, in := range p {
		if in.Op != OpVariable {
			continue
		}
		if _, ok := seen[in.Name]; ok {
			continue
		}
		seen[in.Name] = struct{}{}
		out = append(out, in.Name)
	}
	return out
}

// String renders the program in space separated postfix notation, e.g.
// "2 3 4 * +" or "1 5 3 max/3".
func (p Program) String() string {
	parts := make([]string, 0, len(p))
	for _, in := range p {
		switch in.Op {
		case OpNumber:
			parts = append(parts, strconv.FormatFloat(in.Num, 'g', -1, 64))
		case OpFunction:
			parts = append(parts, in.Name+"/"+strconv.Itoa(in.Argc))
		default:
			parts = append(parts, in.Name)
		}
	}
	return strings.Join(parts, " ")
}
