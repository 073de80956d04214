package formula

import (
	"errors"
	"fmt"
)

var (
	// ErrSyntax is matched by every *SyntaxError via errors.Is.
	ErrSyntax = errors.New("formula: syntax error")
	// ErrEvaluation is matched by every *EvalError via errors.Is.
	ErrEvaluation = errors.New("formula: evaluation error")
)

// SyntaxKind classifies a SyntaxError.
type SyntaxKind int

const (
	UnexpectedChar SyntaxKind = iota + 1
	MismatchedParentheses
	MisplacedComma
	TooLong
	TooDeep
)

func (k SyntaxKind) String() string {
	switch k {
	case UnexpectedChar:
		return "unexpected character"
	case MismatchedParentheses:
		return "mismatched parentheses"
	case MisplacedComma:
		return "misplaced comma"
	case TooLong:
		return "expression too long"
	case TooDeep:
		return "expression nested too deeply"
	default:
		return "syntax error"
	}
}

// SyntaxError reports a tokenize or parse failure. Pos is a byte offset into
// the rewritten expression, or -1 when the error is not tied to one position.
type SyntaxError struct {
	Kind SyntaxKind
	Pos  int
	Char rune
}

func (e *SyntaxError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Kind == UnexpectedChar:
		return fmt.Sprintf("formula: %s %q at %d", e.Kind, e.Char, e.Pos)
	case e.Pos >= 0:
		return fmt.Sprintf("formula: %s at %d", e.Kind, e.Pos)
	default:
		return fmt.Sprintf("formula: %s", e.Kind)
	}
}

// Is allows errors.Is(err, ErrSyntax).
func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax
}

// EvalKind classifies an EvalError.
type EvalKind int

const (
	UnknownName EvalKind = iota + 1
	UnknownFunction
	Malformed
)

func (k EvalKind) String() string {
	switch k {
	case UnknownName:
		return "unknown name"
	case UnknownFunction:
		return "unknown function"
	case Malformed:
		return "malformed expression"
	default:
		return "evaluation error"
	}
}

// EvalError is returned by strict evaluation only. Lenient evaluation maps
// every one of these conditions to 0.
type EvalError struct {
	Kind EvalKind
	Name string
}

func (e *EvalError) Error() string {
	if e == nil {
		return ""
	}
	if e.Name != "" {
		return fmt.Sprintf("formula: %s %q", e.Kind, e.Name)
	}
	return fmt.Sprintf("formula: %s", e.Kind)
}

// Is allows errors.Is(err, ErrEvaluation).
func (e *EvalError) Is(target error) bool {
	return target == ErrEvaluation
}
