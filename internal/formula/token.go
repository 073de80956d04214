package formula

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// TokenKind identifies the lexical class of a token.
type TokenKind int

const (
	TokenNumber TokenKind = iota + 1
	TokenIdentifier
	TokenOperator
	TokenLParen
	TokenRParen
	TokenComma
)

// String returns the token kind name.
func (k TokenKind) String() string {
	switch k {
	case TokenNumber:
		return "NUMBER"
	case TokenIdentifier:
		return "IDENT"
	case TokenOperator:
		return "OP"
	case TokenLParen:
		return "("
	case TokenRParen:
		return ")"
	case TokenComma:
		return ","
	default:
		return "UNKNOWN"
	}
}

// Token is a lexical unit of an expression. Value is set for numbers only.
type Token struct {
	Kind  TokenKind
	Text  string
	Value float64
	Pos   int
}

const operatorChars = "+-*/%^"

// Tokenize splits an already rewritten expression into tokens. Characters
// outside the grammar are skipped unless rejectUnknown is set.
func Tokenize(expr string, rejectUnknown bool) ([]Token, error) {
	tokens := make([]Token, 0, len(expr)/2+1)
	i := 0
	for i < len(expr) {
		ch := expr[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case isDigit(ch) || (ch == '.' && i+1 < len(expr) && isDigit(expr[i+1])):
			end := scanNumber(expr, i)
			text := expr[i:end]
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				// out of range literals
				v = 0
			}
			tokens = append(tokens, Token{Kind: TokenNumber, Text: text, Value: v, Pos: i})
			i = end
		case isIdentStart(ch):
			end := i + 1
			for end < len(expr) && isIdentPart(expr[end]) {
				end++
			}
			tokens = append(tokens, Token{Kind: TokenIdentifier, Text: expr[i:end], Pos: i})
			i = end
		case strings.IndexByte(operatorChars, ch) >= 0:
			tokens = append(tokens, Token{Kind: TokenOperator, Text: string(ch), Pos: i})
			i++
		case ch == '(':
			tokens = append(tokens, Token{Kind: TokenLParen, Text: "(", Pos: i})
			i++
		case ch == ')':
			tokens = append(tokens, Token{Kind: TokenRParen, Text: ")", Pos: i})
			i++
		case ch == ',':
			tokens = append(tokens, Token{Kind: TokenComma, Text: ",", Pos: i})
			i++
		default:
			if rejectUnknown {
				r, _ := utf8.DecodeRuneInString(expr[i:])
				return nil, &SyntaxError{Kind: UnexpectedChar, Pos: i, Char: r}
			}
			i++
		}
	}
	return tokens, nil
}

// scanNumber returns the end offset of the numeric literal starting at i.
// A literal holds digits and at most one dot.
func scanNumber(expr string, i int) int {
	seenDot := false
	for i < len(expr) {
		c := expr[i]
		if isDigit(c) {
			i++
			continue
		}
		if c == '.' && !seenDot {
			seenDot = true
			i++
			continue
		}
		break
	}
	return i
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
