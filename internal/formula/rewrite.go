package formula

import "strings"

// Rewrite applies the text pre-pass that runs before tokenizing: legacy
// bracketed aliases "[name]" become "name", and a bare numeric percent
// literal such as "50%" (not followed by a digit) becomes "(50/100)" so it
// is not read as the modulo operator.
func Rewrite(expr string) string {
	if strings.IndexByte(expr, '[') >= 0 {
		expr = stripBrackets(expr)
	}
	if strings.IndexByte(expr, '%') >= 0 {
		expr = rewritePercent(expr)
	}
	return expr
}

func stripBrackets(expr string) string {
	var b strings.Builder
	b.Grow(len(expr))
	i := 0
	for i < len(expr) {
		if expr[i] == '[' {
			if end := strings.IndexByte(expr[i+1:], ']'); end >= 0 {
				name := strings.TrimSpace(expr[i+1 : i+1+end])
				if isIdentifier(name) {
					b.WriteString(name)
					i += end + 2
					continue
				}
			}
		}
		b.WriteByte(expr[i])
		i++
	}
	return b.String()
}

func rewritePercent(expr string) string {
	var b strings.Builder
	b.Grow(len(expr) + 8)
	i := 0
	for i < len(expr) {
		ch := expr[i]
		switch {
		case isIdentStart(ch):
			// digits inside an identifier (v1%2) never start a literal
			end := i + 1
			for end < len(expr) && isIdentPart(expr[end]) {
				end++
			}
			b.WriteString(expr[i:end])
			i = end
		case isDigit(ch) || (ch == '.' && i+1 < len(expr) && isDigit(expr[i+1])):
			end := scanNumber(expr, i)
			if end < len(expr) && expr[end] == '%' && (end+1 >= len(expr) || !isDigit(expr[end+1])) {
				b.WriteByte('(')
				b.WriteString(expr[i:end])
				b.WriteString("/100)")
				i = end + 1
				continue
			}
			b.WriteString(expr[i:end])
			i = end
		default:
			b.WriteByte(ch)
			i++
		}
	}
	return b.String()
}

func isIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return false
		}
	}
	return true
}
