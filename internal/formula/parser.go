package formula

import "strings"

type opInfo struct {
	prec  int
	right bool
}

var binaryOps = map[string]opInfo{
	"+": {prec: 1},
	"-": {prec: 1},
	"*": {prec: 2},
	"/": {prec: 2},
	"%": {prec: 2},
	"^": {prec: 3, right: true},
}

var negateOp = opInfo{prec: 4, right: true}

type stackEntry struct {
	sym   string
	info  opInfo
	paren bool
	pos   int
}

// frame tracks one open parenthesis. Function frames count their top level
// commas so the call can be finalised with the right argument count.
type frame struct {
	fn     string
	commas int
	sawArg bool
}

// Parse converts a token stream into a postfix program using the
// shunting-yard algorithm. maxDepth bounds parenthesis nesting; zero or a
// negative value disables the check.
func Parse(tokens []Token, maxDepth int) (Program, error) {
	out := make(Program, 0, len(tokens))
	var ops []stackEntry
	var frames []frame
	pendingFunc := ""
	// unarySlot is true where a '-' must be unary: at the start and after an
	// operator, '(' or ','.
	unarySlot := true

	markArg := func() {
		if n := len(frames); n > 0 {
			frames[n-1].sawArg = true
		}
	}
	popUntilParen := func() bool {
		for len(ops) > 0 {
			top := ops[len(ops)-1]
			if top.paren {
				return true
			}
			out = append(out, Instruction{Op: OpOperator, Name: top.sym})
			ops = ops[:len(ops)-1]
		}
		return false
	}

	for i, tok := range tokens {
		switch tok.Kind {
		case TokenNumber:
			markArg()
			out = append(out, Instruction{Op: OpNumber, Num: tok.Value})
			unarySlot = false

		case TokenIdentifier:
			markArg()
			name := strings.ToLower(tok.Text)
			if i+1 < len(tokens) && tokens[i+1].Kind == TokenLParen {
				pendingFunc = name
				continue
			}
			out = append(out, Instruction{Op: OpVariable, Name: name})
			unarySlot = false

		case TokenOperator:
			markArg()
			if unarySlot {
				switch tok.Text {
				case "-":
					ops = append(ops, stackEntry{sym: NegateSymbol, info: negateOp, pos: tok.Pos})
					continue
				case "+":
					continue
				}
			}
			info := binaryOps[tok.Text]
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				if top.paren {
					break
				}
				if top.info.prec > info.prec || (top.info.prec == info.prec && !info.right) {
					out = append(out, Instruction{Op: OpOperator, Name: top.sym})
					ops = ops[:len(ops)-1]
					continue
				}
				break
			}
			ops = append(ops, stackEntry{sym: tok.Text, info: info, pos: tok.Pos})
			unarySlot = true

		case TokenLParen:
			markArg()
			if maxDepth > 0 && len(frames) >= maxDepth {
				return nil, &SyntaxError{Kind: TooDeep, Pos: tok.Pos}
			}
			frames = append(frames, frame{fn: pendingFunc})
			pendingFunc = ""
			ops = append(ops, stackEntry{paren: true, pos: tok.Pos})
			unarySlot = true

		case TokenComma:
			if len(frames) == 0 || frames[len(frames)-1].fn == "" {
				return nil, &SyntaxError{Kind: MisplacedComma, Pos: tok.Pos}
			}
			popUntilParen()
			frames[len(frames)-1].commas++
			unarySlot = true

		case TokenRParen:
			if !popUntilParen() {
				return nil, &SyntaxError{Kind: MismatchedParentheses, Pos: tok.Pos}
			}
			ops = ops[:len(ops)-1]
			f := frames[len(frames)-1]
			frames = frames[:len(frames)-1]
			if f.fn != "" {
				argc := 0
				if f.sawArg {
					argc = f.commas + 1
				}
				out = append(out, Instruction{Op: OpFunction, Name: f.fn, Argc: argc})
			}
			unarySlot = false
		}
	}

	for len(ops) > 0 {
		top := ops[len(ops)-1]
		if top.paren {
			return nil, &SyntaxError{Kind: MismatchedParentheses, Pos: top.pos}
		}
		out = append(out, Instruction{Op: OpOperator, Name: top.sym})
		ops = ops[:len(ops)-1]
	}
	return out, nil
}

// Options tune compilation.
type Options struct {
	// RejectUnknown makes unknown characters a syntax error instead of
	// skipping them.
	RejectUnknown bool
	// MaxLength caps the rewritten expression length in bytes. Zero disables.
	MaxLength int
	// MaxDepth caps parenthesis nesting. Zero disables.
	MaxDepth int
}

// Compile rewrites, tokenizes and parses expr.
func Compile(expr string, opts Options) (Program, error) {
	return compileRewritten(Rewrite(expr), opts)
}

func compileRewritten(rewritten string, opts Options) (Program, error) {
	if opts.MaxLength > 0 && len(rewritten) > opts.MaxLength {
		return nil, &SyntaxError{Kind: TooLong, Pos: -1}
	}
	tokens, err := Tokenize(rewritten, opts.RejectUnknown)
	if err != nil {
		return nil, err
	}
	return Parse(tokens, opts.MaxDepth)
}
