// Package formula implements the pricing expression language: a rewrite
// pre-pass, tokenizer, shunting-yard parser and postfix evaluator.
package formula

import (
	"sync"
	"sync/atomic"

	"github.com/golang/groupcache/lru"
)

// DefaultCacheSize is the number of compiled programs kept per Engine.
const DefaultCacheSize = 128

// EngineConfig groups Engine settings.
type EngineConfig struct {
	// CacheSize bounds the compiled-program memo. Zero selects
	// DefaultCacheSize; a negative value disables memoisation.
	CacheSize int
	Options
}

// CacheStats reports memo effectiveness.
type CacheStats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

type compiled struct {
	prog Program
	err  error
}

// Engine compiles and evaluates expressions. Compiled programs (and compile
// errors) are memoised by rewritten expression text in a bounded LRU, so one
// expression evaluated under many environments is parsed once. An Engine is
// safe for concurrent use.
type Engine struct {
	opts Options

	mu    sync.Mutex
	cache *lru.Cache

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewEngine constructs an Engine.
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{opts: cfg.Options}
	size := cfg.CacheSize
	if size == 0 {
		size = DefaultCacheSize
	}
	if size > 0 {
		e.cache = lru.New(size)
	}
	return e
}

// Compile returns the program for expr, using the memo when possible.
func (e *Engine) Compile(expr string) (Program, error) {
	key := Rewrite(expr)
	if e.cache == nil {
		e.misses.Add(1)
		return compileRewritten(key, e.opts)
	}

	e.mu.Lock()
	if v, ok := e.cache.Get(key); ok {
		e.mu.Unlock()
		e.hits.Add(1)
		c := v.(compiled)
		return c.prog, c.err
	}
	e.mu.Unlock()

	e.misses.Add(1)
	prog, err := compileRewritten(key, e.opts)

	e.mu.Lock()
	e.cache.Add(key, compiled{prog: prog, err: err})
	e.mu.Unlock()
	return prog, err
}

// Evaluate compiles expr and runs it in Lenient mode. Only syntax errors are
// returned; the value is 0 in that case.
func (e *Engine) Evaluate(expr string, env Env) (float64, error) {
	return e.evaluate(expr, env, Lenient)
}

// EvaluateStrict compiles expr and runs it in Strict mode, reporting unknown
// names and functions as *EvalError.
func (e *Engine) EvaluateStrict(expr string, env Env) (float64, error) {
	return e.evaluate(expr, env, Strict)
}

func (e *Engine) evaluate(expr string, env Env, mode Mode) (float64, error) {
	prog, err := e.Compile(expr)
	if err != nil {
		return 0, err
	}
	return Eval(prog, env, mode)
}

// Stats returns a snapshot of memo counters.
func (e *Engine) Stats() CacheStats {
	stats := CacheStats{Hits: e.hits.Load(), Misses: e.misses.Load()}
	if e.cache != nil {
		e.mu.Lock()
		stats.Entries = e.cache.Len()
		e.mu.Unlock()
	}
	return stats
}
