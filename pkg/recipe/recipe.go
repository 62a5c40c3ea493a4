// Package recipe evaluates mold recipes: small Lisp programs that define
// named mold.Config presets. Evaluation runs in a sandboxed zygomys
// environment with a hard timeout.
package recipe

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/moldsmith/pkg/logging"
	"github.com/chazu/moldsmith/pkg/mold"
	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/sirupsen/logrus"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in recipe code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Book holds the presets defined by a recipe, in definition order.
type Book struct {
	Presets map[string]mold.Config
	Names   []string
	// Default is the preset chosen with default-mold, else the first one.
	Default string
}

func newBook() *Book {
	return &Book{Presets: map[string]mold.Config{}}
}

func (b *Book) add(name string, cfg mold.Config) error {
	if _, dup := b.Presets[name]; dup {
		return fmt.Errorf("mold %q already defined", name)
	}
	b.Presets[name] = cfg
	b.Names = append(b.Names, name)
	return nil
}

// Config returns the named preset, or the default when name is empty.
func (b *Book) Config(name string) (mold.Config, error) {
	if name == "" {
		name = b.Default
		if name == "" && len(b.Names) > 0 {
			name = b.Names[0]
		}
	}
	cfg, ok := b.Presets[name]
	if !ok {
		return mold.Config{}, fmt.Errorf("recipe: no mold named %q", name)
	}
	return cfg, nil
}

// Engine wraps the zygomys interpreter for recipe evaluation.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment.
type Engine struct {
	mu         sync.Mutex
	generation uint64
	timeout    time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout overrides EvalTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// NewEngine creates a new Engine instance.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{timeout: EvalTimeout}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Evaluate runs recipe source and returns the presets it defines.
//
// Return semantics:
//   - On success: returns book + nil errors + nil error
//   - On parse/eval failure: returns nil book + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*Book, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		b, evalErrs, err := evaluate(source)
		ch <- evalResult{book: b, errors: evalErrs, err: err}
	}()

	b, evalErrs, err := waitWithTimeout(ch, gen, &e.mu, &e.generation, e.timeout)
	log := logging.Logger().WithField("generation", gen)
	switch {
	case err != nil:
		log.WithError(err).Warn("recipe: evaluation aborted")
	case len(evalErrs) > 0:
		log.WithField("errors", len(evalErrs)).Debug("recipe: evaluation failed")
	default:
		log.WithFields(logrus.Fields{"molds": len(b.Names), "default": b.Default}).Debug("recipe: evaluated")
	}
	return b, evalErrs, err
}

// evaluate performs the zygomys evaluation in a fresh sandbox.
func evaluate(source string) (*Book, []EvalError, error) {
	b := newBook()
	if strings.TrimSpace(source) == "" {
		return b, nil, nil
	}

	// Sandbox mode prevents recipes from reaching the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()
	registerBuiltins(env, b)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}
	return b, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into EvalError values,
// extracting the line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
