// Control-flow statements (spec §4.F If/Loop/For/Let/Return/Break/
// Continue). These are distinct from Node: a Node pulls Batches, a Stmt
// runs once and reports a signal telling its enclosing Loop/For/Script
// whether to keep going, stop, skip to the next iteration, or unwind a
// Return up to the calling Script.
package executor

import (
	"github.com/reifydb/reifydb/internal/diagnostic"
)

// Stmt is one control-flow statement.
type Stmt interface {
	Run(env *Env) (signal, error)
}

// Script runs a sequence of statements, stopping early on Return and
// propagating Break/Continue to its caller (a Loop/For one level up).
type Script struct {
	Stmts []Stmt
}

func (s *Script) Run(env *Env) (signal, error) {
	for _, st := range s.Stmts {
		sig, err := st.Run(env)
		if err != nil {
			return signalNone, err
		}
		if sig != signalNone {
			return sig, nil
		}
	}
	return signalNone, nil
}

// Let evaluates Expr once and binds the result into env.Vars under Name —
// a scalar binding. A frame binding (the result of a Node pipeline) uses
// LetFrame instead.
type Let struct {
	Name string
	Expr Expr
}

func (l *Let) Run(env *Env) (signal, error) {
	v, err := l.Expr.eval(env.Vars)
	if err != nil {
		return signalNone, err
	}
	env.Vars[l.Name] = v
	return signalNone, nil
}

// LetFrame drains Source fully and binds the materialized Batch into
// env.Vars under Name, for statements that bind a query result to a name
// rather than a scalar.
type LetFrame struct {
	Name   string
	Source Node
}

func (l *LetFrame) Run(env *Env) (signal, error) {
	if err := l.Source.Initialize(env); err != nil {
		return signalNone, err
	}
	batch, err := drainAll(env, l.Source)
	if err != nil {
		return signalNone, err
	}
	env.Vars[l.Name] = batch
	return signalNone, nil
}

// Return unwinds the enclosing Script (and any Loop/For containing it) to
// its caller, optionally leaving a value in env.Vars[resultVar].
type Return struct {
	Expr Expr // nil for a bare `return`
}

const resultVar = "__return"

func (r *Return) Run(env *Env) (signal, error) {
	if r.Expr != nil {
		v, err := r.Expr.eval(env.Vars)
		if err != nil {
			return signalNone, err
		}
		env.Vars[resultVar] = v
	}
	return signalReturn, nil
}

// Break stops the innermost enclosing Loop/For.
type Break struct{}

func (Break) Run(*Env) (signal, error) { return signalBreak, nil }

// Continue skips to the next iteration of the innermost enclosing Loop/For.
type Continue struct{}

func (Continue) Run(*Env) (signal, error) { return signalContinue, nil }

// If runs Then if Cond is truthy, else Else (which may be nil).
type If struct {
	Cond Expr
	Then *Script
	Else *Script
}

func (i *If) Run(env *Env) (signal, error) {
	v, err := i.Cond.eval(env.Vars)
	if err != nil {
		return signalNone, err
	}
	if truthy(v) {
		return i.Then.Run(env)
	}
	if i.Else != nil {
		return i.Else.Run(env)
	}
	return signalNone, nil
}

// Loop runs Body until a Break, a Return, an error, or MaxIterations is
// reached (spec §9's bounded-iteration Non-goal carve-out: an unconditional
// Loop without a reachable Break must not run forever inside one
// transaction's commit window).
type Loop struct {
	Body          *Script
	MaxIterations int
}

const defaultMaxLoopIterations = 1_000_000

func (l *Loop) Run(env *Env) (signal, error) {
	max := l.MaxIterations
	if max <= 0 {
		max = defaultMaxLoopIterations
	}
	for i := 0; i < max; i++ {
		sig, err := l.Body.Run(env)
		if err != nil {
			return signalNone, err
		}
		switch sig {
		case signalBreak:
			return signalNone, nil
		case signalReturn:
			return signalReturn, nil
		case signalContinue, signalNone:
			continue
		}
	}
	return signalNone, diagnostic.Invariant("loop exceeded maximum iteration count")
}

// For iterates Source's rows, binding each row (as a map[string]Value)
// into env.Vars[Var] for the duration of one Body run.
type For struct {
	Var    string
	Source Node
	Body   *Script
}

func (f *For) Run(env *Env) (signal, error) {
	if err := f.Source.Initialize(env); err != nil {
		return signalNone, err
	}
	for {
		batch, more, err := f.Source.Next(env)
		if err != nil {
			return signalNone, err
		}
		for i := 0; i < batch.RowCount; i++ {
			env.Vars[f.Var] = batch.Row(i)
			sig, err := f.Body.Run(env)
			if err != nil {
				return signalNone, err
			}
			switch sig {
			case signalBreak:
				return signalNone, nil
			case signalReturn:
				return signalReturn, nil
			}
		}
		if !more {
			break
		}
	}
	return signalNone, nil
}

// Generator wraps a Script as a Node: the first Next call runs the script to
// completion and returns the Batch bound to resultVar, if any; later calls
// return an empty Batch (scripts are not themselves pull-based; Generator
// is the adapter a caller uses to embed a scripted computation inside a
// larger Node pipeline, e.g. a stored procedure invoked from a FlowGraph
// handler).
type Generator struct {
	Script *Script

	ran bool
}

func (g *Generator) Initialize(env *Env) error {
	if env.Vars == nil {
		env.Vars = make(map[string]Value)
	}
	return nil
}

func (g *Generator) Next(env *Env) (Batch, bool, error) {
	if g.ran {
		return Batch{}, false, nil
	}
	g.ran = true
	if _, err := g.Script.Run(env); err != nil {
		return Batch{}, false, err
	}
	if v, ok := env.Vars[resultVar]; ok {
		if b, ok := v.(Batch); ok {
			return b, false, nil
		}
	}
	return Batch{}, false, nil
}
