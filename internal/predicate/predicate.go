// Package predicate implements the JSON expression language used by
// achievement rules. Rules are user-authored, so evaluation is fully
// sandboxed: a malformed or mistyped predicate evaluates to false, never to
// an error that could fail the surrounding event.
package predicate

import (
	"encoding/json"
	"math"
	"strings"
)

// Context holds the three evaluation scopes. Each scope is a flat mapping of
// stat name to number or boolean; per_game carries the current game's box
// score, season and career carry aggregate counters.
type Context struct {
	PerGame map[string]any
	Season  map[string]any
	Career  map[string]any
}

type kind int

const (
	kindInvalid kind = iota
	kindLiteral
	kindPath
	kindOp
)

// Node is one parsed predicate tree node: a literal, a dotted path
// reference, or an operator applied to child nodes.
type Node struct {
	kind kind
	lit  any      // bool, float64 or string
	path []string // dotted lookup segments
	op   string
	args []Node
}

var knownOps = map[string]struct{}{
	">=": {}, ">": {}, "<=": {}, "<": {},
	"==": {}, "!=": {},
	"and": {}, "or": {}, "not": {},
	"+": {}, "-": {}, "*": {}, "/": {},
	"has": {},
}

// Parse decodes a JSON predicate into a Node tree. Unknown shapes come back
// as invalid nodes, which evaluate to false.
func Parse(raw json.RawMessage) Node {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Node{}
	}
	return parseValue(v)
}

func parseValue(v any) Node {
	switch val := v.(type) {
	case bool:
		return Node{kind: kindLiteral, lit: val}
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return Node{}
		}
		return Node{kind: kindLiteral, lit: f}
	case float64:
		return Node{kind: kindLiteral, lit: val}
	case string:
		// Dotted strings and bare scope names are references; anything
		// else is a string literal.
		if strings.Contains(val, ".") || isScope(val) {
			return Node{kind: kindPath, path: strings.Split(val, ".")}
		}
		return Node{kind: kindLiteral, lit: val}
	case map[string]any:
		if len(val) != 1 {
			return Node{}
		}
		for op, arg := range val {
			if _, ok := knownOps[op]; !ok {
				return Node{}
			}
			n := Node{kind: kindOp, op: op}
			if list, ok := arg.([]any); ok {
				n.args = make([]Node, 0, len(list))
				for _, a := range list {
					n.args = append(n.args, parseValue(a))
				}
			} else {
				n.args = []Node{parseValue(arg)}
			}
			return n
		}
		return Node{}
	default:
		return Node{}
	}
}

func isScope(s string) bool {
	return s == "per_game" || s == "season" || s == "career"
}

// Valid reports whether parsing produced a usable node. Invalid nodes
// evaluate to false, but callers may want to log them.
func (n Node) Valid() bool {
	return n.kind != kindInvalid
}

// Eval evaluates a raw predicate against ctx. It never panics and never
// returns an error; anything that cannot be evaluated is false.
func Eval(raw json.RawMessage, ctx Context) (result bool) {
	defer func() {
		if recover() != nil {
			result = false
		}
	}()
	return Parse(raw).EvalBool(ctx)
}

// EvalBool evaluates a parsed node in boolean position.
func (n Node) EvalBool(ctx Context) bool {
	return truthy(n.resolve(ctx))
}

// undefined marks a missing path or failed computation.
type undefinedType struct{}

var undefined = undefinedType{}

// resolve computes the node's value: bool, float64, string,
// map[string]any, or undefined.
func (n Node) resolve(ctx Context) any {
	switch n.kind {
	case kindLiteral:
		return n.lit
	case kindPath:
		return ctx.lookup(n.path)
	case kindOp:
		return n.applyOp(ctx)
	default:
		return undefined
	}
}

func (c Context) lookup(path []string) any {
	if len(path) == 0 {
		return undefined
	}
	var cur any
	switch path[0] {
	case "per_game":
		cur = c.PerGame
	case "season":
		cur = c.Season
	case "career":
		cur = c.Career
	default:
		return undefined
	}
	for _, seg := range path[1:] {
		m, ok := cur.(map[string]any)
		if !ok {
			return undefined
		}
		cur, ok = m[seg]
		if !ok {
			return undefined
		}
	}
	if cur == nil {
		return undefined
	}
	return cur
}

func (n Node) applyOp(ctx Context) any {
	switch n.op {
	case ">=", ">", "<=", "<":
		if len(n.args) != 2 {
			return false
		}
		a, aok := asNumber(n.args[0].resolve(ctx))
		b, bok := asNumber(n.args[1].resolve(ctx))
		if !aok || !bok {
			return false
		}
		switch n.op {
		case ">=":
			return a >= b
		case ">":
			return a > b
		case "<=":
			return a <= b
		default:
			return a < b
		}

	case "==", "!=":
		if len(n.args) != 2 {
			return false
		}
		eq := primitiveEqual(n.args[0].resolve(ctx), n.args[1].resolve(ctx))
		if n.op == "!=" {
			return !eq
		}
		return eq

	case "and":
		for _, a := range n.args {
			if !a.EvalBool(ctx) {
				return false
			}
		}
		return true

	case "or":
		for _, a := range n.args {
			if a.EvalBool(ctx) {
				return true
			}
		}
		return false

	case "not":
		if len(n.args) != 1 {
			return false
		}
		return !n.args[0].EvalBool(ctx)

	case "+", "-", "*", "/":
		if len(n.args) != 2 {
			return false
		}
		a, aok := asNumber(n.args[0].resolve(ctx))
		b, bok := asNumber(n.args[1].resolve(ctx))
		if !aok || !bok {
			return false
		}
		switch n.op {
		case "+":
			return a + b
		case "-":
			return a - b
		case "*":
			return a * b
		default:
			if b == 0 {
				return float64(0)
			}
			return a / b
		}

	case "has":
		if len(n.args) != 2 {
			return false
		}
		obj, ok := n.args[0].resolve(ctx).(map[string]any)
		if !ok {
			return false
		}
		key, ok := n.args[1].resolve(ctx).(string)
		if !ok {
			return false
		}
		_, present := obj[key]
		return present

	default:
		return false
	}
}

func asNumber(v any) (float64, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// primitiveEqual compares two resolved values as primitives. Values of
// different types, and undefined on either side, are never equal.
func primitiveEqual(a, b any) bool {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return false
	}
}

// truthy maps a resolved value into boolean position: booleans are
// themselves, numbers are true iff non-zero, everything else is false.
func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	default:
		return false
	}
}
