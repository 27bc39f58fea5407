// Package expr implements the boolean disable-expression language.
//
// Expressions are parsed with the Starlark expression grammar and then
// narrowed to a small AST: not, and, or, ==, !=, names and literals.
// Nothing is ever executed; evaluation walks the AST against a lookup.
package expr

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"go.starlark.net/syntax"
)

var ErrUnknownName = errors.New("unknown name")

// Lookup resolves a control name to its current value. The value is one of
// float64, bool or string.
type Lookup func(name string) (any, bool)

// Expr is a parsed disable-expression
type Expr interface {
	Eval(lookup Lookup) (bool, error)
	String() string
}

type Not struct {
	X Expr
}

type And struct {
	X, Y Expr
}

type Or struct {
	X, Y Expr
}

// Equals compares two operands; Negate turns it into !=
type Equals struct {
	X, Y   Operand
	Negate bool
}

// Operand is the value side of the grammar: a name or a literal
type Operand interface {
	value(lookup Lookup) (any, error)
	String() string
}

type VarRef struct {
	Name string
}

type Literal struct {
	Value any // float64, bool or string
}

// Truth wraps an operand used in boolean position
type Truth struct {
	X Operand
}

var fileOptions = &syntax.FileOptions{}

// Parse parses src into an expression
func Parse(src string) (Expr, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("empty expression")
	}
	node, err := fileOptions.ParseExpr("disable", src, 0)
	if err != nil {
		return nil, err
	}
	return convert(node)
}

// MustParse is Parse for static expressions
func MustParse(src string) Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

func convert(node syntax.Expr) (Expr, error) {
	switch n := node.(type) {
	case *syntax.ParenExpr:
		return convert(n.X)
	case *syntax.UnaryExpr:
		if n.Op != syntax.NOT {
			return nil, fmt.Errorf("unsupported operator %v", n.Op)
		}
		x, err := convert(n.X)
		if err != nil {
			return nil, err
		}
		return Not{X: x}, nil
	case *syntax.BinaryExpr:
		switch n.Op {
		case syntax.AND, syntax.OR:
			x, err := convert(n.X)
			if err != nil {
				return nil, err
			}
			y, err := convert(n.Y)
			if err != nil {
				return nil, err
			}
			if n.Op == syntax.AND {
				return And{X: x, Y: y}, nil
			}
			return Or{X: x, Y: y}, nil
		case syntax.EQL, syntax.NEQ:
			x, err := convertOperand(n.X)
			if err != nil {
				return nil, err
			}
			y, err := convertOperand(n.Y)
			if err != nil {
				return nil, err
			}
			return Equals{X: x, Y: y, Negate: n.Op == syntax.NEQ}, nil
		default:
			return nil, fmt.Errorf("unsupported operator %v", n.Op)
		}
	case *syntax.Ident, *syntax.Literal:
		op, err := convertOperand(n)
		if err != nil {
			return nil, err
		}
		return Truth{X: op}, nil
	default:
		return nil, fmt.Errorf("unsupported expression %T", node)
	}
}

func convertOperand(node syntax.Expr) (Operand, error) {
	switch n := node.(type) {
	case *syntax.ParenExpr:
		return convertOperand(n.X)
	case *syntax.Ident:
		switch n.Name {
		case "True", "true":
			return Literal{Value: true}, nil
		case "False", "false":
			return Literal{Value: false}, nil
		}
		return VarRef{Name: n.Name}, nil
	case *syntax.Literal:
		switch v := n.Value.(type) {
		case string:
			return Literal{Value: v}, nil
		case int64:
			return Literal{Value: float64(v)}, nil
		case *big.Int:
			f, _ := new(big.Float).SetInt(v).Float64()
			return Literal{Value: f}, nil
		case float64:
			return Literal{Value: v}, nil
		}
		return nil, fmt.Errorf("unsupported literal %v", n.Raw)
	case *syntax.UnaryExpr:
		if n.Op == syntax.MINUS {
			if lit, ok := n.X.(*syntax.Literal); ok {
				op, err := convertOperand(lit)
				if err != nil {
					return nil, err
				}
				if f, ok := op.(Literal).Value.(float64); ok {
					return Literal{Value: -f}, nil
				}
			}
		}
		return nil, fmt.Errorf("unsupported operand")
	default:
		return nil, fmt.Errorf("unsupported operand %T", node)
	}
}

// Refs lists the names an expression reads, in order of first appearance
func Refs(e Expr) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(op Operand) {
		if r, ok := op.(VarRef); ok && !seen[r.Name] {
			seen[r.Name] = true
			names = append(names, r.Name)
		}
	}
	var walk func(Expr)
	walk = func(e Expr) {
		switch e := e.(type) {
		case Not:
			walk(e.X)
		case And:
			walk(e.X)
			walk(e.Y)
		case Or:
			walk(e.X)
			walk(e.Y)
		case Equals:
			add(e.X)
			add(e.Y)
		case Truth:
			add(e.X)
		}
	}
	walk(e)
	return names
}
