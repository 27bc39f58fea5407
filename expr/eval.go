package expr

import (
	"fmt"
	"strconv"
)

func (e Not) Eval(lookup Lookup) (bool, error) {
	v, err := e.X.Eval(lookup)
	return !v, err
}

func (e And) Eval(lookup Lookup) (bool, error) {
	x, err := e.X.Eval(lookup)
	if err != nil || !x {
		return false, err
	}
	return e.Y.Eval(lookup)
}

func (e Or) Eval(lookup Lookup) (bool, error) {
	x, err := e.X.Eval(lookup)
	if err != nil {
		return false, err
	}
	if x {
		return true, nil
	}
	return e.Y.Eval(lookup)
}

func (e Equals) Eval(lookup Lookup) (bool, error) {
	x, err := e.X.value(lookup)
	if err != nil {
		return false, err
	}
	y, err := e.Y.value(lookup)
	if err != nil {
		return false, err
	}
	eq := equal(x, y)
	if e.Negate {
		return !eq, nil
	}
	return eq, nil
}

func (e Truth) Eval(lookup Lookup) (bool, error) {
	v, err := e.X.value(lookup)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

func (r VarRef) value(lookup Lookup) (any, error) {
	v, ok := lookup(r.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownName, r.Name)
	}
	return v, nil
}

func (l Literal) value(Lookup) (any, error) {
	return l.Value, nil
}

func truthy(v any) bool {
	switch v := v.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	}
	return false
}

// equal compares across the scalar kinds: bools compare with numbers as 0/1,
// strings only with strings.
func equal(x, y any) bool {
	switch a := x.(type) {
	case string:
		b, ok := y.(string)
		return ok && a == b
	case bool:
		switch b := y.(type) {
		case bool:
			return a == b
		case float64:
			return (b != 0) == a
		}
	case float64:
		switch b := y.(type) {
		case float64:
			return a == b
		case bool:
			return (a != 0) == b
		}
	}
	return false
}

func (e Not) String() string    { return "not " + e.X.String() }
func (e And) String() string    { return "(" + e.X.String() + " and " + e.Y.String() + ")" }
func (e Or) String() string     { return "(" + e.X.String() + " or " + e.Y.String() + ")" }
func (e Truth) String() string  { return e.X.String() }
func (r VarRef) String() string { return r.Name }
func (e Equals) String() string {
	op := " == "
	if e.Negate {
		op = " != "
	}
	return e.X.String() + op + e.Y.String()
}

func (l Literal) String() string {
	switch v := l.Value.(type) {
	case string:
		return strconv.Quote(v)
	case bool:
		if v {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return "?"
}
