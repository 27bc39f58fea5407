// Package control is the runtime: it builds the node graph from a script,
// resolves every node once per tick and publishes the value table.
package control

import (
	"fmt"
	"slices"
	"strings"

	"go-vjctl/automation"
	"go-vjctl/effect"
	"go-vjctl/expr"
	"go-vjctl/param"
	"go-vjctl/script"
)

type Diagnostic = script.Diagnostic

// Node is one built script entry
type Node struct {
	Def  script.Def
	Name string
	Kind script.Kind
	Spec param.Spec // value domain, also for automate and mod read as floats

	Seq      *automation.Sequence // automate; nil when degraded
	Fallback float64              // automate value while degraded
	Chain    *effect.Chain        // mod
	Disable  expr.Expr            // writable, optional
	Driver   string               // automate or mod node driving this control

	// Interactive is false for nodes degraded at load time
	Interactive bool

	deps []string
}

// Valued reports whether the node has a value consumers can read
func (n *Node) Valued() bool {
	return n.Kind != script.KindSeparator && n.Kind != script.KindEffect
}

// Writable reports whether the operator can set the node's value
func (n *Node) Writable() bool {
	return n.Kind.Writable()
}

// Graph is an immutable, validated node set
type Graph struct {
	ID    string
	Nodes map[string]*Node
	List  []*Node // document order
	Order []*Node // dependencies before dependents
}

// Empty returns a graph without nodes
func Empty(id string) *Graph {
	return &Graph{ID: id, Nodes: map[string]*Node{}}
}

func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.Nodes[name]
	return n, ok
}

// Writable lists operator-editable nodes in document order
func (g *Graph) Writable() []*Node {
	var out []*Node
	for _, n := range g.List {
		if n.Writable() {
			out = append(out, n)
		}
	}
	return out
}

// Build turns a document into a graph. Breakpoint errors degrade their node
// unless strict is set; every other error, or any error when strict, fails
// the whole build with a *script.LoadError. Warnings are returned either way.
func Build(doc *script.Document, strict bool) (*Graph, []Diagnostic, error) {
	var errs, warns []Diagnostic
	degraded := make(map[string]bool)
	for _, d := range script.Validate(doc) {
		switch {
		case d.Severity != script.SeverityError:
			warns = append(warns, d)
		case d.Code == script.CodeSequence && !strict:
			degraded[d.Node] = true
			d.Severity = script.SeverityWarning
			d.Reason += " (holding first breakpoint)"
			warns = append(warns, d)
		default:
			errs = append(errs, d)
		}
	}
	if len(errs) > 0 {
		return nil, warns, &script.LoadError{Diagnostics: errs}
	}

	g := &Graph{ID: doc.ID, Nodes: make(map[string]*Node, len(doc.Defs))}
	for _, def := range doc.Defs {
		n := &Node{
			Def:         def,
			Name:        def.Name,
			Kind:        def.Kind,
			Spec:        def.ValueSpec(),
			Interactive: !degraded[def.Name],
		}
		if def.Kind == script.KindAutomate {
			if degraded[def.Name] {
				if len(def.Breakpoints) > 0 {
					n.Fallback = def.Breakpoints[0].Value
				}
			} else {
				seq, err := automation.NewSequence(def.Name, def.Mode, def.Breakpoints, def.Bounds)
				if err != nil {
					// Validate accepted it, so this cannot differ
					return nil, warns, &script.LoadError{Diagnostics: []Diagnostic{script.Errorf(def.Name, "%v", err)}}
				}
				n.Seq = seq
			}
		}
		g.Nodes[n.Name] = n
		g.List = append(g.List, n)
	}

	errs = append(errs, g.link()...)
	if len(errs) == 0 {
		errs = append(errs, g.sort()...)
	}
	if len(errs) > 0 {
		return nil, warns, &script.LoadError{Diagnostics: errs}
	}
	return g, warns, nil
}

// link resolves names between nodes and records dependencies
func (g *Graph) link() []Diagnostic {
	var errs []Diagnostic
	valued := func(owner, name, what string) bool {
		ref, ok := g.Nodes[name]
		if !ok {
			errs = append(errs, script.Errorf(owner, "%s %q does not exist", what, name))
			return false
		}
		if !ref.Valued() {
			errs = append(errs, script.Errorf(owner, "%s %q has no value", what, name))
			return false
		}
		return true
	}

	for _, n := range g.List {
		switch n.Kind {
		case script.KindMod:
			if valued(n.Name, n.Def.Source, "source") {
				n.deps = append(n.deps, n.Def.Source)
			}
			chain := &effect.Chain{Owner: n.Name}
			for _, name := range n.Def.Modulators {
				ref, ok := g.Nodes[name]
				if !ok || ref.Kind != script.KindEffect {
					errs = append(errs, script.Errorf(n.Name, "modulator %q is not an effect", name))
					continue
				}
				chain.Links = append(chain.Links, effect.Link{Name: name, Effect: ref.Def.Effect})
				n.deps = append(n.deps, name)
			}
			n.Chain = chain
		case script.KindEffect:
			for _, ref := range n.Def.Effect.Refs() {
				if valued(n.Name, ref, "operand") {
					n.deps = append(n.deps, ref)
				}
			}
		}

		if t := n.Def.Target; t != "" {
			target, ok := g.Nodes[t]
			switch {
			case !ok:
				errs = append(errs, script.Errorf(n.Name, "target %q does not exist", t))
			case !target.Writable():
				errs = append(errs, script.Errorf(n.Name, "target %q is not a writable control", t))
			case target.Driver != "":
				errs = append(errs, script.Errorf(n.Name, "target %q is already driven by %q", t, target.Driver))
			default:
				target.Driver = n.Name
				target.deps = append(target.deps, n.Name)
			}
		}

		if src := n.Def.Disable; src != "" {
			e, err := expr.Parse(src)
			if err != nil {
				errs = append(errs, script.Errorf(n.Name, "disable: %v", err))
				continue
			}
			for _, ref := range expr.Refs(e) {
				valued(n.Name, ref, "disable-expression name")
			}
			n.Disable = e
		}
	}
	return errs
}

// sort orders nodes so that every dependency comes first, reporting cycles
func (g *Graph) sort() []Diagnostic {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(g.List))
	var errs []Diagnostic
	var stack []string

	var visit func(n *Node)
	visit = func(n *Node) {
		switch state[n.Name] {
		case done:
			return
		case visiting:
			i := slices.Index(stack, n.Name)
			cycle := append(slices.Clone(stack[i:]), n.Name)
			errs = append(errs, script.Errorf(n.Name, "cycle: %s", strings.Join(cycle, " -> ")))
			return
		}
		state[n.Name] = visiting
		stack = append(stack, n.Name)
		for _, dep := range n.deps {
			visit(g.Nodes[dep])
		}
		stack = stack[:len(stack)-1]
		state[n.Name] = done
		g.Order = append(g.Order, n)
	}
	for _, n := range g.List {
		visit(n)
	}
	return errs
}

// identity is what must match for a node's runtime state to survive reload
func identity(n *Node) string {
	return fmt.Sprintf("%s/%s", n.Name, n.Kind)
}
