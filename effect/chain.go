package effect

// Key is the stable identity of one stateful effect instance: the chain
// owner (the mod node), the link's position in the chain, and the effect
// node's name and kind. It outlives graph rebuilds. The same effect linked
// twice into one chain gets two states.
type Key struct {
	Owner string
	Index int
	Name  string
	Kind  Kind
}

// States is the side table of effect memory
type States map[Key]*State

// Get returns the state for k, creating it on first use
func (s States) Get(k Key) *State {
	st, ok := s[k]
	if !ok {
		st = &State{}
		s[k] = st
	}
	return st
}

// Retain drops every state whose key is not in keep
func (s States) Retain(keep map[Key]bool) {
	for k := range s {
		if !keep[k] {
			delete(s, k)
		}
	}
}

// Link is one named effect in a chain
type Link struct {
	Name   string
	Effect Effect
}

// Chain applies its links left to right
type Chain struct {
	Owner string
	Links []Link
}

// Apply runs the chain over in
func (c *Chain) Apply(in float64, ctx Context, states States) float64 {
	v := in
	for i, l := range c.Links {
		var st *State
		if l.Effect.Stateful() {
			st = states.Get(c.Key(i))
		}
		v = l.Effect.Apply(v, ctx, st)
	}
	return v
}

// Key returns the state identity of the i-th link in this chain
func (c *Chain) Key(i int) Key {
	l := c.Links[i]
	return Key{Owner: c.Owner, Index: i, Name: l.Name, Kind: l.Effect.Kind()}
}

// Keys lists the identities of the chain's stateful links
func (c *Chain) Keys() []Key {
	var keys []Key
	for i, l := range c.Links {
		if l.Effect.Stateful() {
			keys = append(keys, c.Key(i))
		}
	}
	return keys
}
