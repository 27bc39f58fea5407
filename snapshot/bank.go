// Package snapshot stores named value tables in numbered slots and moves
// controls between values with beat-timed transitions.
package snapshot

import (
	"errors"
	"fmt"
	"maps"

	"go-vjctl/param"
)

// Slots is the number of snapshot slots per script
const Slots = 10

var (
	ErrSlotEmpty  = errors.New("snapshot slot is empty")
	ErrSequencing = errors.New("slot sequencing is engaged")
)

type Value = param.Value

// Table is a full {name -> value} capture
type Table = map[string]Value

// Bank holds the snapshot slots of one script
type Bank struct {
	slots [Slots]Table
}

func checkSlot(slot int) error {
	if slot < 0 || slot >= Slots {
		return fmt.Errorf("snapshot slot %d out of range 0-%d", slot, Slots-1)
	}
	return nil
}

// Save copies t into slot, overwriting what was there
func (b *Bank) Save(slot int, t Table) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	b.slots[slot] = maps.Clone(t)
	if b.slots[slot] == nil {
		b.slots[slot] = Table{}
	}
	return nil
}

func (b *Bank) Get(slot int) (Table, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	if b.slots[slot] == nil {
		return nil, ErrSlotEmpty
	}
	return b.slots[slot], nil
}

func (b *Bank) Delete(slot int) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	b.slots[slot] = nil
	return nil
}

// Occupied lists the slots holding a snapshot
func (b *Bank) Occupied() []int {
	var out []int
	for i, t := range b.slots {
		if t != nil {
			out = append(out, i)
		}
	}
	return out
}

// Export returns the slots for persistence; empty slots are nil
func (b *Bank) Export() []Table {
	out := make([]Table, Slots)
	for i, t := range b.slots {
		out[i] = maps.Clone(t)
	}
	return out
}

// Import replaces the bank contents. Extra entries are ignored.
func (b *Bank) Import(tables []Table) {
	b.slots = [Slots]Table{}
	for i, t := range tables {
		if i >= Slots {
			break
		}
		b.slots[i] = maps.Clone(t)
	}
}

// Forget removes a control from every slot
func (b *Bank) Forget(name string) {
	for _, t := range b.slots {
		delete(t, name)
	}
}
