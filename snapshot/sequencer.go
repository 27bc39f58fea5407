package snapshot

// Sequencer recalls the next stored slot every Every beats while engaged
type Sequencer struct {
	engaged bool
	every   float64
	next    float64
	slot    int
}

// Engage starts sequencing; the first recall is due immediately
func (s *Sequencer) Engage(beat, every float64) {
	if every <= 0 {
		every = 16
	}
	s.engaged = true
	s.every = every
	s.next = beat
	s.slot = -1
}

func (s *Sequencer) Disengage()    { s.engaged = false }
func (s *Sequencer) Engaged() bool { return s.engaged }

// Every returns the interval in beats
func (s *Sequencer) Every() float64 { return s.every }

// Due reports the slot to recall at beat, cycling through occupied slots
func (s *Sequencer) Due(beat float64, bank *Bank) (int, bool) {
	if !s.engaged {
		return 0, false
	}
	if beat < s.next-s.every {
		// clock moved backwards
		s.next = beat
	}
	if beat < s.next {
		return 0, false
	}
	for s.next <= beat {
		s.next += s.every
	}

	occupied := bank.Occupied()
	if len(occupied) == 0 {
		return 0, false
	}
	for _, slot := range occupied {
		if slot > s.slot {
			s.slot = slot
			return slot, true
		}
	}
	s.slot = occupied[0]
	return s.slot, true
}
