package midi

// HighResRange is the reserved controller range whose CCs pair with
// controller+32 as 14-bit values. Zero value disables pairing.
type HighResRange struct {
	First uint8
	Last  uint8
	On    bool
}

// Contains reports whether cc is an MSB controller of the range
func (r HighResRange) Contains(cc uint8) bool {
	return r.On && cc >= r.First && cc <= r.Last && cc < 32
}
