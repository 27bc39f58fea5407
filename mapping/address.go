// Package mapping binds hardware and protocol controller addresses to
// controls, including the learn state machine that creates bindings.
package mapping

import (
	"fmt"

	"go-vjctl/param"
)

// Address identifies one physical or protocol controller
type Address struct {
	Device     string `json:"device,omitempty"`
	Channel    uint8  `json:"channel"`
	Controller uint8  `json:"controller"`
	HighRes    bool   `json:"highres,omitempty"` // paired 14-bit CC
	Path       string `json:"path,omitempty"`    // protocol address (transport)
}

func (a Address) String() string {
	if a.Path != "" {
		return a.Path
	}
	res := ""
	if a.HighRes {
		res = "/14"
	}
	return fmt.Sprintf("%s ch%d cc%d%s", a.Device, a.Channel+1, a.Controller, res)
}

// Input is one controller movement normalized to [0, 1]
type Input struct {
	Address Address
	Unit    float64
}

// Resolve maps a controller position onto a control's domain
func Resolve(unit float64, spec param.Spec) param.Value {
	return spec.FromUnit(unit)
}
