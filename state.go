package vcable

import (
	"fmt"

	"github.com/opd-ai/vcable/abi"
)

// State is the session's position in the activation state machine.
type State uint8

const (
	// StateInactive means no plugin receives frames; writes are dropped.
	StateInactive State = iota
	// StateActive means exactly one plugin receives every write.
	StateActive
)

// String returns a readable state name.
func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// activation is the tagged state published to the real-time path. A value is
// never mutated after it is stored.
type activation struct {
	state  State
	slot   int
	name   string
	plugin abi.CablePlugin
}

var inactive = &activation{state: StateInactive, slot: -1}

func active(slot int, desc abi.Descriptor) *activation {
	return &activation{state: StateActive, slot: slot, name: desc.Name, plugin: desc.Plugin}
}
