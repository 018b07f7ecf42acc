package samplebuffer

import (
	"fmt"
	"strings"
)

// UnderrunPolicy selects what ReadBlock does when fewer bytes are buffered
// than the block being read. The choice is audible, so it is explicit.
type UnderrunPolicy uint8

const (
	// PolicySkip reads nothing and leaves dst untouched until a full block is
	// buffered. This adds one block of latency instead of emitting a partial
	// block.
	PolicySkip UnderrunPolicy = iota
	// PolicyZeroPad reads whatever is buffered and zeroes the rest of dst,
	// producing silence for the missing frames.
	PolicyZeroPad
	// PolicyPartial performs a plain short read; the caller handles the rest.
	PolicyPartial
)

// String returns the configuration name of the policy.
func (p UnderrunPolicy) String() string {
	switch p {
	case PolicySkip:
		return "skip"
	case PolicyZeroPad:
		return "zero-pad"
	case PolicyPartial:
		return "partial"
	default:
		return fmt.Sprintf("UnderrunPolicy(%d)", uint8(p))
	}
}

// ParsePolicy maps a configuration name to a policy. The empty string selects
// PolicySkip.
func ParsePolicy(name string) (UnderrunPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "skip":
		return PolicySkip, nil
	case "zero-pad", "zeropad", "silence":
		return PolicyZeroPad, nil
	case "partial":
		return PolicyPartial, nil
	default:
		return PolicySkip, fmt.Errorf("samplebuffer: unknown underrun policy %q", name)
	}
}
