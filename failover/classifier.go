package failover

import (
	"fmt"
	"net/netip"
)

// Side identifies which uplink a classification resolved to.
type Side int

const (
	// Neither means the address belongs to no configured uplink.
	Neither Side = iota
	Primary
	Secondary
)

func (s Side) String() string {
	switch s {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	default:
		return "neither"
	}
}

// SubnetSet is the set of address ranges owned by one uplink. An empty set
// is valid on at most one side.
type SubnetSet []netip.Prefix

// ParseSubnets parses CIDR strings into a SubnetSet.
func ParseSubnets(cidrs []string) (SubnetSet, error) {
	var set SubnetSet
	for _, c := range cidrs {
		p, err := netip.ParsePrefix(c)
		if err != nil {
			return nil, fmt.Errorf("parse subnet %q: %w", c, err)
		}
		set = append(set, p.Masked())
	}
	return set, nil
}

func (s SubnetSet) Contains(addr netip.Addr) bool {
	for _, p := range s {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Classifier decides which uplink an external address belongs to. When only
// one side has subnets configured, the other side matches every address the
// configured side does not.
type Classifier struct {
	primary   SubnetSet
	secondary SubnetSet
}

// NewClassifier builds a classifier. Both sides empty would leave every
// address unclassifiable and is rejected.
func NewClassifier(primary, secondary SubnetSet) (*Classifier, error) {
	if len(primary) == 0 && len(secondary) == 0 {
		return nil, fmt.Errorf("no subnets configured for either uplink")
	}
	return &Classifier{primary: primary, secondary: secondary}, nil
}

func (c *Classifier) Classify(addr netip.Addr) Side {
	switch {
	case len(c.primary) == 0:
		if c.secondary.Contains(addr) {
			return Secondary
		}
		return Primary
	case len(c.secondary) == 0:
		if c.primary.Contains(addr) {
			return Primary
		}
		return Secondary
	default:
		if c.primary.Contains(addr) {
			return Primary
		}
		if c.secondary.Contains(addr) {
			return Secondary
		}
		return Neither
	}
}
