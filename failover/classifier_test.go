package failover

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSubnets(t *testing.T) {
	set, err := ParseSubnets([]string{"203.0.113.0/24", "198.51.100.128/25"})
	require.NoError(t, err)
	require.Len(t, set, 2)
	require.True(t, set.Contains(netip.MustParseAddr("203.0.113.7")))
	require.True(t, set.Contains(netip.MustParseAddr("198.51.100.200")))
	require.False(t, set.Contains(netip.MustParseAddr("198.51.100.1")))
	require.False(t, set.Contains(netip.MustParseAddr("192.0.2.1")))
}

func TestParseSubnets_Invalid(t *testing.T) {
	_, err := ParseSubnets([]string{"203.0.113.0/24", "not-a-subnet"})
	require.Error(t, err)

	// Bare address without a prefix length.
	_, err = ParseSubnets([]string{"203.0.113.7"})
	require.Error(t, err)
}

func TestParseSubnets_Empty(t *testing.T) {
	set, err := ParseSubnets(nil)
	require.NoError(t, err)
	require.Empty(t, set)
}

func TestNewClassifier_BothEmpty(t *testing.T) {
	_, err := NewClassifier(nil, nil)
	require.Error(t, err)
}

func TestClassify(t *testing.T) {
	primary := mustSubnets(t, "203.0.113.0/24")
	secondary := mustSubnets(t, "198.51.100.0/24")

	for _, tt := range []struct {
		desc      string
		primary   SubnetSet
		secondary SubnetSet
		addr      string
		want      Side
	}{
		{desc: "both sides, primary hit", primary: primary, secondary: secondary, addr: "203.0.113.10", want: Primary},
		{desc: "both sides, secondary hit", primary: primary, secondary: secondary, addr: "198.51.100.10", want: Secondary},
		{desc: "both sides, no hit", primary: primary, secondary: secondary, addr: "192.0.2.10", want: Neither},
		{desc: "secondary empty, primary hit", primary: primary, secondary: nil, addr: "203.0.113.10", want: Primary},
		{desc: "secondary empty, fallthrough", primary: primary, secondary: nil, addr: "192.0.2.10", want: Secondary},
		{desc: "primary empty, secondary hit", primary: nil, secondary: secondary, addr: "198.51.100.10", want: Secondary},
		{desc: "primary empty, fallthrough", primary: nil, secondary: secondary, addr: "192.0.2.10", want: Primary},
	} {
		t.Run(tt.desc, func(t *testing.T) {
			c, err := NewClassifier(tt.primary, tt.secondary)
			require.NoError(t, err)
			require.Equal(t, tt.want, c.Classify(netip.MustParseAddr(tt.addr)))
		})
	}
}

func TestSideString(t *testing.T) {
	require.Equal(t, "primary", Primary.String())
	require.Equal(t, "secondary", Secondary.String())
	require.Equal(t, "neither", Neither.String())
}

func mustSubnets(t *testing.T, cidrs ...string) SubnetSet {
	t.Helper()
	set, err := ParseSubnets(cidrs)
	require.NoError(t, err)
	return set
}
