package dns

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDesiredIPv4(t *testing.T) {
	records := Desired("node1", netip.MustParseAddr("192.0.2.10"), "k8s.example.com", 300)

	assert.Equal(t, records.Forward.Name, "node1.k8s.example.com")
	assert.Equal(t, records.Forward.Type, TypeA)
	assert.Equal(t, records.Forward.Target, "192.0.2.10")
	assert.Equal(t, records.Forward.TTL, 300)
	assert.Equal(t, records.Forward.ID, 0)

	assert.Equal(t, records.Reverse.Name, "10.2.0.192.in-addr.arpa")
	assert.Equal(t, records.Reverse.Type, TypePTR)
	assert.Equal(t, records.Reverse.Target, "node1.k8s.example.com")
	assert.Equal(t, records.Reverse.TTL, 300)

	assert.Len(t, records.All(), 2)
	assert.Equal(t, records.All()[0], records.Forward)
	assert.Equal(t, records.All()[1], records.Reverse)
}

func TestDesiredIPv6(t *testing.T) {
	records := Desired("node2", netip.MustParseAddr("2001:db8::1"), "k8s.example.com", 120)

	assert.Equal(t, records.Forward.Name, "node2.k8s.example.com")
	assert.Equal(t, records.Forward.Type, TypeAAAA)
	assert.Equal(t, records.Forward.Target, "2001:db8::1")

	assert.Equal(t, records.Reverse.Type, TypePTR)
	assert.Equal(
		t, records.Reverse.Name,
		"1.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.8.b.d.0.1.0.0.2.ip6.arpa",
	)
	assert.Equal(t, records.Reverse.Target, "node2.k8s.example.com")
}

func TestDesiredIsDeterministic(t *testing.T) {
	ip := netip.MustParseAddr("192.0.2.10")
	first := Desired("node1", ip, "k8s.example.com", 300)
	second := Desired("node1", ip, "k8s.example.com", 300)
	assert.Equal(t, first, second)
}

func TestFQDN(t *testing.T) {
	assert.Equal(t, FQDN("node1", "k8s.example.com"), "node1.k8s.example.com")
}

func TestReverseName(t *testing.T) {
	assert.Equal(
		t, ReverseName(netip.MustParseAddr("192.0.2.10")), "10.2.0.192.in-addr.arpa",
	)
	assert.Equal(
		t, ReverseName(netip.MustParseAddr("2001:db8::1")),
		"1.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.8.b.d.0.1.0.0.2.ip6.arpa",
	)
	assert.Equal(t, ReverseName(netip.Addr{}), "")
}

func TestMatchesRoundTrip(t *testing.T) {
	for _, addr := range []string{"192.0.2.10", "2001:db8::1"} {
		records := Desired("node1", netip.MustParseAddr(addr), "k8s.example.com", 300)
		for _, record := range records.All() {
			require.True(t, Matches(record, record))
		}
	}
}

func TestMatchesIgnoresIDAndTTL(t *testing.T) {
	desired := Record{Name: "node1.k8s.example.com", Type: TypeA, Target: "192.0.2.10", TTL: 300}
	remote := Record{ID: 42, Name: "node1.k8s.example.com", Type: TypeA, Target: "192.0.2.10", TTL: 3600}
	assert.True(t, Matches(remote, desired))
}

func TestMatchesNameCaseInsensitive(t *testing.T) {
	desired := Record{Name: "node1.k8s.example.com", Type: TypeA, Target: "192.0.2.10"}
	remote := Record{Name: "Node1.K8S.Example.COM", Type: TypeA, Target: "192.0.2.10"}
	assert.True(t, Matches(remote, desired))
}

func TestMatchesDetectsDifferences(t *testing.T) {
	desired := Record{Name: "node1.k8s.example.com", Type: TypeA, Target: "192.0.2.10"}

	staleTarget := desired
	staleTarget.Target = "192.0.2.99"
	assert.False(t, Matches(staleTarget, desired))

	otherType := desired
	otherType.Type = TypeAAAA
	assert.False(t, Matches(otherType, desired))

	otherName := desired
	otherName.Name = "node2.k8s.example.com"
	assert.False(t, Matches(otherName, desired))
}
