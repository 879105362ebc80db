package dns

import (
	"fmt"
	"net/netip"
	"strings"

	miekgdns "github.com/miekg/dns"
)

// RecordType enumerates the DNS record types managed by this controller.
type RecordType string

const (
	// TypeA is an IPv4 address record.
	TypeA RecordType = "A"
	// TypeAAAA is an IPv6 address record.
	TypeAAAA RecordType = "AAAA"
	// TypePTR is a reverse pointer record.
	TypePTR RecordType = "PTR"
)

// Record describes a single DNS record the way the provider stores it. Names are fully
// qualified without a trailing dot. The ID is assigned by the provider and is zero for
// records that have been computed locally but not created remotely yet.
type Record struct {
	ID     int
	Name   string
	Type   RecordType
	Target string
	TTL    int
}

// RecordSet is the pair of records that a single node ought to be represented by: a forward
// record mapping its FQDN to its IP address and a reverse record mapping the address's
// reverse-zone name back to the FQDN.
type RecordSet struct {
	Forward Record
	Reverse Record
}

// All returns both records of the set, forward first.
func (s RecordSet) All() []Record {
	return []Record{s.Forward, s.Reverse}
}

// Desired computes the records that the given node addresses ought to produce within the
// given domain. The forward record is an A or AAAA record depending on the address family,
// the reverse record is a PTR record named after the address's reverse-zone name. The
// function is deterministic and never fails for a valid IP address.
func Desired(hostname string, ip netip.Addr, domain string, ttl int) RecordSet {
	fqdn := FQDN(hostname, domain)
	forwardType := TypeAAAA
	if ip.Is4() {
		forwardType = TypeA
	}
	return RecordSet{
		Forward: Record{Name: fqdn, Type: forwardType, Target: ip.String(), TTL: ttl},
		Reverse: Record{Name: ReverseName(ip), Type: TypePTR, Target: fqdn, TTL: ttl},
	}
}

// FQDN joins a hostname and a domain into a fully qualified name without a trailing dot.
func FQDN(hostname, domain string) string {
	return fmt.Sprintf("%s.%s", hostname, domain)
}

// ReverseName returns the reverse-zone name for the given address, i.e. the name that a PTR
// record for the address carries. IPv4 addresses yield `in-addr.arpa` names, IPv6 addresses
// yield nibble-format `ip6.arpa` names. The result carries no trailing dot. An invalid
// (zero) address yields an empty name.
func ReverseName(ip netip.Addr) string {
	arpa, err := miekgdns.ReverseAddr(ip.String())
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(arpa, ".")
}

// Matches determines whether a record fetched from the provider is semantically equal to a
// desired record. Only the name, type and target participate in the comparison, names are
// compared case-insensitively. In particular, differing TTLs or provider IDs never make two
// otherwise equal records mismatch.
func Matches(remote, desired Record) bool {
	return strings.EqualFold(remote.Name, desired.Name) &&
		remote.Type == desired.Type &&
		remote.Target == desired.Target
}
