package k8s

import (
	"errors"
	"net/netip"

	corev1 "k8s.io/api/core/v1"
)

// ErrNoAddressAvailable indicates that a node does not (yet) expose the addresses required to
// derive its DNS records. The condition is transient: addresses are usually assigned by the
// cloud provider shortly after the node registers.
var ErrNoAddressAvailable = errors.New("node has no usable address")

// NodeAddress is the pair of values that a node's DNS records are derived from.
type NodeAddress struct {
	Hostname string
	IP       netip.Addr
}

// ResolveNodeAddress extracts the node's hostname and its IP address of the given type from
// the node status. It fails with ErrNoAddressAvailable when the hostname is missing or no
// address of the given type parses as an IP address.
func ResolveNodeAddress(node *corev1.Node, addressType corev1.NodeAddressType) (NodeAddress, error) {
	var address NodeAddress
	for _, entry := range node.Status.Addresses {
		switch entry.Type {
		case corev1.NodeHostName:
			if address.Hostname == "" {
				address.Hostname = entry.Address
			}
		case addressType:
			if !address.IP.IsValid() {
				if ip, err := netip.ParseAddr(entry.Address); err == nil {
					address.IP = ip
				}
			}
		}
	}
	if address.Hostname == "" || !address.IP.IsValid() {
		return NodeAddress{}, ErrNoAddressAvailable
	}
	return address, nil
}
