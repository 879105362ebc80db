package k8tests

import (
	"github.com/google/uuid"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// DummyNode returns a dummy node with the given name whose status reports the given hostname
// and external IP. Empty values are omitted from the status, which allows building nodes that
// have not been assigned their addresses yet.
func DummyNode(name, hostname, ip string) v1.Node {
	addresses := make([]v1.NodeAddress, 0, 2)
	if hostname != "" {
		addresses = append(addresses, v1.NodeAddress{Type: v1.NodeHostName, Address: hostname})
	}
	if ip != "" {
		addresses = append(addresses, v1.NodeAddress{Type: v1.NodeExternalIP, Address: ip})
	}
	return v1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Status:     v1.NodeStatus{Addresses: addresses},
	}
}

// RandomNodeName returns a unique node name for test fixtures.
func RandomNodeName() string {
	return uuid.NewString()
}
