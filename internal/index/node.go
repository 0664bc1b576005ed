package index

import (
	"net"

	corev1 "k8s.io/api/core/v1"

	"github.com/hashicorp/inbound-policy-controller/internal/core"
	"github.com/hashicorp/inbound-policy-controller/internal/k8sevents"
)

// handleNodeEvent dispatches a single Node stream event (§4.1).
func (ix *Index) handleNodeEvent(ev k8sevents.Event[*corev1.Node]) {
	switch ev.Kind {
	case k8sevents.Applied:
		ix.applyNode(ev.Object)
	case k8sevents.Deleted:
		ix.deleteNode(ev.Key.Name)
	case k8sevents.Restarted:
		ix.resetNodes(ev.Objects)
	}
}

// resetNodes reconciles the Node Index to exactly the given set (I6).
func (ix *Index) resetNodes(nodes []*corev1.Node) {
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		seen[n.Name] = true
		ix.applyNode(n)
	}
	for name := range ix.nodes {
		if !seen[name] {
			ix.deleteNode(name)
		}
	}
}

// kubeletIPsFromPodCIDRs derives a node's kubelet IPs from its allocated
// pod CIDRs (§2 "Node Index"): the network address of each CIDR, which is
// the address the node's bridge (and so its kubelet) owns on that range.
func kubeletIPsFromPodCIDRs(node *corev1.Node) core.KubeletIPs {
	cidrs := node.Spec.PodCIDRs
	if len(cidrs) == 0 && node.Spec.PodCIDR != "" {
		cidrs = []string{node.Spec.PodCIDR}
	}

	ips := make([]net.IP, 0, len(cidrs))
	for _, c := range cidrs {
		_, ipnet, err := net.ParseCIDR(c)
		if err != nil {
			continue
		}
		ips = append(ips, ipnet.IP)
	}
	return core.KubeletIPs{IPs: ips}
}

// applyNode upserts the Node Index and, if the node is newly known,
// materializes any pods that were pending on it (I5, §3 Pod lifecycle).
func (ix *Index) applyNode(node *corev1.Node) {
	name := node.Name
	ips := kubeletIPsFromPodCIDRs(node)
	_, existed := ix.nodes[name]
	ix.nodes[name] = ips

	if !existed {
		ix.materializePending(name)
	}
}

// deleteNode removes a node. Pods hosted on it remain indexed; there is no
// cascade onto Pod state beyond the implicit loss of a fresh kubelet IP set
// on the next pod re-link. New pods on this node become pending again.
func (ix *Index) deleteNode(name string) {
	delete(ix.nodes, name)
}
