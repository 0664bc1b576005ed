package index

import (
	policyv1alpha1 "github.com/hashicorp/inbound-policy-controller/api/v1alpha1"
	"github.com/hashicorp/inbound-policy-controller/internal/core"
	"github.com/hashicorp/inbound-policy-controller/internal/k8sevents"
	"github.com/hashicorp/inbound-policy-controller/internal/lookup"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/util/intstr"
)

// serverRecord is the Server Index's per-name entry (§2.5, §3 "Server
// record"): port, pod selector, protocol, labels, the authorizations
// currently matched against it, and the broadcasting channel publishing
// its InboundServer snapshot.
type serverRecord struct {
	namespace     string
	name          string
	port          intstr.IntOrString
	rawSelector   labels.Selector
	protocol      core.Protocol
	labels        map[string]string
	matched       map[string]core.ClientAuthorization
	watch         *lookup.InnerWatch
}

func (sr *serverRecord) snapshot() core.InboundServer {
	return core.InboundServer{Labels: sr.labels, Protocol: sr.protocol, Authorizations: sr.matched}
}

func (ix *Index) publishServer(sr *serverRecord) {
	sr.watch.Send(sr.snapshot())
}

func (ix *Index) handleServerEvent(ev k8sevents.Event[*policyv1alpha1.Server]) {
	switch ev.Kind {
	case k8sevents.Applied:
		ix.applyServer(ev.Object)
	case k8sevents.Deleted:
		ix.deleteServer(ev.Key.Namespace, ev.Key.Name)
	case k8sevents.Restarted:
		ix.resetServers(ev.Objects)
	}
}

// applyServer implements §4.3.
func (ix *Index) applyServer(obj *policyv1alpha1.Server) {
	if errs := obj.Validate(); len(errs) > 0 {
		ix.log.Warn("rejecting Server", "namespace", obj.Namespace, "name", obj.Name, "error", errs.ToAggregate())
		return
	}

	selector, err := labelSelectorFromSpec(&obj.Spec.PodSelector)
	if err != nil {
		ix.log.Warn("rejecting Server", "namespace", obj.Namespace, "name", obj.Name, "error", err)
		return
	}
	protocol := core.ParseProtocol(protocolString(obj))

	ns := ix.namespaceFor(obj.Namespace)
	existing, ok := ns.servers[obj.Name]
	if !ok {
		sr := &serverRecord{
			namespace:   obj.Namespace,
			name:        obj.Name,
			port:        obj.Spec.Port,
			rawSelector: selector,
			protocol:    protocol,
			labels:      obj.Labels,
		}
		sr.matched = ix.matchedAuthorizationsForServer(ns, sr)
		sr.watch = lookup.NewWatch(sr.snapshot())
		ns.servers[obj.Name] = sr
		ix.relinkNamespacePods(ns)
		return
	}

	labelsChanged := !stringMapEqual(existing.labels, obj.Labels)
	// protocol_changed is the bug the source material gets backwards
	// (stored == new); here it is correctly an inequality so protocol
	// changes always trigger a republish.
	protocolChanged := !existing.protocol.Equal(protocol)
	portChanged := existing.port != obj.Spec.Port
	selectorChanged := existing.rawSelector.String() != selector.String()

	if labelsChanged {
		existing.labels = obj.Labels
		existing.matched = ix.matchedAuthorizationsForServer(ns, existing)
	}
	if labelsChanged || protocolChanged {
		existing.protocol = protocol
		ix.publishServer(existing)
	}
	if portChanged || selectorChanged {
		existing.port = obj.Spec.Port
		existing.rawSelector = selector
		ix.relinkNamespacePods(ns)
	}
}

func protocolString(obj *policyv1alpha1.Server) string {
	if obj.Spec.Proxy == nil {
		return ""
	}
	return obj.Spec.Proxy.Protocol
}

// deleteServer removes the record; every pod-port previously pointing at
// it is re-pointed to the namespace default (§4.3 delete).
func (ix *Index) deleteServer(namespace, name string) {
	ns, ok := ix.namespaces[namespace]
	if !ok {
		ix.log.Warn("delete of Server in non-existent namespace", "namespace", namespace, "name", name)
		return
	}
	if _, ok := ns.servers[name]; !ok {
		ix.log.Warn("delete of non-existent Server", "namespace", namespace, "name", name)
		return
	}
	delete(ns.servers, name)
	ix.relinkNamespacePods(ns)
	ix.pruneNamespaceIfEmpty(namespace)
}

func (ix *Index) resetServers(objs []*policyv1alpha1.Server) {
	byNS := map[string]map[string]bool{}
	for _, o := range objs {
		if byNS[o.Namespace] == nil {
			byNS[o.Namespace] = map[string]bool{}
		}
		byNS[o.Namespace][o.Name] = true
		ix.applyServer(o)
	}
	for nsName, ns := range ix.namespaces {
		present := byNS[nsName]
		for name := range ns.servers {
			if !present[name] {
				ix.deleteServer(nsName, name)
			}
		}
	}
}
