package index

import (
	corev1 "k8s.io/api/core/v1"

	"github.com/hashicorp/inbound-policy-controller/internal/core"
	"github.com/hashicorp/inbound-policy-controller/internal/k8sevents"
)

func (ix *Index) handleNamespaceEvent(ev k8sevents.Event[*corev1.Namespace]) {
	switch ev.Kind {
	case k8sevents.Applied:
		ix.applyNamespace(ev.Object)
	case k8sevents.Deleted:
		ix.deleteNamespace(ev.Key.Name)
	case k8sevents.Restarted:
		ix.resetNamespaces(ev.Objects)
	}
}

// applyNamespace upserts the namespace's default-allow annotation only
// (§2.3: "holds ... the namespace's default-allow mode"); pods, servers
// and authorizations are independently indexed by their own streams.
func (ix *Index) applyNamespace(obj *corev1.Namespace) {
	ns := ix.namespaceFor(obj.Name)
	ns.defaultAnnotation = obj.Annotations[core.DefaultAllowAnnotation]
}

// deleteNamespace clears the namespace's default annotation; the
// namespace record itself is only removed once it holds no pods, servers,
// or authorizations (§3 Namespace lifecycle).
func (ix *Index) deleteNamespace(name string) {
	if ns, ok := ix.namespaces[name]; ok {
		ns.defaultAnnotation = ""
		ix.pruneNamespaceIfEmpty(name)
	}
}

func (ix *Index) resetNamespaces(objs []*corev1.Namespace) {
	seen := make(map[string]bool, len(objs))
	for _, obj := range objs {
		seen[obj.Name] = true
		ix.applyNamespace(obj)
	}
	for name := range ix.namespaces {
		if !seen[name] {
			ix.deleteNamespace(name)
		}
	}
}
