package index

import (
	"sort"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/hashicorp/inbound-policy-controller/internal/core"
	"github.com/hashicorp/inbound-policy-controller/internal/k8sevents"
	"github.com/hashicorp/inbound-policy-controller/internal/lookup"
)

// portState is a single container port's link state (§3 "Pod port
// state"): which Server (if any) currently owns it, and the two-level
// outer channel that steers stream subscribers.
type portState struct {
	port        int32
	name        string                // the container port's declared name, "" if none
	serverName  string                // "" means the namespace default is the current target
	defaultName core.DefaultAllowName // last-linked default, only meaningful when serverName == ""
	outer       *lookup.OuterWatch
}

// podRecord is the Pod Index's per-name entry (§2.6).
type podRecord struct {
	namespace   string
	name        string
	nodeName    string
	labels      map[string]string
	defaultName core.DefaultAllowName
	ports       map[int32]*portState
}

func (ix *Index) handlePodEvent(ev k8sevents.Event[*corev1.Pod]) {
	switch ev.Kind {
	case k8sevents.Applied:
		ix.applyPod(ev.Object)
	case k8sevents.Deleted:
		ix.deletePod(ev.Key.Namespace, ev.Key.Name)
	case k8sevents.Restarted:
		ix.resetPods(ev.Objects)
	}
}

// containerPorts harvests each distinct port number from a pod's
// container specs, paired with its declared name if any (§4.5).
func containerPorts(pod *corev1.Pod) map[int32]string {
	ports := map[int32]string{}
	for _, c := range pod.Spec.Containers {
		for _, p := range c.Ports {
			if _, ok := ports[p.ContainerPort]; !ok {
				ports[p.ContainerPort] = p.Name
			}
		}
	}
	return ports
}

// applyPod implements the Pod Index half of §3/§4.5: index the pod if its
// node is known, otherwise hold it pending (I5).
func (ix *Index) applyPod(pod *corev1.Pod) {
	nodeName := pod.Spec.NodeName
	_, known := ix.nodes[nodeName]

	if nodeName == "" || !known {
		ix.removeIndexedPod(pod.Namespace, pod.Name)
		ix.addPending(nodeName, pod)
		return
	}
	ix.removePending(nodeName, pod.Namespace, pod.Name)
	ix.installOrUpdatePod(pod, nodeName)
}

func (ix *Index) addPending(nodeName string, pod *corev1.Pod) {
	key := pod.Namespace + "/" + pod.Name
	bucket, ok := ix.pending[nodeName]
	if !ok {
		bucket = map[string]*corev1.Pod{}
		ix.pending[nodeName] = bucket
	}
	bucket[key] = pod
}

func (ix *Index) removePending(nodeName, namespace, name string) {
	if bucket, ok := ix.pending[nodeName]; ok {
		delete(bucket, namespace+"/"+name)
		if len(bucket) == 0 {
			delete(ix.pending, nodeName)
		}
	}
}

// materializePending installs every pod that was waiting on nodeName
// (§3 Pod lifecycle: "materialized on the node's Applied event").
func (ix *Index) materializePending(nodeName string) {
	bucket, ok := ix.pending[nodeName]
	if !ok {
		return
	}
	delete(ix.pending, nodeName)
	for _, pod := range bucket {
		ix.installOrUpdatePod(pod, nodeName)
	}
}

// installOrUpdatePod indexes pod (creating or updating its podRecord),
// resolves its effective default-allow, links every port, and installs
// the result atomically into the Lookup Table.
func (ix *Index) installOrUpdatePod(pod *corev1.Pod, nodeName string) {
	ns := ix.namespaceFor(pod.Namespace)
	defaultName := ix.defaults.Resolve(pod.Annotations[core.DefaultAllowAnnotation], ns.defaultAnnotation)

	pr, existed := ns.pods[pod.Name]
	if !existed {
		pr = &podRecord{
			namespace: pod.Namespace,
			name:      pod.Name,
			ports:     map[int32]*portState{},
		}
		ns.pods[pod.Name] = pr
	}
	pr.nodeName = nodeName
	pr.labels = pod.Labels
	pr.defaultName = defaultName

	portNames := containerPorts(pod)
	for port, name := range portNames {
		if _, ok := pr.ports[port]; !ok {
			pr.ports[port] = &portState{port: port, name: name}
		}
	}

	entries := make(map[int32]*lookup.Entry, len(pr.ports))
	kubelet := ix.nodes[nodeName]
	for port, ps := range pr.ports {
		ix.linkPort(ns, pr, ps)
		entries[port] = &lookup.Entry{Kubelet: kubelet, Outer: ps.outer}
	}

	if !existed {
		if err := ix.table.Set(pod.Namespace, pod.Name, entries); err != nil {
			ix.log.Warn("failed to install pod", "namespace", pod.Namespace, "name", pod.Name, "error", err)
		}
	} else {
		ix.table.AddPorts(pod.Namespace, pod.Name, entries)
	}
}

// linkPort implements §4.5's linking policy for a single port, creating
// the port's outer channel on first link and re-pointing it on every
// subsequent change.
func (ix *Index) linkPort(ns *namespace, pr *podRecord, ps *portState) {
	winner := ix.selectServer(ns, pr, ps)

	winnerName := ""
	var target *lookup.InnerWatch
	if winner != nil {
		winnerName = winner.name
		target = winner.watch
	} else {
		target = ix.defaults.Watch(pr.defaultName)
	}

	if ps.outer == nil {
		ps.outer = lookup.NewWatch(target.Subscribe())
		ps.serverName = winnerName
		ps.defaultName = pr.defaultName
		return
	}
	changed := ps.serverName != winnerName
	if winner == nil && ps.defaultName != pr.defaultName {
		changed = true
	}
	if changed {
		ps.serverName = winnerName
		ps.defaultName = pr.defaultName
		ps.outer.Send(target.Subscribe())
	}
}

// selectServer applies the §4.5 candidate/tie-break policy: 0 matches ⇒
// nil (default); 1 ⇒ that Server; ≥2 ⇒ a warning and the
// lexicographically smallest name (§9 resolved open question).
func (ix *Index) selectServer(ns *namespace, pr *podRecord, ps *portState) *serverRecord {
	var candidates []*serverRecord
	for _, sr := range ns.servers {
		if !serverMatchesPort(sr, ps) {
			continue
		}
		if !sr.rawSelector.Matches(labels.Set(pr.labels)) {
			continue
		}
		candidates = append(candidates, sr)
	}
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].name < candidates[j].name })
	ix.log.Warn("multiple Servers match the same pod port, choosing lexicographically smallest",
		"namespace", ns.name, "pod", pr.name, "port", ps.port, "chosen", candidates[0].name)
	return candidates[0]
}

func serverMatchesPort(sr *serverRecord, ps *portState) bool {
	if sr.port.Type == intstr.Int {
		return sr.port.IntVal == ps.port
	}
	return sr.port.StrVal != "" && sr.port.StrVal == ps.name
}

// relinkNamespacePods re-links every pod in ns, called whenever a Server
// is added, removed, or has its port/selector changed (§4.3 step 4).
func (ix *Index) relinkNamespacePods(ns *namespace) {
	for _, pr := range ns.pods {
		for _, ps := range pr.ports {
			ix.linkPort(ns, pr, ps)
		}
	}
}

// removeIndexedPod drops a fully-indexed pod's state, closing every port's
// outer channel (stream teardown signal) and removing it from the Lookup
// Table. It is a no-op if the pod isn't currently indexed.
func (ix *Index) removeIndexedPod(namespace, name string) {
	ns, ok := ix.namespaces[namespace]
	if !ok {
		return
	}
	pr, ok := ns.pods[name]
	if !ok {
		return
	}
	for _, ps := range pr.ports {
		if ps.outer != nil {
			ps.outer.Close()
		}
	}
	delete(ns.pods, name)
	ix.table.Unset(namespace, name)
}

func (ix *Index) deletePod(namespace, name string) {
	for node, bucket := range ix.pending {
		if _, ok := bucket[namespace+"/"+name]; ok {
			delete(bucket, namespace+"/"+name)
			if len(bucket) == 0 {
				delete(ix.pending, node)
			}
		}
	}
	ix.removeIndexedPod(namespace, name)
	ix.pruneNamespaceIfEmpty(namespace)
}

func (ix *Index) resetPods(objs []*corev1.Pod) {
	byNS := map[string]map[string]bool{}
	for _, o := range objs {
		if byNS[o.Namespace] == nil {
			byNS[o.Namespace] = map[string]bool{}
		}
		byNS[o.Namespace][o.Name] = true
	}
	// Delete first so that re-applying a restarted set never observes a
	// stale pod lingering on a node it no longer claims (I6).
	for nsName, ns := range ix.namespaces {
		present := byNS[nsName]
		for name := range ns.pods {
			if !present[name] {
				ix.deletePod(nsName, name)
			}
		}
	}
	for node, bucket := range ix.pending {
		for key, pod := range bucket {
			present := byNS[pod.Namespace]
			if !present[pod.Name] {
				delete(bucket, key)
			}
		}
		if len(bucket) == 0 {
			delete(ix.pending, node)
		}
	}
	for _, o := range objs {
		ix.applyPod(o)
	}
}
