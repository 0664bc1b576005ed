// Package index implements the single-writer indexing task: the
// Namespace, Node, Pod, Server and Authorization indexes of §4, and the
// scheduler that merges the five Kubernetes event streams (§4.1).
package index

import (
	corev1 "k8s.io/api/core/v1"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/inbound-policy-controller/internal/core"
	"github.com/hashicorp/inbound-policy-controller/internal/defaultallow"
	"github.com/hashicorp/inbound-policy-controller/internal/k8sevents"
	"github.com/hashicorp/inbound-policy-controller/internal/lookup"
	policyv1alpha1 "github.com/hashicorp/inbound-policy-controller/api/v1alpha1"
)

// namespace is the per-namespace container of §2.3: a Pod Index, a Server
// Index, an Authorization Index and the namespace's own default-allow
// annotation, all addressed by name within flat maps (the "arena and
// index pattern" of §9: cross-references are by name only, never by
// pointer cycle).
type namespace struct {
	name              string
	defaultAnnotation string
	servers           map[string]*serverRecord
	authzs            map[string]*authzRecord
	pods              map[string]*podRecord
}

func newNamespace(name string) *namespace {
	return &namespace{
		name:    name,
		servers: map[string]*serverRecord{},
		authzs:  map[string]*authzRecord{},
		pods:    map[string]*podRecord{},
	}
}

func (n *namespace) empty() bool {
	return len(n.servers) == 0 && len(n.authzs) == 0 && len(n.pods) == 0
}

// Index owns every namespace index, the Node Index, and the pending-pod
// set, and is the sole writer of the Lookup Table (§4.6). All of its
// methods below are only ever called from the single goroutine running
// Run; nothing here takes a lock (§4.1, §5).
type Index struct {
	log             hclog.Logger
	identityDomain  string
	clusterNetworks []core.ClientNetwork
	defaults        *defaultallow.Registry
	table           *lookup.Table

	namespaces map[string]*namespace
	nodes      map[string]core.KubeletIPs
	// pending holds pods observed before their node, keyed by node name
	// then by "namespace/name" (§3 Pod lifecycle, I5).
	pending map[string]map[string]*corev1.Pod

	ready      bool
	readyWatch *lookup.Watch[bool]
}

// New constructs an empty Index. identityDomain and clusterNetworks are
// process-wide configuration (§6 CLI flags); defaults is the already-built
// Default-Allow Registry; table is the Lookup Table this Index will own.
func New(log hclog.Logger, identityDomain string, clusterNetworks []core.ClientNetwork, defaults *defaultallow.Registry, table *lookup.Table) *Index {
	return &Index{
		log:             log,
		identityDomain:  identityDomain,
		clusterNetworks: clusterNetworks,
		defaults:        defaults,
		table:           table,
		namespaces:      map[string]*namespace{},
		nodes:           map[string]core.KubeletIPs{},
		pending:         map[string]map[string]*corev1.Pod{},
		readyWatch:      lookup.NewWatch(false),
	}
}

// Ready returns a receiver observing the readiness flag: it fires once
// (§4.1 "a single-slot notification channel") when every input stream has
// delivered its first Restarted.
func (ix *Index) Ready() *lookup.Receiver[bool] {
	return ix.readyWatch.Subscribe()
}

func (ix *Index) namespaceFor(name string) *namespace {
	ns, ok := ix.namespaces[name]
	if !ok {
		ns = newNamespace(name)
		ix.namespaces[name] = ns
	}
	return ns
}

func (ix *Index) pruneNamespaceIfEmpty(name string) {
	if ns, ok := ix.namespaces[name]; ok && ns.empty() {
		delete(ix.namespaces, name)
	}
}

// Sources bundles the five typed event channels the scheduler selects
// over (§4.1 "the merge of five event streams").
type Sources struct {
	Nodes      *k8sevents.Source[*corev1.Node]
	Namespaces *k8sevents.Source[*corev1.Namespace]
	Pods       *k8sevents.Source[*corev1.Pod]
	Servers    *k8sevents.Source[*policyv1alpha1.Server]
	Authzs     *k8sevents.Source[*policyv1alpha1.ServerAuthorization]
}

// streamDone tracks which of the five streams have delivered their first
// Restarted event, to compute the readiness flag (§4.1).
type streamDone struct {
	nodes, namespaces, pods, servers, authzs bool
}

func (d *streamDone) all() bool {
	return d.nodes && d.namespaces && d.pods && d.servers && d.authzs
}

// Run is the single long-running indexing task (§4.1). It returns when
// stopCh fires or as soon as any source's channel closes.
func (ix *Index) Run(stopCh <-chan struct{}, src Sources) {
	var done streamDone
	nodesCh := src.Nodes.Events()
	nsCh := src.Namespaces.Events()
	podsCh := src.Pods.Events()
	serversCh := src.Servers.Events()
	authzsCh := src.Authzs.Events()

	for {
		select {
		case <-stopCh:
			return

		case ev, ok := <-nodesCh:
			if !ok {
				return
			}
			ix.handleNodeEvent(ev)
			if ev.Kind == k8sevents.Restarted {
				done.nodes = true
				ix.maybeReady(&done)
			}

		case ev, ok := <-nsCh:
			if !ok {
				return
			}
			ix.handleNamespaceEvent(ev)
			if ev.Kind == k8sevents.Restarted {
				done.namespaces = true
				ix.maybeReady(&done)
			}

		case ev, ok := <-podsCh:
			if !ok {
				return
			}
			ix.handlePodEvent(ev)
			if ev.Kind == k8sevents.Restarted {
				done.pods = true
				ix.maybeReady(&done)
			}

		case ev, ok := <-serversCh:
			if !ok {
				return
			}
			ix.handleServerEvent(ev)
			if ev.Kind == k8sevents.Restarted {
				done.servers = true
				ix.maybeReady(&done)
			}

		case ev, ok := <-authzsCh:
			if !ok {
				return
			}
			ix.handleAuthzEvent(ev)
			if ev.Kind == k8sevents.Restarted {
				done.authzs = true
				ix.maybeReady(&done)
			}
		}
	}
}

func (ix *Index) maybeReady(d *streamDone) {
	if ix.ready || !d.all() {
		return
	}
	ix.ready = true
	ix.readyWatch.Send(true)
}
