package lookup

import (
	"sync"

	"github.com/hashicorp/inbound-policy-controller/internal/core"
)

// InnerWatch carries the live InboundServer snapshot published by a
// Server's or a default-allow's channel.
type InnerWatch = Watch[core.InboundServer]

// InnerReceiver observes an InnerWatch.
type InnerReceiver = Receiver[core.InboundServer]

// OuterWatch carries the *InnerReceiver currently targeted by a pod port;
// sending a new inner receiver re-points every downstream subscriber
// (§4.5's "publish the new inner receiver on the outer channel").
type OuterWatch = Watch[*InnerReceiver]

// OuterReceiver observes an OuterWatch.
type OuterReceiver = Receiver[*InnerReceiver]

// Entry is the Lookup Table's value: a pod port's kubelet IPs plus its
// outer channel. Entry is an immutable handle — Subscribe is what's cheap
// to clone per discovery stream (§4.6).
type Entry struct {
	Kubelet core.KubeletIPs
	Outer   *OuterWatch
}

// Subscribe returns a fresh OuterReceiver positioned at the entry's
// current inner receiver.
func (e *Entry) Subscribe() *OuterReceiver {
	return e.Outer.Subscribe()
}

// byPod is namespace-local: pod name -> port -> Entry.
type byPod map[string]map[int32]*Entry

// Table is the concurrent map keyed by namespace -> pod -> port -> Entry
// (§4.6). The indexer is the sole writer; discovery handlers are
// concurrent lock-free-from-their-perspective readers (reads still take a
// short-lived RWMutex read lock, but never block on indexer work since the
// indexer only holds the lock for the map mutation itself, never for
// channel sends).
type Table struct {
	mu   sync.RWMutex
	byNS map[string]byPod
}

// NewTable constructs an empty Lookup Table.
func NewTable() *Table {
	return &Table{byNS: make(map[string]byPod)}
}

// Get looks up a single (namespace, pod, port) entry.
func (t *Table) Get(ns, pod string, port int32) (*Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pods, ok := t.byNS[ns]
	if !ok {
		return nil, false
	}
	ports, ok := pods[pod]
	if !ok {
		return nil, false
	}
	e, ok := ports[port]
	return e, ok
}

// Set installs a pod's full port set atomically — readers never observe a
// partially-installed pod (§4.6). It fails if the pod already exists;
// callers must Unset first to replace it.
func (t *Table) Set(ns, pod string, ports map[int32]*Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	pods, ok := t.byNS[ns]
	if !ok {
		pods = make(byPod)
		t.byNS[ns] = pods
	}
	if _, exists := pods[pod]; exists {
		return core.NewValidationError("Pod", ns, pod, "already present in lookup table")
	}
	pods[pod] = ports
	return nil
}

// AddPorts merges newEntries into an already-installed pod's port set,
// for the rare case a running pod's container ports change after
// creation. It is a no-op if the pod isn't yet installed; callers should
// use Set for the first install.
func (t *Table) AddPorts(ns, pod string, newEntries map[int32]*Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pods, ok := t.byNS[ns]
	if !ok {
		return
	}
	ports, ok := pods[pod]
	if !ok {
		return
	}
	for port, e := range newEntries {
		if _, exists := ports[port]; !exists {
			ports[port] = e
		}
	}
}

// Unset removes a pod's entries, and the namespace entry itself if it
// becomes empty.
func (t *Table) Unset(ns, pod string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pods, ok := t.byNS[ns]
	if !ok {
		return
	}
	delete(pods, pod)
	if len(pods) == 0 {
		delete(t.byNS, ns)
	}
}

// Len reports the number of indexed pods across all namespaces, for tests
// and metrics.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, pods := range t.byNS {
		n += len(pods)
	}
	return n
}
