// Package k8sevents adapts client-go SharedIndexInformers into the
// ordered Applied/Deleted/Restarted event streams the indexing task
// consumes (§4.1, §6 "Kubernetes watch inputs"): an informer feeding a
// rate-limited workqueue, processed by a single worker loop. A Deleted
// event carries only the resource's key — by the time it's processed the
// object is already gone from the informer's store.
package k8sevents

import (
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/go-hclog"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/tools/cache"
	"k8s.io/client-go/util/workqueue"
)

// Kind discriminates an Event's variant.
type Kind int

const (
	Applied Kind = iota
	Deleted
	Restarted
)

func (k Kind) String() string {
	switch k {
	case Applied:
		return "Applied"
	case Deleted:
		return "Deleted"
	case Restarted:
		return "Restarted"
	default:
		return "Unknown"
	}
}

// Key identifies a resource by namespace/name (namespace empty for
// cluster-scoped kinds such as Node).
type Key struct {
	Namespace string
	Name      string
}

// Event is one notification from a Source: Applied carries Object;
// Deleted carries only Key; Restarted carries the full current set
// (Objects), which the indexer reconciles by symmetric difference (I6).
type Event[T any] struct {
	Kind    Kind
	Object  T
	Key     Key
	Objects []T
}

// Convert maps an informer's raw object to a typed T. ok is false when the
// object's type doesn't match (defensive: informers only ever hand back
// what they were configured to list/watch, but the callback API is
// interface{}).
type Convert[T any] func(obj interface{}) (T, bool)

// Source bridges one SharedIndexInformer into a single buffered Event[T]
// channel, in resource-kind order as the watch delivered them (§5
// "Ordering guarantees").
type Source[T any] struct {
	log      hclog.Logger
	kind     string
	informer cache.SharedIndexInformer
	convert  Convert[T]
	events   chan Event[T]
}

// NewSource constructs a Source. kind is used only for log fields (e.g.
// "Pod", "Server").
func NewSource[T any](log hclog.Logger, kind string, informer cache.SharedIndexInformer, convert Convert[T]) *Source[T] {
	return &Source[T]{
		log:      log.Named(kind),
		kind:     kind,
		informer: informer,
		convert:  convert,
		events:   make(chan Event[T], 128),
	}
}

// Events returns the channel the indexer selects over for this kind.
func (s *Source[T]) Events() <-chan Event[T] {
	return s.events
}

// Run starts the informer and the worker loop, and blocks until stopCh
// closes. The channel returned by Events is closed only when Run returns,
// signaling the indexer that this input stream has ended (§4.1 "the task
// only returns fatally when an input stream closes").
func (s *Source[T]) Run(stopCh <-chan struct{}) {
	defer utilruntime.HandleCrash()
	defer close(s.events)

	queue := workqueue.NewRateLimitingQueue(workqueue.DefaultControllerRateLimiter())
	defer queue.ShutDown()

	s.informer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc:    func(obj interface{}) { s.enqueue(queue, obj) },
		UpdateFunc: func(_, obj interface{}) { s.enqueue(queue, obj) },
		DeleteFunc: func(obj interface{}) { s.enqueue(queue, obj) },
	})

	go s.informer.Run(stopCh)

	if !cache.WaitForCacheSync(stopCh, s.informer.HasSynced) {
		utilruntime.HandleError(fmt.Errorf("%s: cache sync failed", s.kind))
		return
	}
	s.emitRestarted()

	wait.Until(func() {
		for s.processNext(queue) {
		}
	}, time.Second, stopCh)
}

func (s *Source[T]) enqueue(queue workqueue.RateLimitingInterface, obj interface{}) {
	key, err := cache.DeletionHandlingMetaNamespaceKeyFunc(obj)
	if err != nil {
		s.log.Warn("dropping object with no key", "error", err)
		return
	}
	queue.Add(key)
}

// emitRestarted reads every object currently in the informer's local
// store and sends one Restarted event, the source of truth for this kind
// at this moment (§6).
func (s *Source[T]) emitRestarted() {
	keys := s.informer.GetIndexer().ListKeys()
	sort.Strings(keys)

	objs := make([]T, 0, len(keys))
	for _, key := range keys {
		raw, exists, err := s.informer.GetIndexer().GetByKey(key)
		if err != nil || !exists {
			continue
		}
		t, ok := s.convert(raw)
		if !ok {
			s.log.Warn("skipping object of unexpected type during restart", "key", key)
			continue
		}
		objs = append(objs, t)
	}
	s.log.Info("initial cache sync complete", "count", len(objs))
	s.events <- Event[T]{Kind: Restarted, Objects: objs}
}

func (s *Source[T]) processNext(queue workqueue.RateLimitingInterface) bool {
	key, quit := queue.Get()
	if quit {
		return false
	}
	defer queue.Done(key)

	keyRaw, ok := key.(string)
	if !ok {
		s.log.Warn("dropping non-string key", "key", key)
		queue.Forget(key)
		return true
	}

	raw, exists, err := s.informer.GetIndexer().GetByKey(keyRaw)
	if err != nil {
		if queue.NumRequeues(key) < 5 {
			s.log.Error("failed reading object, retrying", "key", keyRaw, "error", err)
			queue.AddRateLimited(key)
		} else {
			s.log.Error("failed reading object, no more retries", "key", keyRaw, "error", err)
			queue.Forget(key)
		}
		return true
	}
	queue.Forget(key)

	if !exists {
		ns, name, splitErr := cache.SplitMetaNamespaceKey(keyRaw)
		if splitErr != nil {
			s.log.Warn("dropping delete with unparseable key", "key", keyRaw, "error", splitErr)
			return true
		}
		s.events <- Event[T]{Kind: Deleted, Key: Key{Namespace: ns, Name: name}}
		return true
	}

	t, ok := s.convert(raw)
	if !ok {
		s.log.Warn("skipping object of unexpected type", "key", keyRaw)
		return true
	}
	s.events <- Event[T]{Kind: Applied, Object: t}
	return true
}
