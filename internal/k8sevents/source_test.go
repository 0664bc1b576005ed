package k8sevents

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/fake"
	"k8s.io/client-go/tools/cache"
)

func nodeInformer(client kubernetes.Interface) cache.SharedIndexInformer {
	return cache.NewSharedIndexInformer(
		&cache.ListWatch{
			ListFunc: func(options metav1.ListOptions) (runtime.Object, error) {
				return client.CoreV1().Nodes().List(context.TODO(), options)
			},
			WatchFunc: func(options metav1.ListOptions) (watch.Interface, error) {
				return client.CoreV1().Nodes().Watch(context.TODO(), options)
			},
		},
		&corev1.Node{}, 0, cache.Indexers{},
	)
}

func convertNode(obj interface{}) (*corev1.Node, bool) {
	n, ok := obj.(*corev1.Node)
	return n, ok
}

func testNode(name string) *corev1.Node {
	return &corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: name}}
}

func TestSourceEmitsRestartedThenApplied(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	client := fake.NewSimpleClientset(testNode("node-0"))
	src := NewSource(hclog.NewNullLogger(), "Node", nodeInformer(client), convertNode)

	stop := make(chan struct{})
	defer close(stop)
	go src.Run(stop)

	select {
	case ev := <-src.Events():
		require.Equal(Restarted, ev.Kind)
		require.Len(ev.Objects, 1)
		require.Equal("node-0", ev.Objects[0].Name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Restarted event")
	}

	_, err := client.CoreV1().Nodes().Create(context.TODO(), testNode("node-1"), metav1.CreateOptions{})
	require.NoError(err)

	select {
	case ev := <-src.Events():
		require.Equal(Applied, ev.Kind)
		require.Equal("node-1", ev.Object.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Applied event")
	}
}

func TestSourceEmitsDeletedWithKeyOnly(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	client := fake.NewSimpleClientset(testNode("node-0"))
	src := NewSource(hclog.NewNullLogger(), "Node", nodeInformer(client), convertNode)

	stop := make(chan struct{})
	defer close(stop)
	go src.Run(stop)

	// drain the initial Restarted event
	<-src.Events()

	require.NoError(client.CoreV1().Nodes().Delete(context.TODO(), "node-0", metav1.DeleteOptions{}))

	select {
	case ev := <-src.Events():
		require.Equal(Deleted, ev.Kind)
		require.Equal("node-0", ev.Key.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Deleted event")
	}
}
