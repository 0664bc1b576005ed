package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/serializer"
	"k8s.io/client-go/rest"
)

// NewRESTClient builds a REST client scoped to the policy.linkerd.io/v1alpha1
// group-version, for use by cache.NewListWatchFromClient against the Server
// and ServerAuthorization CRDs (§6 "Kubernetes watch inputs"). There is no
// generated typed clientset for these CRDs, so the indexer watches them the
// same way client-go examples watch any CRD without one: a scheme-aware
// REST client plus a hand-built ListWatch.
func NewRESTClient(cfg *rest.Config) (*rest.RESTClient, error) {
	scheme := runtime.NewScheme()
	if err := AddToScheme(scheme); err != nil {
		return nil, err
	}
	if err := metav1.AddMetaToScheme(scheme); err != nil {
		return nil, err
	}

	cfgCopy := *cfg
	cfgCopy.GroupVersion = &GroupVersion
	cfgCopy.APIPath = "/apis"
	cfgCopy.NegotiatedSerializer = serializer.NewCodecFactory(scheme).WithoutConversion()
	if cfgCopy.UserAgent == "" {
		cfgCopy.UserAgent = rest.DefaultKubernetesUserAgent()
	}
	return rest.RESTClientFor(&cfgCopy)
}
