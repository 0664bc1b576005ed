// Package v1alpha1 contains the Server and ServerAuthorization custom
// resource types, registered against client-go's scheme machinery.
// +kubebuilder:object:generate=true
// +groupName=policy.linkerd.io
package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

var (
	// GroupVersion is the API Group Version used to register these types.
	GroupVersion = schema.GroupVersion{Group: "policy.linkerd.io", Version: "v1alpha1"}

	// SchemeBuilder is used to add go types to the GroupVersionKind scheme.
	SchemeBuilder = &schemeBuilder{GroupVersion: GroupVersion}

	// AddToScheme adds the types in this group-version to the given scheme.
	AddToScheme = SchemeBuilder.AddToScheme
)

// schemeBuilder is a tiny stand-in for controller-gen's generated
// SchemeBuilder: it only needs Register/AddToScheme, not the full
// runtime.SchemeBuilder machinery.
type schemeBuilder struct {
	GroupVersion schema.GroupVersion
	types        []runtime.Object
}

func (s *schemeBuilder) Register(objs ...runtime.Object) {
	s.types = append(s.types, objs...)
}

func (s *schemeBuilder) AddToScheme(scheme *runtime.Scheme) error {
	scheme.AddKnownTypes(s.GroupVersion, s.types...)
	metav1.AddToGroupVersion(scheme, s.GroupVersion)
	return nil
}
