package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// ServerAuthorizationKubeKind is the singular kind name.
const ServerAuthorizationKubeKind = "serverauthorization"

func init() {
	SchemeBuilder.Register(&ServerAuthorization{}, &ServerAuthorizationList{})
}

// +kubebuilder:object:root=true

// ServerAuthorization declares which Servers a ClientSpec may reach
// (§3.1 / §4.4).
type ServerAuthorization struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`
	Spec              ServerAuthorizationSpec `json:"spec,omitempty"`
}

// +kubebuilder:object:root=true

// ServerAuthorizationList contains a list of ServerAuthorization.
type ServerAuthorizationList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []ServerAuthorization `json:"items"`
}

// ServerAuthorizationSpec is the desired state of a ServerAuthorization.
type ServerAuthorizationSpec struct {
	Server ServerSelector `json:"server"`
	Client ClientSpec     `json:"client"`
}

// ServerSelector names the Servers this authorization applies to: exactly
// one of Name or Selector must be set (§4.4).
type ServerSelector struct {
	Name     string                `json:"name,omitempty"`
	Selector *metav1.LabelSelector `json:"selector,omitempty"`
}

// ClientSpec is the client-side predicate: networks plus an
// authentication requirement (§4.4).
type ClientSpec struct {
	Networks        []NetworkSpec `json:"networks,omitempty"`
	Unauthenticated bool          `json:"unauthenticated,omitempty"`
	MeshTLS         *MeshTLSSpec  `json:"meshTLS,omitempty"`
}

// NetworkSpec is a CIDR with exclusions.
type NetworkSpec struct {
	CIDR   string   `json:"cidr"`
	Except []string `json:"except,omitempty"`
}

// MeshTLSSpec requires mesh TLS, either unconditionally (UnauthenticatedTLS)
// or restricted to specific identities/service accounts.
type MeshTLSSpec struct {
	UnauthenticatedTLS bool                `json:"unauthenticatedTLS,omitempty"`
	Identities         []string            `json:"identities,omitempty"`
	ServiceAccounts    []ServiceAccountRef `json:"serviceAccounts,omitempty"`
}

// ServiceAccountRef names a Kubernetes ServiceAccount whose mesh identity
// should be permitted; Namespace defaults to the authorization's own
// namespace (§4.4).
type ServiceAccountRef struct {
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name"`
}

// Validate checks the §4.4 structural requirements that don't require
// consulting the Authorization Index: ambiguous/empty server selection, a
// missing client predicate, and a meshTLS block with no identities and no
// serviceAccounts that does not set unauthenticatedTLS. internal/index,
// which has the identity_domain needed to expand ServiceAccountRefs,
// checks the expanded identity set again when it builds the authorization.
func (sa *ServerAuthorization) Validate() field.ErrorList {
	var allErrs field.ErrorList
	path := field.NewPath("spec")

	hasName := sa.Spec.Server.Name != ""
	hasSelector := sa.Spec.Server.Selector != nil
	switch {
	case hasName && hasSelector:
		allErrs = append(allErrs, field.Invalid(path.Child("server"), sa.Spec.Server, "ambiguous selection: both name and selector set"))
	case !hasName && !hasSelector:
		allErrs = append(allErrs, field.Invalid(path.Child("server"), sa.Spec.Server, "selects no servers: neither name nor selector set"))
	}

	if !sa.Spec.Client.Unauthenticated && sa.Spec.Client.MeshTLS == nil {
		allErrs = append(allErrs, field.Required(path.Child("client"), "exactly one of unauthenticated or meshTLS must be set"))
	}
	if sa.Spec.Client.MeshTLS != nil && !sa.Spec.Client.MeshTLS.UnauthenticatedTLS &&
		len(sa.Spec.Client.MeshTLS.Identities) == 0 && len(sa.Spec.Client.MeshTLS.ServiceAccounts) == 0 {
		allErrs = append(allErrs, field.Required(path.Child("client", "meshTLS"), "at least one identity or serviceAccount is required unless unauthenticatedTLS is set"))
	}
	return allErrs
}

// DeepCopyObject implements runtime.Object.
func (sa *ServerAuthorization) DeepCopyObject() runtime.Object {
	return sa.DeepCopy()
}

// DeepCopy creates a deep copy of ServerAuthorization.
func (sa *ServerAuthorization) DeepCopy() *ServerAuthorization {
	if sa == nil {
		return nil
	}
	out := new(ServerAuthorization)
	sa.DeepCopyInto(out)
	return out
}

// DeepCopyInto copies sa into out.
func (sa *ServerAuthorization) DeepCopyInto(out *ServerAuthorization) {
	out.TypeMeta = sa.TypeMeta
	sa.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	out.Spec = *sa.Spec.DeepCopy()
}

// DeepCopy creates a deep copy of ServerAuthorizationSpec.
func (s *ServerAuthorizationSpec) DeepCopy() *ServerAuthorizationSpec {
	out := new(ServerAuthorizationSpec)
	out.Server.Name = s.Server.Name
	if s.Server.Selector != nil {
		out.Server.Selector = s.Server.Selector.DeepCopy()
	}
	out.Client.Unauthenticated = s.Client.Unauthenticated
	if s.Client.Networks != nil {
		out.Client.Networks = make([]NetworkSpec, len(s.Client.Networks))
		copy(out.Client.Networks, s.Client.Networks)
	}
	if s.Client.MeshTLS != nil {
		m := *s.Client.MeshTLS
		if s.Client.MeshTLS.Identities != nil {
			m.Identities = append([]string(nil), s.Client.MeshTLS.Identities...)
		}
		if s.Client.MeshTLS.ServiceAccounts != nil {
			m.ServiceAccounts = append([]ServiceAccountRef(nil), s.Client.MeshTLS.ServiceAccounts...)
		}
		out.Client.MeshTLS = &m
	}
	return out
}

// DeepCopyObject implements runtime.Object.
func (l *ServerAuthorizationList) DeepCopyObject() runtime.Object {
	return l.DeepCopy()
}

// DeepCopy creates a deep copy of ServerAuthorizationList.
func (l *ServerAuthorizationList) DeepCopy() *ServerAuthorizationList {
	if l == nil {
		return nil
	}
	out := new(ServerAuthorizationList)
	out.TypeMeta = l.TypeMeta
	l.ListMeta.DeepCopyInto(&out.ListMeta)
	if l.Items != nil {
		out.Items = make([]ServerAuthorization, len(l.Items))
		for i := range l.Items {
			l.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
	return out
}
