package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// ServerKubeKind is the singular kind name used in log fields and the
// field.ErrorList group/kind tuple.
const ServerKubeKind = "server"

func init() {
	SchemeBuilder.Register(&Server{}, &ServerList{})
}

// +kubebuilder:object:root=true
// +kubebuilder:printcolumn:name="Port",type="string",JSONPath=".spec.port"

// Server selects a set of pods and one named or numbered port on them,
// declaring the protocol spoken on that port (§3.1 / §4.3).
type Server struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`
	Spec              ServerSpec `json:"spec,omitempty"`
}

// +kubebuilder:object:root=true

// ServerList contains a list of Server.
type ServerList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Server `json:"items"`
}

// ServerSpec is the desired state of a Server.
type ServerSpec struct {
	// PodSelector restricts this Server to pods carrying matching labels.
	// An empty (zero-value) selector matches every pod in the namespace,
	// per the standard metav1.LabelSelector convention.
	PodSelector metav1.LabelSelector `json:"podSelector"`
	// Port is the port this Server applies to, by number or by the name
	// declared on a container (§4.5 "by number or by the port's declared
	// name on any container").
	Port intstr.IntOrString `json:"port"`
	// Proxy carries protocol configuration. Absent, or Protocol set to
	// "Unknown", defaults to Detect{5s} (§4.3).
	Proxy *ProxyProtocol `json:"proxy,omitempty"`
}

// ProxyProtocol names the protocol a Server's port speaks.
type ProxyProtocol struct {
	// Protocol is one of "", "Unknown", "HTTP/1", "HTTP/2", "gRPC",
	// "Opaque", "TLS".
	Protocol string `json:"protocol,omitempty"`
}

// Validate checks the structural requirements §4.3/§4.5 place on a Server
// spec, returning an aggregate apierrors.StatusError-compatible list.
func (s *Server) Validate() field.ErrorList {
	var allErrs field.ErrorList
	path := field.NewPath("spec")

	if s.Spec.Port.Type == intstr.String && s.Spec.Port.StrVal == "" {
		allErrs = append(allErrs, field.Required(path.Child("port"), "port name must not be empty"))
	}
	if s.Spec.Port.Type == intstr.Int && (s.Spec.Port.IntVal < 1 || s.Spec.Port.IntVal > 65535) {
		allErrs = append(allErrs, field.Invalid(path.Child("port"), s.Spec.Port.IntVal, "port must be between 1 and 65535"))
	}
	return allErrs
}

// DeepCopyObject implements runtime.Object.
func (s *Server) DeepCopyObject() runtime.Object {
	return s.DeepCopy()
}

// DeepCopy creates a deep copy of Server.
func (s *Server) DeepCopy() *Server {
	if s == nil {
		return nil
	}
	out := new(Server)
	out.TypeMeta = s.TypeMeta
	s.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	out.Spec = *s.Spec.DeepCopy()
	return out
}

// DeepCopy creates a deep copy of ServerSpec.
func (s *ServerSpec) DeepCopy() *ServerSpec {
	out := new(ServerSpec)
	s.PodSelector.DeepCopyInto(&out.PodSelector)
	out.Port = s.Port
	if s.Proxy != nil {
		p := *s.Proxy
		out.Proxy = &p
	}
	return out
}

// DeepCopyObject implements runtime.Object.
func (l *ServerList) DeepCopyObject() runtime.Object {
	return l.DeepCopy()
}

// DeepCopy creates a deep copy of ServerList.
func (l *ServerList) DeepCopy() *ServerList {
	if l == nil {
		return nil
	}
	out := new(ServerList)
	out.TypeMeta = l.TypeMeta
	l.ListMeta.DeepCopyInto(&out.ListMeta)
	if l.Items != nil {
		out.Items = make([]Server, len(l.Items))
		for i := range l.Items {
			l.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
	return out
}

// DeepCopyInto copies s into out.
func (s *Server) DeepCopyInto(out *Server) {
	*out = *s
	out.TypeMeta = s.TypeMeta
	s.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	out.Spec = *s.Spec.DeepCopy()
}
