package v1alpha1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
)

func TestServerValidatePortRange(t *testing.T) {
	t.Parallel()

	ok := &Server{Spec: ServerSpec{Port: intstr.FromInt(8080)}}
	assert.Empty(t, ok.Validate())

	bad := &Server{Spec: ServerSpec{Port: intstr.FromInt(70000)}}
	assert.NotEmpty(t, bad.Validate())

	emptyName := &Server{Spec: ServerSpec{Port: intstr.FromString("")}}
	assert.NotEmpty(t, emptyName.Validate())
}

func TestServerDeepCopyIsIndependent(t *testing.T) {
	t.Parallel()

	s := &Server{Spec: ServerSpec{
		PodSelector: metav1.LabelSelector{MatchLabels: map[string]string{"app": "web"}},
		Port:        intstr.FromInt(9999),
	}}
	cp := s.DeepCopy()
	cp.Spec.PodSelector.MatchLabels["app"] = "mutated"

	assert.Equal(t, "web", s.Spec.PodSelector.MatchLabels["app"])
	assert.Equal(t, "mutated", cp.Spec.PodSelector.MatchLabels["app"])
}

func TestServerAuthorizationValidateAmbiguous(t *testing.T) {
	t.Parallel()

	sa := &ServerAuthorization{Spec: ServerAuthorizationSpec{
		Server: ServerSelector{Name: "srv-0", Selector: &metav1.LabelSelector{}},
		Client: ClientSpec{Unauthenticated: true},
	}}
	assert.NotEmpty(t, sa.Validate())
}

func TestServerAuthorizationValidateSelectsNoServers(t *testing.T) {
	t.Parallel()

	sa := &ServerAuthorization{Spec: ServerAuthorizationSpec{
		Client: ClientSpec{Unauthenticated: true},
	}}
	assert.NotEmpty(t, sa.Validate())
}

func TestServerAuthorizationValidateEmptyMeshTLS(t *testing.T) {
	t.Parallel()

	sa := &ServerAuthorization{Spec: ServerAuthorizationSpec{
		Server: ServerSelector{Name: "srv-0"},
		Client: ClientSpec{MeshTLS: &MeshTLSSpec{}},
	}}
	assert.NotEmpty(t, sa.Validate())

	sa.Spec.Client.MeshTLS.UnauthenticatedTLS = true
	assert.Empty(t, sa.Validate())
}
