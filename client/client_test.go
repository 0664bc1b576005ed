package client

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hashicorp/inbound-policy-controller/internal/core"
)

func mustNetwork(t *testing.T, cidr string) core.ClientNetwork {
	t.Helper()
	n, err := core.ParseCIDR(cidr)
	if err != nil {
		t.Fatalf("parse %q: %v", cidr, err)
	}
	return core.ClientNetwork{Net: n}
}

func TestCheckNonTLSSkipsTLSOnlyAuthorizations(t *testing.T) {
	server := core.InboundServer{
		Authorizations: map[string]core.ClientAuthorization{
			"a-tls-only": {
				Networks:       []core.ClientNetwork{mustNetwork(t, "10.0.0.0/8")},
				Authentication: core.ClientAuthentication{Kind: core.TLSAuthenticated},
			},
			"open": {
				Networks:       []core.ClientNetwork{mustNetwork(t, "10.0.0.0/8")},
				Authentication: core.ClientAuthentication{Kind: core.Unauthenticated},
				Labels:         map[string]string{"authorizationpolicy.linkerd.io/name": "open"},
			},
		},
	}

	d := CheckNonTLS(server, net.ParseIP("10.1.2.3"))
	assert.True(t, d.Allowed)
	assert.Equal(t, "open", d.Labels["authorizationpolicy.linkerd.io/name"])
}

func TestCheckNonTLSDeniesOutsideNetwork(t *testing.T) {
	server := core.InboundServer{
		Authorizations: map[string]core.ClientAuthorization{
			"open": {
				Networks:       []core.ClientNetwork{mustNetwork(t, "10.0.0.0/8")},
				Authentication: core.ClientAuthentication{Kind: core.Unauthenticated},
			},
		},
	}

	d := CheckNonTLS(server, net.ParseIP("192.168.1.1"))
	assert.False(t, d.Allowed)
}

func TestCheckTLSRequiresIdentityForTLSAuthenticated(t *testing.T) {
	server := core.InboundServer{
		Authorizations: map[string]core.ClientAuthorization{
			"mesh": {
				Networks:       core.WildcardNetworks(),
				Authentication: core.ClientAuthentication{Kind: core.TLSAuthenticated, Identities: []core.ClientIdentityMatch{core.ParseClientIdentityMatch("*.emojivoto.serviceaccount.identity.cluster.local")}},
			},
		},
	}

	assert.False(t, CheckTLS(server, net.ParseIP("10.1.1.1"), "").Allowed)
	assert.False(t, CheckTLS(server, net.ParseIP("10.1.1.1"), "web.default.serviceaccount.identity.cluster.local").Allowed)
	assert.True(t, CheckTLS(server, net.ParseIP("10.1.1.1"), "voting.emojivoto.serviceaccount.identity.cluster.local").Allowed)
}

func TestCheckTLSUnauthenticatedVariantNeedsNoIdentity(t *testing.T) {
	server := core.InboundServer{
		Authorizations: map[string]core.ClientAuthorization{
			"probe": {
				Networks:       core.WildcardNetworks(),
				Authentication: core.ClientAuthentication{Kind: core.TLSUnauthenticated},
			},
		},
	}

	assert.True(t, CheckTLS(server, net.ParseIP("127.0.0.1"), "").Allowed)
}

func TestCheckTLSFirstMatchWinsByAuthorizationName(t *testing.T) {
	server := core.InboundServer{
		Authorizations: map[string]core.ClientAuthorization{
			"z-catch-all": {
				Networks:       core.WildcardNetworks(),
				Authentication: core.ClientAuthentication{Kind: core.Unauthenticated},
				Labels:         map[string]string{"authorizationpolicy.linkerd.io/name": "z-catch-all"},
			},
			"a-specific": {
				Networks:       []core.ClientNetwork{mustNetwork(t, "10.0.0.0/8")},
				Authentication: core.ClientAuthentication{Kind: core.Unauthenticated},
				Labels:         map[string]string{"authorizationpolicy.linkerd.io/name": "a-specific"},
			},
		},
	}

	d := CheckTLS(server, net.ParseIP("10.1.1.1"), "")
	assert.Equal(t, "a-specific", d.Labels["authorizationpolicy.linkerd.io/name"])
}

func TestCheckNonTLSNoAuthorizationsDenies(t *testing.T) {
	server := core.InboundServer{}
	assert.False(t, CheckNonTLS(server, net.ParseIP("10.0.0.1")).Allowed)
}
