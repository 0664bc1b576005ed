package core

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientNetworkContains(t *testing.T) {
	t.Parallel()

	net0, err := ParseCIDR("0.0.0.0/0")
	require.NoError(t, err)

	a := net.ParseIP("203.0.113.9")
	except, err := ParseCIDR("203.0.113.9/32")
	require.NoError(t, err)

	n := ClientNetwork{Net: net0, Except: []*net.IPNet{except}}
	assert.False(t, n.Contains(a), "excluded address must not be contained")

	other := net.ParseIP("198.51.100.1")
	assert.True(t, n.Contains(other), "non-excluded address under 0.0.0.0/0 is contained")
}

func TestSuffixMatches(t *testing.T) {
	t.Parallel()

	wildcard := ParseClientIdentityMatch("*")
	assert.True(t, wildcard.Matches("anything.default.serviceaccount.identity.cluster.local"))
	assert.True(t, wildcard.Matches("x"))

	suffix := ParseClientIdentityMatch("*.a.b.c")
	assert.True(t, suffix.Matches("foo.a.b.c"))
	assert.False(t, suffix.Matches("foo.x.b.c"))
	assert.False(t, suffix.Matches("a.b.c")) // must be a strict trailing segment match with a leading dot
}

func TestParseClientIdentityMatchLiteral(t *testing.T) {
	t.Parallel()

	m := ParseClientIdentityMatch("web.default.serviceaccount.identity.cluster.local")
	assert.Equal(t, IdentityName, m.Kind)
	assert.True(t, m.Matches("web.default.serviceaccount.identity.cluster.local"))
	assert.False(t, m.Matches("other"))
}

func TestInboundServerEqualIgnoresMapOrder(t *testing.T) {
	t.Parallel()

	mkAuthz := func() map[string]ClientAuthorization {
		return map[string]ClientAuthorization{
			"a": {Authentication: ClientAuthentication{Kind: Unauthenticated}},
			"b": {Authentication: ClientAuthentication{Kind: TLSUnauthenticated}},
		}
	}

	s1 := InboundServer{Protocol: Detect(DefaultDetectTimeout), Authorizations: mkAuthz()}
	s2 := InboundServer{Protocol: Detect(DefaultDetectTimeout), Authorizations: mkAuthz()}
	assert.True(t, s1.Equal(s2))

	s2.Authorizations["b"] = ClientAuthorization{Authentication: ClientAuthentication{Kind: TLSAuthenticated}}
	assert.False(t, s1.Equal(s2))
}

func TestParseProtocolDefaultsToDetect(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "Unknown"} {
		p := ParseProtocol(name)
		assert.Equal(t, ProtocolDetect, p.Kind)
		assert.Equal(t, DefaultDetectTimeout, p.DetectTimeout)
	}

	assert.Equal(t, ProtocolHTTP1, ParseProtocol("HTTP/1").Kind)
}

func TestKubeletAuthorization(t *testing.T) {
	t.Parallel()

	k := KubeletIPs{IPs: []net.IP{net.ParseIP("10.0.0.5"), net.ParseIP("fd00::1")}}
	az := k.Authorization()
	require.Len(t, az.Networks, 2)
	assert.True(t, az.MatchesNetwork(net.ParseIP("10.0.0.5")))
	assert.False(t, az.MatchesNetwork(net.ParseIP("10.0.0.6")))
	assert.Equal(t, Unauthenticated, az.Authentication.Kind)
}

func TestParseDefaultAllowName(t *testing.T) {
	t.Parallel()

	n, ok := ParseDefaultAllowName("cluster-authenticated")
	assert.True(t, ok)
	assert.Equal(t, ClusterAuthenticated, n)

	_, ok = ParseDefaultAllowName("bogus")
	assert.False(t, ok)
}
