// Package client is the consumer-side library for evaluating an
// InboundServer snapshot against a connection's client IP and, for TLS
// connections, its verified identity (§4.9).
package client

import (
	"net"

	"github.com/hashicorp/inbound-policy-controller/internal/core"
)

// Decision is the outcome of an authorization check: whether any
// authorization matched, and if so, the labels of the matching
// authorization (for metrics and policy attribution).
type Decision struct {
	Allowed bool
	Labels  map[string]string
}

// deny is returned whenever no authorization matches.
var deny = Decision{}

// CheckNonTLS implements §4.9's check_non_tls: the first authorization,
// in the order the server published them, whose authentication is
// Unauthenticated and whose networks contain ip.
func CheckNonTLS(server core.InboundServer, ip net.IP) Decision {
	for _, name := range server.AuthorizationNames() {
		az := server.Authorizations[name]
		if az.Authentication.Kind != core.Unauthenticated {
			continue
		}
		if az.MatchesNetwork(ip) {
			return Decision{Allowed: true, Labels: az.Labels}
		}
	}
	return deny
}

// CheckTLS implements §4.9's check_tls: the first authorization whose
// network contains ip, further gated by authentication variant.
// Unauthenticated and TlsUnauthenticated always match once the network
// matches; TlsAuthenticated requires a non-empty id that is either listed
// by name or satisfies one of the authorization's identity suffixes.
func CheckTLS(server core.InboundServer, ip net.IP, id string) Decision {
	for _, name := range server.AuthorizationNames() {
		az := server.Authorizations[name]
		if !az.MatchesNetwork(ip) {
			continue
		}
		if matchesAuthentication(az.Authentication, id) {
			return Decision{Allowed: true, Labels: az.Labels}
		}
	}
	return deny
}

func matchesAuthentication(a core.ClientAuthentication, id string) bool {
	switch a.Kind {
	case core.Unauthenticated, core.TLSUnauthenticated:
		return true
	case core.TLSAuthenticated:
		if id == "" {
			return false
		}
		for _, m := range a.Identities {
			if m.Matches(id) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
