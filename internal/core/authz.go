package core

import (
	"net"
	"sort"
)

// AuthenticationKind discriminates ClientAuthentication variants.
type AuthenticationKind int

const (
	Unauthenticated AuthenticationKind = iota
	TLSUnauthenticated
	TLSAuthenticated
)

// ClientAuthentication is Unauthenticated | TlsUnauthenticated |
// TlsAuthenticated([ClientIdentityMatch]).
type ClientAuthentication struct {
	Kind       AuthenticationKind
	Identities []ClientIdentityMatch
}

func (a ClientAuthentication) Equal(o ClientAuthentication) bool {
	if a.Kind != o.Kind {
		return false
	}
	if len(a.Identities) != len(o.Identities) {
		return false
	}
	for i := range a.Identities {
		if !a.Identities[i].Equal(o.Identities[i]) {
			return false
		}
	}
	return true
}

// ClientAuthorization is a named predicate over client IP and identity.
type ClientAuthorization struct {
	Networks       []ClientNetwork
	Authentication ClientAuthentication
	Labels         map[string]string
}

// MatchesNetwork reports whether ip is accepted by any of a's networks.
func (a ClientAuthorization) MatchesNetwork(ip net.IP) bool {
	for _, n := range a.Networks {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func networksEqual(a, b []ClientNetwork) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		an, bn := a[i].Net, b[i].Net
		if (an == nil) != (bn == nil) {
			return false
		}
		if an != nil && an.String() != bn.String() {
			return false
		}
		if len(a[i].Except) != len(b[i].Except) {
			return false
		}
		for j := range a[i].Except {
			if a[i].Except[j].String() != b[i].Except[j].String() {
				return false
			}
		}
	}
	return true
}

func labelsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// Equal reports structural equality between two authorizations.
func (a ClientAuthorization) Equal(o ClientAuthorization) bool {
	return networksEqual(a.Networks, o.Networks) &&
		a.Authentication.Equal(o.Authentication) &&
		labelsEqual(a.Labels, o.Labels)
}

// InboundServer is the externally published, per-(pod,port) unit: a
// protocol plus a named set of client authorizations. Equality is
// structural and name-keyed; ordering of the map is irrelevant (I4).
type InboundServer struct {
	Protocol       Protocol
	Authorizations map[string]ClientAuthorization
	Labels         map[string]string
}

// Equal reports whether s and o would serialize to the same wire message,
// ignoring map iteration order. Used by tests comparing snapshots; the
// discovery server's deduplication compares the serialized wire messages
// instead.
func (s InboundServer) Equal(o InboundServer) bool {
	if !s.Protocol.Equal(o.Protocol) {
		return false
	}
	if !labelsEqual(s.Labels, o.Labels) {
		return false
	}
	if len(s.Authorizations) != len(o.Authorizations) {
		return false
	}
	for name, az := range s.Authorizations {
		oaz, ok := o.Authorizations[name]
		if !ok || !az.Equal(oaz) {
			return false
		}
	}
	return true
}

// AuthorizationNames returns the sorted names of s.Authorizations, useful
// for deterministic logging and wire serialization ordering.
func (s InboundServer) AuthorizationNames() []string {
	names := make([]string, 0, len(s.Authorizations))
	for n := range s.Authorizations {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
