package core

import "net"

// ClientNetwork is a CIDR with a set of excluded sub-CIDRs. An IP is a
// member iff it falls inside Net and inside none of Except.
type ClientNetwork struct {
	Net    *net.IPNet
	Except []*net.IPNet
}

// Contains reports whether ip is inside Net and outside every Except entry.
func (n ClientNetwork) Contains(ip net.IP) bool {
	if n.Net == nil || !n.Net.Contains(ip) {
		return false
	}
	for _, e := range n.Except {
		if e != nil && e.Contains(ip) {
			return false
		}
	}
	return true
}

// ParseCIDR parses s into a *net.IPNet, accepting bare IPs as host routes.
func ParseCIDR(s string) (*net.IPNet, error) {
	if _, ipnet, err := net.ParseCIDR(s); err == nil {
		return ipnet, nil
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, &ValidationError{Message: "unparseable CIDR: " + s}
	}
	bits := 32
	if ip.To4() == nil {
		bits = 128
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}

// MustParseCIDR is ParseCIDR but panics on error; used only for the
// process-wide constant default-allow networks (§4.2), never on
// user-supplied input.
func MustParseCIDR(s string) *net.IPNet {
	n, err := ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}

// WildcardNetworks is the "entire cluster" placeholder of §4.4/§9: used
// when an authorization or default omits explicit networks. It is kept as
// documented rather than silently replaced by the configured cluster
// networks, which are threaded through separately (see §4.2's
// Cluster{Authenticated,Unauthenticated} defaults).
func WildcardNetworks() []ClientNetwork {
	return []ClientNetwork{
		{Net: MustParseCIDR("0.0.0.0/0")},
		{Net: MustParseCIDR("::/0")},
	}
}
