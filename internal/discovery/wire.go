package discovery

import (
	"net"

	inbound "github.com/linkerd/linkerd2-proxy-api/go/inbound"

	"github.com/hashicorp/inbound-policy-controller/internal/core"
)

// toWireServer implements §4.7's "Wire mapping": translate an internal
// InboundServer snapshot into the generated inbound.Server message,
// injecting the kubelet authorization (§4.8) which is never itself
// stored in any index.
func toWireServer(snap core.InboundServer, kubelet core.KubeletIPs) *inbound.Server {
	authzs := make([]*inbound.Authz, 0, len(snap.Authorizations)+1)
	for _, name := range snap.AuthorizationNames() {
		authzs = append(authzs, toWireAuthz(name, snap.Authorizations[name]))
	}
	authzs = append(authzs, toWireAuthz(core.KubeletName, kubelet.Authorization()))

	return &inbound.Server{
		Labels:         snap.Labels,
		Protocol:       toWireProtocol(snap.Protocol),
		Authorizations: authzs,
	}
}

func toWireProtocol(p core.Protocol) *inbound.ProxyProtocol {
	switch p.Kind {
	case core.ProtocolHTTP1:
		return &inbound.ProxyProtocol{Kind: &inbound.ProxyProtocol_Http1_{Http1: &inbound.ProxyProtocol_Http1{}}}
	case core.ProtocolHTTP2:
		return &inbound.ProxyProtocol{Kind: &inbound.ProxyProtocol_Http2_{Http2: &inbound.ProxyProtocol_Http2{}}}
	case core.ProtocolGRPC:
		return &inbound.ProxyProtocol{Kind: &inbound.ProxyProtocol_Grpc_{Grpc: &inbound.ProxyProtocol_Grpc{}}}
	case core.ProtocolOpaque:
		return &inbound.ProxyProtocol{Kind: &inbound.ProxyProtocol_Opaque_{Opaque: &inbound.ProxyProtocol_Opaque{}}}
	case core.ProtocolTLS:
		return &inbound.ProxyProtocol{Kind: &inbound.ProxyProtocol_Tls_{Tls: &inbound.ProxyProtocol_Tls{}}}
	default:
		return &inbound.ProxyProtocol{Kind: &inbound.ProxyProtocol_Detect_{
			Detect: &inbound.ProxyProtocol_Detect{TimeoutMs: uint64(p.DetectTimeout.Milliseconds())},
		}}
	}
}

func toWireAuthz(name string, az core.ClientAuthorization) *inbound.Authz {
	networks := make([]*inbound.Network, 0, len(az.Networks))
	for _, n := range az.Networks {
		networks = append(networks, toWireNetwork(n))
	}
	return &inbound.Authz{
		Networks:       networks,
		Authentication: toWireAuthn(az.Authentication),
		Labels:         az.Labels,
	}
}

func toWireNetwork(n core.ClientNetwork) *inbound.Network {
	except := make([]*inbound.Network, 0, len(n.Except))
	for _, e := range n.Except {
		except = append(except, &inbound.Network{Net: ipNetToWire(e)})
	}
	return &inbound.Network{Net: ipNetToWire(n.Net), Except: except}
}

func ipNetToWire(n *net.IPNet) *inbound.IPAddress {
	if n == nil {
		return nil
	}
	ones, _ := n.Mask.Size()
	return &inbound.IPAddress{Ip: n.IP.String(), PrefixLen: uint32(ones)}
}

func toWireAuthn(a core.ClientAuthentication) *inbound.Authn {
	switch a.Kind {
	case core.TLSUnauthenticated:
		return &inbound.Authn{Permit: &inbound.Authn_MeshTls_{
			MeshTls: &inbound.Authn_MeshTls{Clients: &inbound.Authn_MeshTls_Unauthenticated_{}},
		}}
	case core.TLSAuthenticated:
		return &inbound.Authn{Permit: &inbound.Authn_MeshTls_{
			MeshTls: &inbound.Authn_MeshTls{Clients: &inbound.Authn_MeshTls_Identities_{
				Identities: toWireIdentities(a.Identities),
			}},
		}}
	default:
		return &inbound.Authn{Permit: &inbound.Authn_Unauthenticated_{}}
	}
}

func toWireIdentities(matches []core.ClientIdentityMatch) *inbound.IdentityMatches {
	out := &inbound.IdentityMatches{}
	for _, m := range matches {
		switch m.Kind {
		case core.IdentityName:
			out.Names = append(out.Names, &inbound.Identity{Name: m.Name})
		case core.IdentitySuffix:
			out.Suffixes = append(out.Suffixes, &inbound.IdentitySuffix{Parts: m.Parts})
		}
	}
	return out
}
