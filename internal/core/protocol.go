// Package core holds the data model shared by the indexer, the lookup
// table, and the discovery server: protocols, client networks, client
// authorizations, and the InboundServer snapshot published to proxies.
package core

import "time"

// ProtocolKind discriminates the tagged Protocol variants.
type ProtocolKind int

const (
	ProtocolDetect ProtocolKind = iota
	ProtocolHTTP1
	ProtocolHTTP2
	ProtocolGRPC
	ProtocolOpaque
	ProtocolTLS
)

func (k ProtocolKind) String() string {
	switch k {
	case ProtocolDetect:
		return "Detect"
	case ProtocolHTTP1:
		return "HTTP1"
	case ProtocolHTTP2:
		return "HTTP2"
	case ProtocolGRPC:
		return "gRPC"
	case ProtocolOpaque:
		return "Opaque"
	case ProtocolTLS:
		return "TLS"
	default:
		return "Unknown"
	}
}

// Protocol is the tagged Detect|Http1|Http2|Grpc|Opaque|Tls variant. Only
// Kind == ProtocolDetect uses DetectTimeout; it is the default protocol
// assigned to a Server whose CRD spec omits Proxy.Protocol or sets it to
// "Unknown".
type Protocol struct {
	Kind          ProtocolKind
	DetectTimeout time.Duration
}

// DefaultDetectTimeout is the timeout used when a Server is created
// without an explicit protocol.
const DefaultDetectTimeout = 5 * time.Second

// Detect builds a Protocol{Kind: ProtocolDetect} with the given timeout.
func Detect(timeout time.Duration) Protocol {
	return Protocol{Kind: ProtocolDetect, DetectTimeout: timeout}
}

// Equal reports structural equality between two protocols.
func (p Protocol) Equal(other Protocol) bool {
	if p.Kind != other.Kind {
		return false
	}
	if p.Kind == ProtocolDetect {
		return p.DetectTimeout == other.DetectTimeout
	}
	return true
}

// ParseProtocol maps a Server CRD's proxy protocol string onto a Protocol.
// An empty string or "Unknown" produces Detect{DefaultDetectTimeout}, the
// §4.3 apply default.
func ParseProtocol(name string) Protocol {
	switch name {
	case "", "Unknown":
		return Detect(DefaultDetectTimeout)
	case "HTTP/1":
		return Protocol{Kind: ProtocolHTTP1}
	case "HTTP/2":
		return Protocol{Kind: ProtocolHTTP2}
	case "gRPC":
		return Protocol{Kind: ProtocolGRPC}
	case "Opaque":
		return Protocol{Kind: ProtocolOpaque}
	case "TLS":
		return Protocol{Kind: ProtocolTLS}
	default:
		return Detect(DefaultDetectTimeout)
	}
}
