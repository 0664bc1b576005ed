// Package discovery implements the gRPC Discovery Server (§4.7): the only
// component external proxies talk to, translating Lookup Table watches
// into inbound.InboundServerDiscoveryServer's get_port/watch_port RPCs.
package discovery

import (
	"context"
	"strings"

	"github.com/hashicorp/go-hclog"
	inbound "github.com/linkerd/linkerd2-proxy-api/go/inbound"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hashicorp/inbound-policy-controller/internal/lookup"
)

// Server implements inbound.InboundServerDiscoveryServer against a Lookup
// Table (§4.7).
type Server struct {
	inbound.UnimplementedInboundServerDiscoveryServer

	log   hclog.Logger
	table *lookup.Table
	drain <-chan struct{}
}

// NewServer builds a discovery Server. drain is closed when the process
// begins draining (§5); in-flight WatchPort streams end gracefully rather
// than erroring.
func NewServer(log hclog.Logger, table *lookup.Table, drain <-chan struct{}) *Server {
	return &Server{log: log.Named("discovery"), table: table, drain: drain}
}

// Register attaches the server to a grpc.Server.
func (s *Server) Register(gs *grpc.Server) {
	inbound.RegisterInboundServerDiscoveryServer(gs, s)
}

// parseWorkload splits the "{namespace}:{pod}" workload string (§4.7).
func parseWorkload(workload string) (namespace, pod string, err error) {
	parts := strings.SplitN(workload, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", status.Errorf(codes.InvalidArgument, "invalid workload %q, expected \"{namespace}:{pod}\"", workload)
	}
	return parts[0], parts[1], nil
}

func parsePort(port uint32) (int32, error) {
	if port == 0 || port > 65535 {
		return 0, status.Errorf(codes.InvalidArgument, "invalid port %d", port)
	}
	return int32(port), nil
}

func lookupEntry(table *lookup.Table, workload string, port uint32) (*lookup.Entry, error) {
	ns, pod, err := parseWorkload(workload)
	if err != nil {
		return nil, err
	}
	p, err := parsePort(port)
	if err != nil {
		return nil, err
	}
	entry, ok := table.Get(ns, pod, p)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no server found for %s:%d", workload, p)
	}
	return entry, nil
}

// GetPort resolves a single snapshot for the named workload/port (§4.7.1).
func (s *Server) GetPort(ctx context.Context, req *inbound.PortSpec) (*inbound.Server, error) {
	entry, err := lookupEntry(s.table, req.GetWorkload(), req.GetPort())
	if err != nil {
		return nil, err
	}
	inner := entry.Subscribe().Get()
	return toWireServer(inner.Get(), entry.Kubelet), nil
}

// WatchPort streams every subsequent snapshot change for the named
// workload/port, deduplicating consecutive identical snapshots and
// re-subscribing across Server hand-offs without the client ever seeing a
// gap (§4.7.2, the "two-level change channel" select loop).
func (s *Server) WatchPort(req *inbound.PortSpec, stream inbound.InboundServerDiscovery_WatchPortServer) error {
	entry, err := lookupEntry(s.table, req.GetWorkload(), req.GetPort())
	if err != nil {
		return err
	}

	outer := entry.Subscribe()
	// The inner receiver held by the outer watch is shared by every stream
	// on this pod port; each stream advances its own copy of it.
	own := func(rx *lookup.InnerReceiver) *lookup.InnerReceiver {
		cp := *rx
		return &cp
	}
	inner := own(outer.Get())

	var last *inbound.Server
	send := func() error {
		wire := toWireServer(inner.Get(), entry.Kubelet)
		if last != nil && last.String() == wire.String() {
			return nil
		}
		last = wire
		return stream.Send(wire)
	}
	if err := send(); err != nil {
		return err
	}

	ctx := stream.Context()
	for {
		// A closed inner receiver contributes a nil case (never ready)
		// rather than a permanently-closed channel, which would otherwise
		// busy-spin the select until the outer channel steers us away.
		var innerChanged <-chan struct{}
		if !inner.Closed() {
			innerChanged = inner.Changed()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-s.drain:
			return nil
		case <-outer.Changed():
			next, ok := outer.Recv()
			if !ok {
				return nil
			}
			inner = own(next)
			if err := send(); err != nil {
				return err
			}
		case <-innerChanged:
			if _, ok := inner.Recv(); !ok {
				// The inner channel closed out from under us; the owning
				// pod port is being relinked. Wait for the outer channel's
				// next tick to steer us to the replacement.
				continue
			}
			if err := send(); err != nil {
				return err
			}
		}
	}
}
