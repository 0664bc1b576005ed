package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	inbound "github.com/linkerd/linkerd2-proxy-api/go/inbound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hashicorp/inbound-policy-controller/internal/core"
	"github.com/hashicorp/inbound-policy-controller/internal/lookup"
)

func testLog() hclog.Logger {
	return hclog.NewNullLogger()
}

func httpServer() core.InboundServer {
	return core.InboundServer{
		Protocol: core.Protocol{Kind: core.ProtocolHTTP1},
		Authorizations: map[string]core.ClientAuthorization{
			"all-unauthenticated": {
				Networks:       core.WildcardNetworks(),
				Authentication: core.ClientAuthentication{Kind: core.Unauthenticated},
			},
		},
	}
}

func newTestTable(t *testing.T, snap core.InboundServer) (*lookup.Table, *lookup.InnerWatch) {
	t.Helper()
	table := lookup.NewTable()
	inner := lookup.NewWatch(snap)
	outer := lookup.NewWatch(inner.Subscribe())
	entry := &lookup.Entry{Kubelet: core.KubeletIPs{IPs: []net.IP{net.ParseIP("10.0.0.5")}}, Outer: outer}
	require.NoError(t, table.Set("default", "web-0", map[int32]*lookup.Entry{80: entry}))
	return table, inner
}

func TestGetPortReturnsCurrentSnapshotWithKubeletAuthz(t *testing.T) {
	table, _ := newTestTable(t, httpServer())
	srv := NewServer(testLog(), table, nil)

	wire, err := srv.GetPort(context.Background(), &inbound.PortSpec{Workload: "default:web-0", Port: 80})
	require.NoError(t, err)
	assert.Len(t, wire.Authorizations, 2)

	var sawKubelet bool
	for _, az := range wire.Authorizations {
		if len(az.Networks) == 1 && az.Networks[0].Net.GetIp() == "10.0.0.5" {
			sawKubelet = true
		}
	}
	assert.True(t, sawKubelet, "expected a kubelet authorization in the wire snapshot")
}

func TestGetPortUnknownWorkloadReturnsNotFound(t *testing.T) {
	table, _ := newTestTable(t, httpServer())
	srv := NewServer(testLog(), table, nil)

	_, err := srv.GetPort(context.Background(), &inbound.PortSpec{Workload: "default:missing", Port: 80})
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGetPortMalformedWorkloadReturnsInvalidArgument(t *testing.T) {
	table, _ := newTestTable(t, httpServer())
	srv := NewServer(testLog(), table, nil)

	_, err := srv.GetPort(context.Background(), &inbound.PortSpec{Workload: "no-colon", Port: 80})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

type fakeWatchStream struct {
	ctx context.Context
	out chan *inbound.Server
	inbound.InboundServerDiscovery_WatchPortServer
}

func (f *fakeWatchStream) Context() context.Context { return f.ctx }

func (f *fakeWatchStream) Send(s *inbound.Server) error {
	f.out <- s
	return nil
}

func TestWatchPortDeduplicatesAndForwardsChanges(t *testing.T) {
	table, inner := newTestTable(t, httpServer())
	srv := NewServer(testLog(), table, nil)

	ctx, cancel := context.WithCancel(context.Background())
	stream := &fakeWatchStream{ctx: ctx, out: make(chan *inbound.Server, 8)}

	done := make(chan error, 1)
	go func() {
		done <- srv.WatchPort(&inbound.PortSpec{Workload: "default:web-0", Port: 80}, stream)
	}()

	first := <-stream.out
	require.NotNil(t, first)
	_, isHTTP1 := first.Protocol.Kind.(*inbound.ProxyProtocol_Http1_)
	assert.True(t, isHTTP1)

	// Sending an identical snapshot must not produce a second Send.
	inner.Send(httpServer())
	select {
	case <-stream.out:
		t.Fatal("expected no send for an identical snapshot")
	case <-time.After(50 * time.Millisecond):
	}

	// A genuinely new snapshot (different protocol) must be forwarded.
	changed := httpServer()
	changed.Protocol = core.Protocol{Kind: core.ProtocolHTTP2}
	inner.Send(changed)
	second := <-stream.out
	require.NotNil(t, second)
	_, isHTTP2 := second.Protocol.Kind.(*inbound.ProxyProtocol_Http2_)
	assert.True(t, isHTTP2)

	cancel()
	require.NoError(t, <-done)
}
