// Package server implements the "server" subcommand: the long-running
// control-plane process that indexes Kubernetes and serves the Discovery
// Server gRPC API (§2, §5, §6).
package server

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"google.golang.org/grpc"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/client-go/informers"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/cache"

	policyv1alpha1 "github.com/hashicorp/inbound-policy-controller/api/v1alpha1"
	"github.com/hashicorp/inbound-policy-controller/internal/core"
	"github.com/hashicorp/inbound-policy-controller/internal/defaultallow"
	"github.com/hashicorp/inbound-policy-controller/internal/discovery"
	"github.com/hashicorp/inbound-policy-controller/internal/index"
	"github.com/hashicorp/inbound-policy-controller/internal/k8sevents"
	"github.com/hashicorp/inbound-policy-controller/internal/lookup"
	"github.com/hashicorp/inbound-policy-controller/subcommand/common"
	"github.com/hashicorp/inbound-policy-controller/subcommand/flags"
)

const defaultResync = 10 * time.Minute

// Command runs the indexer and the discovery gRPC server until the process
// is asked to drain (§5 "Process lifecycle").
type Command struct {
	UI cli.Ui

	flagSet *flag.FlagSet

	flagGRPCPort       int
	flagIdentityDomain string
	flagClusterNetwork flags.AppendSliceValue
	flagDefaultAllow   string
	flagLogLevel       string
	flagLogJSON        bool
	flagDrainTimeout   time.Duration

	once sync.Once
	help string

	// Only set in tests.
	clientset kubernetes.Interface
	restCfg   *rest.Config
}

func (c *Command) init() {
	c.flagSet = flag.NewFlagSet("", flag.ContinueOnError)
	c.flagSet.IntVar(&c.flagGRPCPort, "port", 8910, "Port the Discovery Server gRPC API listens on.")
	c.flagSet.StringVar(&c.flagIdentityDomain, "identity-domain", "cluster.local", "Trust domain service-account identities are suffixed with.")
	c.flagSet.Var(&c.flagClusterNetwork, "cluster-networks", "CIDR considered part of the cluster for the Cluster{Authenticated,Unauthenticated} defaults. Repeatable.")
	c.flagSet.StringVar(&c.flagDefaultAllow, "default-allow", string(core.AllAuthenticated), "Default-allow policy applied when no Server selects a pod port.")
	c.flagSet.StringVar(&c.flagLogLevel, "log-level", "info", "Log verbosity level: \"trace\", \"debug\", \"info\", \"warn\", or \"error\".")
	c.flagSet.BoolVar(&c.flagLogJSON, "log-json", false, "Enable or disable JSON output format for logging.")
	c.flagSet.DurationVar(&c.flagDrainTimeout, "drain-timeout", 5*time.Second, "Time allowed for in-flight discovery streams to end after a drain signal.")
	c.help = flags.Usage(help, c.flagSet)
}

// Run implements cli.Command.
func (c *Command) Run(args []string) int {
	c.once.Do(c.init)
	if err := c.flagSet.Parse(args); err != nil {
		return 1
	}

	log, err := common.Logger(c.flagLogLevel, c.flagLogJSON)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	clusterNetworks, err := parseClusterNetworks(c.flagClusterNetwork)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	defaultAllow, ok := core.ParseDefaultAllowName(c.flagDefaultAllow)
	if !ok {
		c.UI.Error(fmt.Sprintf("invalid -default-allow %q", c.flagDefaultAllow))
		return 1
	}

	if c.clientset == nil || c.restCfg == nil {
		cfg, err := rest.InClusterConfig()
		if err != nil {
			c.UI.Error(fmt.Sprintf("error loading in-cluster Kubernetes config: %s", err))
			return 1
		}
		c.restCfg = cfg
		c.clientset, err = kubernetes.NewForConfig(cfg)
		if err != nil {
			c.UI.Error(fmt.Sprintf("error creating Kubernetes client: %s", err))
			return 1
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := c.run(ctx, log, clusterNetworks, defaultAllow); err != nil {
		log.Error("server exited with an error", "error", err)
		return 1
	}
	return 0
}

func parseClusterNetworks(raw []string) ([]core.ClientNetwork, error) {
	if len(raw) == 0 {
		raw = []string{"10.42.0.0/16"}
	}
	out := make([]core.ClientNetwork, 0, len(raw))
	for _, cidr := range raw {
		n, err := core.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid -cluster-networks %q: %w", cidr, err)
		}
		out = append(out, core.ClientNetwork{Net: n})
	}
	return out, nil
}

func (c *Command) run(ctx context.Context, log hclog.Logger, clusterNetworks []core.ClientNetwork, defaultAllow core.DefaultAllowName) error {
	defaults := defaultallow.New(log, clusterNetworks, defaultAllow)
	table := lookup.NewTable()
	ix := index.New(log, c.flagIdentityDomain, clusterNetworks, defaults, table)

	factory := informers.NewSharedInformerFactory(c.clientset, defaultResync)
	nodeInformer := factory.Core().V1().Nodes().Informer()
	nsInformer := factory.Core().V1().Namespaces().Informer()
	podInformer := factory.Core().V1().Pods().Informer()

	restClient, err := policyv1alpha1.NewRESTClient(c.restCfg)
	if err != nil {
		return fmt.Errorf("building policy.linkerd.io REST client: %w", err)
	}
	serverInformer := cache.NewSharedIndexInformer(
		cache.NewListWatchFromClient(restClient, "servers", metav1.NamespaceAll, fields.Everything()),
		&policyv1alpha1.Server{}, defaultResync, cache.Indexers{cache.NamespaceIndex: cache.MetaNamespaceIndexFunc})
	authzInformer := cache.NewSharedIndexInformer(
		cache.NewListWatchFromClient(restClient, "serverauthorizations", metav1.NamespaceAll, fields.Everything()),
		&policyv1alpha1.ServerAuthorization{}, defaultResync, cache.Indexers{cache.NamespaceIndex: cache.MetaNamespaceIndexFunc})

	sources := index.Sources{
		Nodes:      k8sevents.NewSource(log, "Node", nodeInformer, convertNode),
		Namespaces: k8sevents.NewSource(log, "Namespace", nsInformer, convertNamespace),
		Pods:       k8sevents.NewSource(log, "Pod", podInformer, convertPod),
		Servers:    k8sevents.NewSource(log, "Server", serverInformer, convertServer),
		Authzs:     k8sevents.NewSource(log, "ServerAuthorization", authzInformer, convertAuthz),
	}

	stopCh := ctx.Done()
	go sources.Nodes.Run(stopCh)
	go sources.Namespaces.Run(stopCh)
	go sources.Pods.Run(stopCh)
	go sources.Servers.Run(stopCh)
	go sources.Authzs.Run(stopCh)
	go ix.Run(stopCh, sources)

	ready := ix.Ready()
	select {
	case <-ready.Changed():
		ready.Recv()
		log.Info("initial index sync complete")
	case <-ctx.Done():
		return nil
	}

	drain := make(chan struct{})
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", c.flagGRPCPort))
	if err != nil {
		return fmt.Errorf("listening on gRPC port %d: %w", c.flagGRPCPort, err)
	}
	gs := grpc.NewServer()
	discovery.NewServer(log, table, drain).Register(gs)

	errCh := make(chan error, 1)
	go func() {
		log.Info("discovery server listening", "port", c.flagGRPCPort)
		errCh <- gs.Serve(lis)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	log.Info("draining", "timeout", c.flagDrainTimeout)
	close(drain)
	stopped := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(c.flagDrainTimeout):
		gs.Stop()
	}
	return nil
}

func convertNode(obj interface{}) (*corev1.Node, bool) {
	n, ok := obj.(*corev1.Node)
	return n, ok
}

func convertNamespace(obj interface{}) (*corev1.Namespace, bool) {
	n, ok := obj.(*corev1.Namespace)
	return n, ok
}

func convertPod(obj interface{}) (*corev1.Pod, bool) {
	p, ok := obj.(*corev1.Pod)
	return p, ok
}

func convertServer(obj interface{}) (*policyv1alpha1.Server, bool) {
	s, ok := obj.(*policyv1alpha1.Server)
	return s, ok
}

func convertAuthz(obj interface{}) (*policyv1alpha1.ServerAuthorization, bool) {
	a, ok := obj.(*policyv1alpha1.ServerAuthorization)
	return a, ok
}

func (c *Command) Synopsis() string { return synopsis }

func (c *Command) Help() string {
	c.once.Do(c.init)
	return c.help
}

const synopsis = "Run the inbound-policy control plane server."
const help = `
Usage: policy-controller server [options]

  Indexes Nodes, Namespaces, Pods, Servers and ServerAuthorizations and
  serves the resulting per-pod-port inbound policy over a gRPC discovery
  API consumed by mesh proxies.
`
