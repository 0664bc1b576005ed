// Package defaultallow implements the closed set of default-allow
// policies (§4.2): a fixed InboundServer per name, each materialized once
// as a broadcasting channel so every pod using a given default shares one
// source of truth.
package defaultallow

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/inbound-policy-controller/internal/core"
	"github.com/hashicorp/inbound-policy-controller/internal/lookup"
)

const (
	clusterUnauthenticatedName = "_cluster_unauthenticated"
	clusterAuthenticatedName   = "_cluster_authenticated"
	allAuthenticatedName       = "_all_authenticated"
	allUnauthenticatedName     = "_all_unauthenticated"
)

// Registry holds the five default-allow channels, built once at startup
// from the process's configured cluster networks. Every default publishes
// Detect with core.DefaultDetectTimeout; the timeout is not configurable.
// It is immutable after construction and safe for concurrent reads (§9
// "Global state").
type Registry struct {
	watches map[core.DefaultAllowName]*lookup.InnerWatch
	global  core.DefaultAllowName
	log     hclog.Logger
}

// New builds the registry. clusterNetworks seeds the Cluster* defaults;
// global is the process-wide fallback used when neither a pod nor its
// namespace carries a recognized annotation.
func New(log hclog.Logger, clusterNetworks []core.ClientNetwork, global core.DefaultAllowName) *Registry {
	detect := core.Detect(core.DefaultDetectTimeout)
	wildcard := core.WildcardNetworks()

	mk := func(authzName string, auth core.ClientAuthentication, networks []core.ClientNetwork) *lookup.InnerWatch {
		authorizations := map[string]core.ClientAuthorization{}
		if authzName != "" {
			authorizations[authzName] = core.ClientAuthorization{Networks: networks, Authentication: auth}
		}
		return lookup.NewWatch(core.InboundServer{Protocol: detect, Authorizations: authorizations})
	}

	r := &Registry{log: log, global: global, watches: map[core.DefaultAllowName]*lookup.InnerWatch{
		core.Deny: mk("", core.ClientAuthentication{}, nil),
		core.AllAuthenticated: mk(allAuthenticatedName,
			core.ClientAuthentication{Kind: core.TLSAuthenticated, Identities: []core.ClientIdentityMatch{{Kind: core.IdentitySuffix}}},
			wildcard),
		core.AllUnauthenticated: mk(allUnauthenticatedName,
			core.ClientAuthentication{Kind: core.Unauthenticated}, wildcard),
		core.ClusterAuthenticated: mk(clusterAuthenticatedName,
			core.ClientAuthentication{Kind: core.TLSAuthenticated, Identities: []core.ClientIdentityMatch{{Kind: core.IdentitySuffix}}},
			clusterNetworks),
		core.ClusterUnauthenticated: mk(clusterUnauthenticatedName,
			core.ClientAuthentication{Kind: core.Unauthenticated}, clusterNetworks),
	}}
	return r
}

// Watch returns the broadcasting channel for the named default.
func (r *Registry) Watch(name core.DefaultAllowName) *lookup.InnerWatch {
	return r.watches[name]
}

// Global returns the process-wide fallback default.
func (r *Registry) Global() core.DefaultAllowName {
	return r.global
}

// Resolve picks the effective default for a pod per §4.2's precedence:
// the pod's own annotation, else the namespace's annotation, else the
// global default. Invalid (unrecognized) annotation values are ignored
// with a warning log, falling through to the next source.
func (r *Registry) Resolve(podAnnotation, nsAnnotation string) core.DefaultAllowName {
	if podAnnotation != "" {
		if n, ok := core.ParseDefaultAllowName(podAnnotation); ok {
			return n
		}
		r.log.Warn("ignoring invalid pod default-allow annotation", "value", podAnnotation)
	}
	if nsAnnotation != "" {
		if n, ok := core.ParseDefaultAllowName(nsAnnotation); ok {
			return n
		}
		r.log.Warn("ignoring invalid namespace default-allow annotation", "value", nsAnnotation)
	}
	return r.global
}

// String renders a DefaultAllowName for logs (all five names are already
// human-readable, this just guards against an unrecognized zero value).
func String(n core.DefaultAllowName) string {
	switch n {
	case core.Deny, core.AllAuthenticated, core.AllUnauthenticated, core.ClusterAuthenticated, core.ClusterUnauthenticated:
		return string(n)
	default:
		return fmt.Sprintf("unknown(%s)", string(n))
	}
}
