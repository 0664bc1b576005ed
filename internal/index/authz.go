package index

import (
	"fmt"

	policyv1alpha1 "github.com/hashicorp/inbound-policy-controller/api/v1alpha1"
	"github.com/hashicorp/inbound-policy-controller/internal/core"
	"github.com/hashicorp/inbound-policy-controller/internal/k8sevents"
	"k8s.io/apimachinery/pkg/labels"
)

// authzRecord is the Authorization Index's per-name entry (§2.4): the
// parsed server selector plus the resulting ClientAuthorization.
type authzRecord struct {
	namespace     string
	name          string
	selector      policyv1alpha1.ServerSelector
	labelSelector labels.Selector
	auth          core.ClientAuthorization
}

// matchesServer reports whether this authorization selects sr, by-name
// (string equality) or by-selector (label-set match against the Server's
// own labels) (§4.3 step 2).
func (a *authzRecord) matchesServer(sr *serverRecord) bool {
	if a.selector.Name != "" {
		return a.selector.Name == sr.name
	}
	if a.labelSelector != nil {
		return a.labelSelector.Matches(labels.Set(sr.labels))
	}
	return false
}

func (ix *Index) handleAuthzEvent(ev k8sevents.Event[*policyv1alpha1.ServerAuthorization]) {
	switch ev.Kind {
	case k8sevents.Applied:
		ix.applyAuthz(ev.Object)
	case k8sevents.Deleted:
		ix.deleteAuthz(ev.Key.Namespace, ev.Key.Name)
	case k8sevents.Restarted:
		ix.resetAuthzs(ev.Objects)
	}
}

// parseClientAuthorization implements §4.4's grammar.
func (ix *Index) parseClientAuthorization(sa *policyv1alpha1.ServerAuthorization) (core.ClientAuthorization, error) {
	networks, err := parseNetworks(sa.Spec.Client.Networks)
	if err != nil {
		return core.ClientAuthorization{}, err
	}
	if len(networks) == 0 {
		// absent ⇒ entire cluster, kept as the documented §9 placeholder.
		networks = core.WildcardNetworks()
	}

	switch {
	case sa.Spec.Client.Unauthenticated:
		return core.ClientAuthorization{
			Networks:       networks,
			Authentication: core.ClientAuthentication{Kind: core.Unauthenticated},
			Labels:         sa.Labels,
		}, nil

	case sa.Spec.Client.MeshTLS != nil && sa.Spec.Client.MeshTLS.UnauthenticatedTLS:
		return core.ClientAuthorization{
			Networks:       networks,
			Authentication: core.ClientAuthentication{Kind: core.TLSUnauthenticated},
			Labels:         sa.Labels,
		}, nil

	case sa.Spec.Client.MeshTLS != nil:
		idents := make([]core.ClientIdentityMatch, 0, len(sa.Spec.Client.MeshTLS.Identities)+len(sa.Spec.Client.MeshTLS.ServiceAccounts))
		for _, id := range sa.Spec.Client.MeshTLS.Identities {
			idents = append(idents, core.ParseClientIdentityMatch(id))
		}
		for _, sva := range sa.Spec.Client.MeshTLS.ServiceAccounts {
			ns := sva.Namespace
			if ns == "" {
				ns = sa.Namespace
			}
			name := fmt.Sprintf("%s.%s.serviceaccount.identity.%s", sva.Name, ns, ix.identityDomain)
			idents = append(idents, core.ParseClientIdentityMatch(name))
		}
		if len(idents) == 0 {
			return core.ClientAuthorization{}, core.NewValidationError("ServerAuthorization", sa.Namespace, sa.Name, "meshTLS client set is empty")
		}
		return core.ClientAuthorization{
			Networks:       networks,
			Authentication: core.ClientAuthentication{Kind: core.TLSAuthenticated, Identities: idents},
			Labels:         sa.Labels,
		}, nil

	default:
		return core.ClientAuthorization{}, core.NewValidationError("ServerAuthorization", sa.Namespace, sa.Name, "must set one of unauthenticated or meshTLS")
	}
}

func parseNetworks(specs []policyv1alpha1.NetworkSpec) ([]core.ClientNetwork, error) {
	out := make([]core.ClientNetwork, 0, len(specs))
	for _, s := range specs {
		n, err := core.ParseCIDR(s.CIDR)
		if err != nil {
			return nil, err
		}
		cn := core.ClientNetwork{Net: n}
		for _, e := range s.Except {
			en, err := core.ParseCIDR(e)
			if err != nil {
				return nil, err
			}
			cn.Except = append(cn.Except, en)
		}
		out = append(out, cn)
	}
	return out, nil
}

func (ix *Index) applyAuthz(sa *policyv1alpha1.ServerAuthorization) {
	if errs := sa.Validate(); len(errs) > 0 {
		ix.log.Warn("rejecting ServerAuthorization", "namespace", sa.Namespace, "name", sa.Name, "error", errs.ToAggregate())
		return
	}

	auth, err := ix.parseClientAuthorization(sa)
	if err != nil {
		ix.log.Warn("rejecting ServerAuthorization", "namespace", sa.Namespace, "name", sa.Name, "error", err)
		return
	}

	var labelSelector labels.Selector
	if sa.Spec.Server.Selector != nil {
		sel, err := labelSelectorFromSpec(sa.Spec.Server.Selector)
		if err != nil {
			ix.log.Warn("rejecting ServerAuthorization", "namespace", sa.Namespace, "name", sa.Name, "error", err)
			return
		}
		labelSelector = sel
	}

	ns := ix.namespaceFor(sa.Namespace)
	ns.authzs[sa.Name] = &authzRecord{
		namespace:     sa.Namespace,
		name:          sa.Name,
		selector:      sa.Spec.Server,
		labelSelector: labelSelector,
		auth:          auth,
	}
	ix.recomputeNamespaceAuthzMatches(ns)
}

func (ix *Index) deleteAuthz(namespace, name string) {
	ns, ok := ix.namespaces[namespace]
	if !ok {
		ix.log.Warn("delete ServerAuthorization in unknown namespace", "namespace", namespace, "name", name)
		return
	}
	if _, ok := ns.authzs[name]; !ok {
		ix.log.Warn("delete of non-existent ServerAuthorization", "namespace", namespace, "name", name)
		return
	}
	delete(ns.authzs, name)
	ix.recomputeNamespaceAuthzMatches(ns)
	ix.pruneNamespaceIfEmpty(namespace)
}

func (ix *Index) resetAuthzs(objs []*policyv1alpha1.ServerAuthorization) {
	byNS := map[string]map[string]bool{}
	for _, o := range objs {
		if byNS[o.Namespace] == nil {
			byNS[o.Namespace] = map[string]bool{}
		}
		byNS[o.Namespace][o.Name] = true
		ix.applyAuthz(o)
	}
	for nsName, ns := range ix.namespaces {
		present := byNS[nsName]
		for name := range ns.authzs {
			if !present[name] {
				ix.deleteAuthz(nsName, name)
			}
		}
	}
}

// recomputeNamespaceAuthzMatches re-derives matched_authorizations for
// every Server in ns and republishes the ones that changed (§4.4 "the
// index walks every Server in the namespace and republishes those whose
// matched-authorization set changes").
func (ix *Index) recomputeNamespaceAuthzMatches(ns *namespace) {
	for _, sr := range ns.servers {
		matched := ix.matchedAuthorizationsForServer(ns, sr)
		if !authzSetEqual(sr.matched, matched) {
			sr.matched = matched
			ix.publishServer(sr)
		}
	}
}

func (ix *Index) matchedAuthorizationsForServer(ns *namespace, sr *serverRecord) map[string]core.ClientAuthorization {
	matched := map[string]core.ClientAuthorization{}
	for _, a := range ns.authzs {
		if a.matchesServer(sr) {
			matched[a.name] = a.auth
		}
	}
	return matched
}

func authzSetEqual(a, b map[string]core.ClientAuthorization) bool {
	if len(a) != len(b) {
		return false
	}
	for name, az := range a {
		bz, ok := b[name]
		if !ok || !az.Equal(bz) {
			return false
		}
	}
	return true
}
