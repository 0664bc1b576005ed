package core

// DefaultAllowName identifies one of the five closed default-allow
// policies (§4.2).
type DefaultAllowName string

const (
	Deny                   DefaultAllowName = "deny"
	AllAuthenticated       DefaultAllowName = "all-authenticated"
	AllUnauthenticated     DefaultAllowName = "all-unauthenticated"
	ClusterAuthenticated   DefaultAllowName = "cluster-authenticated"
	ClusterUnauthenticated DefaultAllowName = "cluster-unauthenticated"
)

// DefaultAllowAnnotation is the pod/namespace annotation key that selects
// a per-pod or per-namespace default (§6).
const DefaultAllowAnnotation = "policy.linkerd.io/default-inbound-policy"

// ParseDefaultAllowName validates s against the closed set, returning ok =
// false for anything else (including empty string) so the caller can fall
// back per the §4.2 annotation precedence and log a warning.
func ParseDefaultAllowName(s string) (DefaultAllowName, bool) {
	switch DefaultAllowName(s) {
	case Deny, AllAuthenticated, AllUnauthenticated, ClusterAuthenticated, ClusterUnauthenticated:
		return DefaultAllowName(s), true
	default:
		return "", false
	}
}
