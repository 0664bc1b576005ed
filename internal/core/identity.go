package core

import "strings"

// IdentityMatchKind discriminates ClientIdentityMatch variants.
type IdentityMatchKind int

const (
	IdentityName IdentityMatchKind = iota
	IdentitySuffix
)

// ClientIdentityMatch is Name(string) or Suffix([]string).
type ClientIdentityMatch struct {
	Kind  IdentityMatchKind
	Name  string
	Parts []string
}

// ParseClientIdentityMatch applies the §4.4 grammar: "*" is the empty
// suffix (matches everything), "*.a.b.c" is Suffix(["a","b","c"]),
// anything else is a literal Name.
func ParseClientIdentityMatch(s string) ClientIdentityMatch {
	if s == "*" {
		return ClientIdentityMatch{Kind: IdentitySuffix}
	}
	if strings.HasPrefix(s, "*.") {
		parts := strings.Split(strings.TrimPrefix(s, "*."), ".")
		return ClientIdentityMatch{Kind: IdentitySuffix, Parts: parts}
	}
	return ClientIdentityMatch{Kind: IdentityName, Name: s}
}

// Matches reports whether identity id satisfies this match.
func (m ClientIdentityMatch) Matches(id string) bool {
	switch m.Kind {
	case IdentityName:
		return m.Name == id
	case IdentitySuffix:
		if len(m.Parts) == 0 {
			return id != ""
		}
		return strings.HasSuffix(id, "."+strings.Join(m.Parts, "."))
	default:
		return false
	}
}

// Equal reports structural equality.
func (m ClientIdentityMatch) Equal(o ClientIdentityMatch) bool {
	if m.Kind != o.Kind {
		return false
	}
	if m.Kind == IdentityName {
		return m.Name == o.Name
	}
	if len(m.Parts) != len(o.Parts) {
		return false
	}
	for i := range m.Parts {
		if m.Parts[i] != o.Parts[i] {
			return false
		}
	}
	return true
}
