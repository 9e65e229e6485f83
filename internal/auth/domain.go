package auth

import (
	"sort"
	"strings"
)

// DomainGate decides whether an email address belongs to an allowed
// organization domain.
type DomainGate struct {
	domains map[string]struct{}
}

// NewDomainGate builds a gate for the given domains. Entries are compared
// case-insensitively.
func NewDomainGate(domains []string) *DomainGate {
	g := &DomainGate{domains: make(map[string]struct{}, len(domains))}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			g.domains[d] = struct{}{}
		}
	}
	return g
}

// Allowed reports whether the part of email after its last '@', lower-cased,
// is an allowed domain. Addresses without '@' are never allowed.
func (g *DomainGate) Allowed(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	if domain == "" {
		return false
	}
	_, ok := g.domains[domain]
	return ok
}

// Domains returns the allowed domains in sorted order.
func (g *DomainGate) Domains() []string {
	out := make([]string, 0, len(g.domains))
	for d := range g.domains {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// DeniedMessage is the notice shown to a user outside the allowed domains,
// e.g. "Access denied. Only @tbmcg.com email addresses are allowed."
func (g *DomainGate) DeniedMessage() string {
	domains := g.Domains()
	if len(domains) == 0 {
		return "Access denied. No email domains are allowed."
	}
	for i, d := range domains {
		domains[i] = "@" + d
	}
	return "Access denied. Only " + strings.Join(domains, " or ") + " email addresses are allowed."
}
