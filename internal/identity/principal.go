// Package identity extracts the inbound principal from bearer tokens.
// Identity is a collaborator of the proxy pipeline: a missing or
// invalid token yields an anonymous principal, and role enforcement
// happens downstream against the matched route.
package identity

// Principal is the authenticated caller of a gateway request.
type Principal struct {
	TenantID string   `json:"tenant_id"`
	UserID   string   `json:"user_id"`
	Roles    []string `json:"roles"`
}

// Anonymous reports whether the principal carries no identity.
func (p *Principal) Anonymous() bool {
	return p == nil || p.UserID == ""
}

// HasAnyRole reports whether the principal holds at least one of the
// given roles. An empty required set admits any authenticated caller.
func (p *Principal) HasAnyRole(required []string) bool {
	if p.Anonymous() {
		return false
	}
	if len(required) == 0 {
		return true
	}
	for _, want := range required {
		for _, have := range p.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}
