package api

import (
	"net/http"

	"github.com/go-chi/jwtauth"
)

// Principal is the authenticated caller identity attached to mutating
// requests.
type Principal struct {
	TenantID string
	Subject  string
}

// principalFrom resolves the caller identity. JWT claims win when a
// verified token is present on the context; otherwise the trusted
// gateway headers are used.
func principalFrom(r *http.Request) Principal {
	if _, claims, err := jwtauth.FromContext(r.Context()); err == nil {
		var p Principal
		if v, ok := claims["tenant_id"].(string); ok {
			p.TenantID = v
		}
		if v, ok := claims["sub"].(string); ok {
			p.Subject = v
		}
		if p.TenantID != "" {
			return p
		}
	}
	return Principal{
		TenantID: r.Header.Get("X-Tenant-Id"),
		Subject:  r.Header.Get("X-Uploaded-By"),
	}
}
