package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fusebox/fusebox/pkg/cache"
)

// callContextFrom builds the cache key context for a request: route
// params, first query values, and the authenticated subject and tenant.
// Body fields are not populated, so {body.x} placeholders resolve empty.
func callContextFrom(r *http.Request) cache.CallContext {
	cc := cache.CallContext{
		Tenant: GetTenant(r.Context()),
	}

	if rctx := chi.RouteContext(r.Context()); rctx != nil && len(rctx.URLParams.Keys) > 0 {
		cc.Params = make(map[string]any, len(rctx.URLParams.Keys))
		for i, key := range rctx.URLParams.Keys {
			cc.Params[key] = rctx.URLParams.Values[i]
		}
	}

	if query := r.URL.Query(); len(query) > 0 {
		cc.Query = make(map[string]any, len(query))
		for key, values := range query {
			if len(values) > 0 {
				cc.Query[key] = values[0]
			}
		}
	}

	if subject := GetSubject(r.Context()); subject != "" {
		cc.User = map[string]any{"id": subject}
	}

	return cc
}
