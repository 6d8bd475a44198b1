package observability

import (
	"context"
	"net/http"
)

// HTTPMiddleware traces every request and feeds the RED metrics,
// named by method and path.
func (p *Provider) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.Method + " " + r.URL.Path
		_ = p.Operation(r.Context(), name, func(ctx context.Context) error {
			next.ServeHTTP(w, r.WithContext(ctx))
			return nil
		})
	})
}
