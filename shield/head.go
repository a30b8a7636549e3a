package shield

import "net/http"

// HeadToGet routes HEAD requests to GET handlers, so load balancer probes on
// / and /health get 200 rather than 405. The request is cloned; net/http
// drops the body of HEAD responses.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		get := r.Clone(r.Context())
		get.Method = http.MethodGet
		next.ServeHTTP(w, get)
	})
}
