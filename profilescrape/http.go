package profilescrape

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/linkscrape/kit"
	"github.com/hazyhaar/linkscrape/shield"
)

const missingURLMessage = "Please provide ?url=<linkedin-profile>"

type scrapeRequest struct {
	URL string `json:"url"`
}

// endpoint is Scrape in the transport-neutral shape shared by HTTP and MCP.
func (s *Scraper) endpoint() kit.Endpoint {
	ep := func(ctx context.Context, req any) (any, error) {
		return s.Scrape(ctx, req.(*scrapeRequest).URL)
	}
	return kit.Chain(kit.WithLogging(s.logger, "scrape"))(ep)
}

// Handler returns the HTTP API:
//
//	GET  /                 liveness text
//	GET  /health           {"status":"ok"}
//	GET  /scrape?url=...   Record JSON
//	POST /scrape {"url"}   Record JSON
//
// /scrape sits behind basic auth when server.basic_auth_user is set.
func (s *Scraper) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	for _, mw := range shield.APIStack(s.cfg.Server.MaxBodyBytes) {
		r.Use(mw)
	}

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "LinkedIn scraper is running")
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	ep := s.endpoint()
	r.Group(func(r chi.Router) {
		if s.cfg.Server.BasicAuthUser != "" {
			r.Use(basicAuth(s.cfg.Server.BasicAuthUser, s.cfg.Server.BasicAuthHash))
		}
		r.Get("/scrape", scrapeHandler(ep))
		r.Post("/scrape", scrapeHandler(ep))
	})
	return r
}

func scrapeHandler(ep kit.Endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := scrapeRequest{URL: r.URL.Query().Get("url")}
		if req.URL == "" && r.Method == http.MethodPost {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
				writeError(w, http.StatusBadRequest, err)
				return
			}
		}
		if req.URL == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": missingURLMessage})
			return
		}

		ctx := r.Context()
		if id := middleware.GetReqID(ctx); id != "" {
			ctx = kit.WithRequestID(ctx, id)
		}
		rec, err := ep(ctx, &req)
		if err != nil {
			code := http.StatusInternalServerError
			if errors.Is(err, ErrInvalidTarget) {
				code = http.StatusBadRequest
			}
			shield.GetLogger(ctx).Warn("profilescrape: scrape failed", "kind", KindOf(err), "error", err)
			writeJSON(w, code, map[string]string{"error": err.Error(), "kind": KindOf(err)})
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// basicAuth requires user and a password matching the bcrypt hash.
func basicAuth(user, hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, p, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 ||
				bcrypt.CompareHashAndPassword([]byte(hash), []byte(p)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="profilescrape"`)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
