package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

type RouterConfig struct {
	// StaticDir is served at /. Empty disables static files.
	StaticDir string
	Logger    *zerolog.Logger
}

// NewRouter serves POST /api/chat and the widget's static files.
func NewRouter(uc ChatUseCase, cfg RouterConfig) http.Handler {
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.RemoteAddrHandler("remote"))
	r.Use(hlog.UserAgentHandler("user_agent"))
	r.Use(withCorrelationID)
	r.Use(hlog.AccessHandler(logAccess))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", correlationHeader},
		ExposedHeaders: []string{correlationHeader},
		MaxAge:         300,
	}))

	r.Route("/api", func(api chi.Router) {
		api.Post("/chat", chatHandler(uc))
	})

	if dir := strings.TrimSpace(cfg.StaticDir); dir != "" {
		r.Handle("/*", staticFiles(dir))
	}
	return r
}

func chatHandler(uc ChatUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "Request body too large"})
			return
		}
		status, payload := serveChat(r.Context(), uc, body)
		writeJSON(w, status, payload)
	}
}

// staticFiles serves dir, with index.html at /. Dotfiles stay private so a
// .env next to the page is never exposed.
func staticFiles(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, part := range strings.Split(r.URL.Path, "/") {
			if strings.HasPrefix(part, ".") && part != "." && part != ".." {
				http.NotFound(w, r)
				return
			}
		}
		if r.URL.Path == "/" {
			if _, err := os.Stat(filepath.Join(dir, "index.html")); err != nil {
				http.NotFound(w, r)
				return
			}
		}
		fs.ServeHTTP(w, r)
	})
}

// withCorrelationID echoes the caller's X-Correlation-Id, or chi's request
// id when none was sent, and tags the request logger with it.
func withCorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(correlationHeader))
		if id == "" {
			id = middleware.GetReqID(r.Context())
		}
		w.Header().Set(correlationHeader, id)
		zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("correlation_id", id)
		})
		next.ServeHTTP(w, r)
	})
}

func logAccess(r *http.Request, status, size int, elapsed time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("bytes", size).
		Dur("elapsed", elapsed).
		Msg("http request")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
