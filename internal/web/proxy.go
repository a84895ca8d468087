package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/rs/cors"

	"evsched/internal/config"
	appLog "evsched/internal/log"
)

// newAPIProxy forwards /api/{path} to backend.url + backend.api_prefix +
// /{path}, so a browser talking to this server never needs the backend's
// origin. CORS applies to this route only.
func newAPIProxy(cfg *config.Config) (http.Handler, error) {
	if cfg == nil {
		return nil, errors.New("web: config is nil")
	}
	target, err := url.Parse(cfg.BackendBaseURL())
	if err != nil {
		return nil, fmt.Errorf("web: invalid backend URL: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("web: backend URL %q has no scheme or host", cfg.BackendBaseURL())
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.URL.Path = strings.TrimRight(target.Path, "/") + strings.TrimPrefix(pr.In.URL.Path, "/api")
			pr.Out.URL.RawPath = ""
			pr.Out.Host = target.Host
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			appLog.Error("api proxy failed", err, "path", r.URL.Path)
			writeError(w, http.StatusBadGateway, "backend unavailable")
		},
	}

	origins := cfg.CORS.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", headerRequestID},
	})

	appLog.Info("api proxy configured", "target", target.String(), "origins", strings.Join(origins, ","))
	return c.Handler(proxy), nil
}
