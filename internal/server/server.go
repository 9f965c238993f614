package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"clipriver/internal/api"
	"clipriver/internal/observability/metrics"
	"clipriver/internal/serverutil"
)

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type Config struct {
	Addr        string
	TLS         TLSConfig
	CORS        CORSConfig
	Security    SecurityConfig
	Logger      *slog.Logger
	AuditLogger *slog.Logger
	Metrics     *metrics.Recorder
}

type Server struct {
	httpServer  *http.Server
	logger      *slog.Logger
	auditLogger *slog.Logger
	metrics     *metrics.Recorder
	tlsCertFile string
	tlsKeyFile  string
}

func New(handler *api.Handler, cfg Config) (*Server, error) {
	if handler == nil {
		return nil, fmt.Errorf("api handler is required")
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handler.Health)
	mux.Handle("/metrics", recorder.Handler())
	mux.HandleFunc(api.Prefix+"/user/signup", handler.Signup)
	mux.HandleFunc(api.Prefix+"/user/login", handler.Login)
	mux.HandleFunc(api.Prefix+"/user/updateProfile", handler.UpdateProfile)
	mux.HandleFunc(api.Prefix+"/user/subscribe", handler.Subscribe)
	mux.HandleFunc(api.Prefix+"/video/upload", handler.UploadVideo)
	mux.HandleFunc(api.Prefix+"/video/all", handler.ListVideos)
	mux.HandleFunc(api.Prefix+"/video/myVideos", handler.MyVideos)
	mux.HandleFunc(api.Prefix+"/video/like", handler.LikeVideo)
	mux.HandleFunc(api.Prefix+"/video/dislike", handler.DislikeVideo)
	mux.HandleFunc(api.Prefix+"/video/update/", handler.UpdateVideoByID)
	mux.HandleFunc(api.Prefix+"/video/delete/", handler.DeleteVideoByID)
	mux.HandleFunc(api.Prefix+"/video/category/", handler.VideosByCategory)
	mux.HandleFunc(api.Prefix+"/video/tags/", handler.VideosByTag)
	mux.HandleFunc(api.Prefix+"/video/", handler.VideoByID)
	mux.HandleFunc(api.Prefix+"/comment/new", handler.NewComment)
	mux.HandleFunc(api.Prefix+"/comment/", handler.CommentByID)

	corsPolicy, err := newCORSPolicy(cfg.CORS)
	if err != nil {
		return nil, err
	}

	// Audit sits inside auth so the audit line can name the acting user;
	// metrics sits outside auth so rejected tokens still count.
	handlerChain := http.Handler(mux)
	handlerChain = auditMiddleware(cfg.AuditLogger, handlerChain)
	handlerChain = authMiddleware(handler, handlerChain)
	handlerChain = metricsMiddleware(recorder, handlerChain)
	handlerChain = corsMiddleware(corsPolicy, cfg.Logger, handlerChain)
	handlerChain = securityHeadersMiddleware(cfg.Security, handlerChain)
	handlerChain = loggingMiddleware(cfg.Logger, handlerChain)
	handlerChain = requestIDMiddleware(cfg.Logger, handlerChain)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handlerChain,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	srv := &Server{
		httpServer:  httpServer,
		logger:      cfg.Logger,
		auditLogger: cfg.AuditLogger,
		metrics:     recorder,
		tlsCertFile: strings.TrimSpace(cfg.TLS.CertFile),
		tlsKeyFile:  strings.TrimSpace(cfg.TLS.KeyFile),
	}

	if srv.tlsCertFile != "" && srv.tlsKeyFile != "" {
		httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return srv, nil
}

func (s *Server) Start() error {
	if s.httpServer == nil {
		return fmt.Errorf("http server is not configured")
	}

	if s.tlsCertFile != "" && s.tlsKeyFile != "" {
		return s.httpServer.ListenAndServeTLS(s.tlsCertFile, s.tlsKeyFile)
	}

	return s.httpServer.ListenAndServe()
}

// Run serves until ctx is cancelled, then drains in-flight requests bounded
// by shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration, ready chan<- struct{}) error {
	return serverutil.Run(ctx, serverutil.Config{
		Server:          s.httpServer,
		TLS:             serverutil.TLSConfig{CertFile: s.tlsCertFile, KeyFile: s.tlsKeyFile},
		ShutdownTimeout: shutdownTimeout,
		Ready:           ready,
	})
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	if logger == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := newStatusRecorder(w)
		start := time.Now()
		next.ServeHTTP(recorder, r)
		duration := time.Since(start)
		reqLogger := loggerWithRequestContext(r.Context(), logger)
		reqLogger.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"duration_ms", duration.Milliseconds(),
			"remote_ip", extractClientIP(r))
	})
}

func metricsMiddleware(recorder *metrics.Recorder, next http.Handler) http.Handler {
	if recorder == nil {
		recorder = metrics.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sr := newStatusRecorder(w)
		start := time.Now()
		next.ServeHTTP(sr, r)
		recorder.ObserveRequest(r.Method, r.URL.Path, sr.status, time.Since(start))
	})
}

// auditMiddleware logs mutating API calls with the acting user attached, so
// moderation can trace who uploaded, deleted, or edited what.
func auditMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	if logger == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sr := newStatusRecorder(w)
		start := time.Now()
		next.ServeHTTP(sr, r)
		if !shouldAudit(r) {
			return
		}
		duration := time.Since(start)
		identity, ok := api.IdentityFromContext(r.Context())
		fields := []interface{}{
			"method", r.Method,
			"path", r.URL.Path,
			"status", sr.status,
			"duration_ms", duration.Milliseconds(),
			"remote_ip", extractClientIP(r),
		}
		if ok {
			fields = append(fields, "user_id", identity.UserID)
		}
		logger.Info("audit", fields...)
	})
}

func shouldAudit(r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return false
	}
	return strings.HasPrefix(r.URL.Path, api.Prefix+"/")
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return strings.TrimSpace(xrip)
	}
	return clientIP(r.RemoteAddr)
}

func clientIP(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// authMiddleware gates the API routes behind bearer tokens. A missing token
// yields {"message":"Unauthorized"}; a token that fails verification yields
// {"error":"No token is provided"}. Clients key off both bodies.
func authMiddleware(handler *api.Handler, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		token := api.ExtractToken(r)
		if token == "" {
			api.WriteMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		identity, err := handler.Tokens.Verify(token)
		if err != nil {
			api.WriteErrorBody(w, http.StatusUnauthorized, "No token is provided")
			return
		}
		ctx := api.ContextWithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isPublicPath(path string) bool {
	if path == "/healthz" || path == "/metrics" {
		return true
	}
	if !strings.HasPrefix(path, api.Prefix+"/") {
		return true
	}
	switch path {
	case api.Prefix + "/user/signup", api.Prefix + "/user/login", api.Prefix + "/video/all":
		return true
	}
	return strings.HasPrefix(path, api.Prefix+"/video/category/") ||
		strings.HasPrefix(path, api.Prefix+"/video/tags/")
}
