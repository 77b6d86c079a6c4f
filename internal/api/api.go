package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-contrib/sessions/memstore"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jon4hz/bookshelf/internal/api/auth"
	"github.com/jon4hz/bookshelf/internal/api/handler"
	"github.com/jon4hz/bookshelf/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const requestIDHeader = "X-Request-ID"

type Server struct {
	cfg        *config.Config
	ginEngine  *gin.Engine
	httpServer *http.Server
	handler    *handler.Handler
	tokens     auth.TokenVerifier
	users      auth.UserResolver
	uploadDir  string
}

func New(cfg *config.Config, h *handler.Handler, tokens auth.TokenVerifier, users auth.UserResolver, uploadDir string, debug bool) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:       cfg,
		ginEngine: gin.New(),
		handler:   h,
		tokens:    tokens,
		users:     users,
		uploadDir: uploadDir,
	}
	s.ginEngine.Use(gin.Recovery(), requestLogger())
	if err := s.setupSession(); err != nil {
		return nil, err
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.ginEngine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) setupSession() error {
	sessionCfg := s.cfg.Session
	if sessionCfg == nil {
		sessionCfg = &config.SessionConfig{Store: config.SessionStoreMemory}
	}

	var store sessions.Store
	switch sessionCfg.Store {
	case config.SessionStoreCookie:
		store = cookie.NewStore([]byte(s.cfg.SessionKey))
	case config.SessionStoreMemory, "":
		store = memstore.NewStore([]byte(s.cfg.SessionKey))
	default:
		return fmt.Errorf("unknown session store: %s", sessionCfg.Store)
	}

	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   s.cfg.GetSessionMaxAge(),
		HttpOnly: true,
		Secure:   sessionCfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.ginEngine.Use(sessions.Sessions(auth.SessionName, store))
	return nil
}

func (s *Server) setupRoutes() {
	h := s.handler

	s.ginEngine.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/images", "/metrics"})))

	s.ginEngine.GET("/", h.Home)
	s.ginEngine.POST("/signup", h.Signup)
	s.ginEngine.POST("/login", h.Login)
	s.ginEngine.POST("/googlelogin", h.GoogleLogin)
	s.ginEngine.POST("/upload", h.Upload)
	s.ginEngine.Static("/images", s.uploadDir)

	// bearer token routes
	tokenGroup := s.ginEngine.Group("/")
	tokenGroup.Use(auth.RequireToken(s.tokens))
	registerBookRoutes(tokenGroup, h)

	// session routes
	s.ginEngine.POST("/authcheck", h.AuthCheck)
	sessionGroup := s.ginEngine.Group("/session")
	sessionGroup.POST("/login", h.SessionLogin)
	sessionProtected := sessionGroup.Group("/")
	sessionProtected.Use(auth.RequireSession(s.users))
	sessionProtected.POST("/logout", h.SessionLogout)
	registerBookRoutes(sessionProtected, h)

	if s.cfg.Metrics != nil && s.cfg.Metrics.Enabled {
		s.ginEngine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

func registerBookRoutes(g *gin.RouterGroup, h *handler.Handler) {
	g.PATCH("/addbook", h.AddBook)
	g.POST("/allbooks", h.AllBooks)
	g.POST("/updatebook", h.UpdateBook)
	g.POST("/removebook", h.RemoveBook)
}

// requestLogger tags every request with an id and logs it once it's done.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()

		log.Debug("request",
			"id", id,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
