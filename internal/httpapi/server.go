// Package httpapi exposes the portal over HTTP with gin.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"artwink/internal/artwork"
	"artwink/internal/attendance"
	"artwink/internal/auth"
	"artwink/internal/directory"
	"artwink/internal/guard"
	"artwink/internal/httpmiddleware"
	"artwink/internal/metrics"
	"artwink/internal/roster"
	"artwink/internal/studio"
)

// HealthCheck reports one dependency's health.
type HealthCheck func(ctx context.Context) error

// Deps are the services behind the router.
type Deps struct {
	Store      studio.Store
	Gate       *auth.Gate
	Attendance *attendance.Service
	Directory  *directory.Service
	Artworks   *artwork.Service
	Roster     *roster.Cache
	Limiter    httpmiddleware.Limiter
	Health     map[string]HealthCheck
	Location   *time.Location
	Log        *zap.Logger

	SigningKey string
	Issuer     string
}

// Server holds the handlers.
type Server struct {
	Deps
	unwatch func()
}

// New builds the server and its router.
func New(d Deps) (*Server, *gin.Engine) {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := studio.RegisterValidations(v); err != nil {
			d.Log.Warn("binding validations not registered", zap.Error(err))
		}
	}
	s := &Server{Deps: d}
	s.unwatch = d.Gate.Feed().Subscribe(s.observeAuth)
	return s, s.routes()
}

// Close stops watching the auth feed.
func (s *Server) Close() {
	if s.unwatch != nil {
		s.unwatch()
	}
}

func (s *Server) observeAuth(ev auth.Event) {
	metrics.AuthEvents.WithLabelValues(string(ev.Kind), string(ev.Session.Role)).Inc()
	s.Log.Info("auth state changed",
		zap.String("kind", string(ev.Kind)),
		zap.String("uid", ev.Session.UserID),
		zap.String("role", string(ev.Session.Role)))
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 32 << 20

	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	if s.Limiter != nil {
		r.Use(httpmiddleware.RateLimit(s.Limiter, s.Log))
	}
	r.Use(auth.Bearer(s.SigningKey, s.Issuer, s.Gate))
	r.Use(guard.Middleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", s.healthz)

	v1 := r.Group("/v1")
	v1.POST("/auth/login", s.login)
	v1.POST("/auth/logout", s.logout)
	v1.GET("/auth/me", s.me)
	v1.GET("/navigate", s.navigate)

	parent := v1.Group("/parent")
	parent.GET("/students", s.parentStudents)
	parent.GET("/students/:id/attendance", s.parentAttendance)
	parent.GET("/students/:id/artworks", s.parentArtworks)

	admin := v1.Group("/admin")
	admin.GET("/dashboard", s.dashboard)
	admin.GET("/roster", s.roster)
	admin.GET("/roster/suggestions", s.suggestions)
	admin.GET("/attendance", s.attendanceView)
	admin.POST("/attendance", s.recordAttendance)
	admin.DELETE("/attendance/:id", s.deleteAttendance)
	admin.GET("/students", s.listStudents)
	admin.POST("/students", s.createStudent)
	admin.PATCH("/students/:id", s.updateStudent)
	admin.GET("/parents", s.listParents)
	admin.POST("/parents", s.createParent)
	admin.PATCH("/parents/:id", s.updateParent)
	admin.GET("/artworks", s.listArtworks)

	admin.POST("/batches", s.openBatch)
	admin.GET("/batches/:id", s.getBatch)
	admin.DELETE("/batches/:id", s.discardBatch)
	admin.POST("/batches/:id/files", s.addFiles)
	admin.DELETE("/batches/:id/files/:previewId", s.removeFile)
	admin.GET("/batches/:id/previews/:previewId", s.preview)
	admin.POST("/batches/:id/students/:studentId/toggle", s.toggleStudent)
	admin.POST("/batches/:id/submit", s.submitBatch)

	return r
}

func (s *Server) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range s.Health {
		ok := check(ctx) == nil
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// corsMiddleware answers browser preflight requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
