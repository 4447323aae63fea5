// Package httpapi mounts the FHIR REST surface of spec §6 on top of
// internal/store, internal/search, internal/snapshot, internal/registry,
// internal/terminology, and internal/pkginstall. It is grounded on the
// teacher's cmd/ehr-server/main.go route-registration style and on
// internal/platform/fhir/{bundle_handler,compartment_handler,search_post,
// search_middleware}.go for the bundle/compartment/search routing shapes,
// rebuilt against the generic engine instead of one handler per resource
// type.
package httpapi

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/ehr/internal/pkginstall"
	"github.com/ehr/ehr/internal/platform/auth"
	"github.com/ehr/ehr/internal/platform/db"
	"github.com/ehr/ehr/internal/platform/middleware"
	"github.com/ehr/ehr/internal/registry"
	"github.com/ehr/ehr/internal/search"
	"github.com/ehr/ehr/internal/snapshot"
	"github.com/ehr/ehr/internal/store"
	"github.com/ehr/ehr/internal/terminology"
)

// Server bundles every collaborator a request handler needs. Registry,
// Terminology, Snapshot, and Installer may be nil in a minimal deployment;
// the handlers that need them degrade to a not-supported response rather
// than panicking.
type Server struct {
	Store      *store.Store
	Planner    *search.Planner
	Pool       *pgxpool.Pool
	Snapshot   *snapshot.Cache
	Validator  *snapshot.Validator
	Registry   *registry.Registry
	Terminology *terminology.Static
	Installer  *pkginstall.Installer
	Log        zerolog.Logger

	BaseURL string // canonical external URL of the /fhir mount, for Bundle.link/fullUrl
}

// Config controls the ambient middleware stack, mirroring the teacher's
// cfg fields in cmd/ehr-server/main.go.
type Config struct {
	DevMode       bool
	AuthIssuer    string
	AuthAudience  string
	AuthJWKSURL   string
	CORSOrigins   []string
	DefaultTenant string
	RateLimit     middleware.RateLimitConfig
}

// NewRouter builds the Echo instance, mounts global middleware the same way
// cmd/ehr-server/main.go does (recovery, request id, structured logging,
// CORS, auth, tenant resolution), then registers the FHIR REST surface
// under /fhir and a plain health check at /health.
func (s *Server) NewRouter(cfg Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.errorHandler

	e.Use(middleware.Recovery(s.Log))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(s.Log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "If-Match", "If-None-Match", "If-None-Exist", "Prefer"},
	}))

	if cfg.DevMode {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		}))
	}

	if s.Pool != nil {
		e.Use(db.TenantMiddleware(s.Pool, cfg.DefaultTenant))
	}

	rl := cfg.RateLimit
	if rl.RequestsPerSecond <= 0 {
		rl = middleware.DefaultRateLimitConfig()
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
	if s.Pool != nil {
		e.GET("/health/db", db.HealthHandler(s.Pool))
	}

	fhirGroup := e.Group("/fhir")
	fhirGroup.Use(middleware.RateLimit(rl))
	s.registerRoutes(fhirGroup)

	return e
}

// registerRoutes mounts every REST row of spec §6's table. Order matters:
// fixed-path routes (metadata, the bundle root) are registered before the
// generic :type/:id routes so Echo's router never tries to treat "metadata"
// as a resource type.
func (s *Server) registerRoutes(g *echo.Group) {
	g.GET("/metadata", s.Metadata)

	g.POST("", s.ProcessBundle)
	g.GET("", s.SystemSearch)

	g.POST("/:type", s.Create)
	g.GET("/:type", s.TypeSearch)
	g.POST("/:type/_search", s.TypeSearch)
	g.PUT("/:type", s.ConditionalUpdate)
	g.DELETE("/:type", s.ConditionalDelete)

	g.GET("/:type/:id", s.Read)
	g.PUT("/:type/:id", s.Update)
	g.PATCH("/:type/:id", s.PatchResource)
	g.DELETE("/:type/:id", s.Delete)
	g.GET("/:type/:id/_history", s.History)
	g.GET("/:type/:id/_history/:vid", s.VRead)

	g.POST("/:type/:id/$validate", s.ValidateOperation)
	g.POST("/StructureDefinition/:id/$snapshot", s.SnapshotOperation)
	g.POST("/$install", s.InstallPackage)

	g.GET("/:ctype/:cid/:type", s.CompartmentSearch)
	g.GET("/:ctype/:cid/*", s.CompartmentSearchAll)
}
