package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/opsdeck/session-gateway/docs"
	"github.com/opsdeck/session-gateway/internal/api/handler"
	"github.com/opsdeck/session-gateway/internal/api/middleware"
	"github.com/opsdeck/session-gateway/internal/core/domain"
	"github.com/opsdeck/session-gateway/internal/core/ports"
	"github.com/opsdeck/session-gateway/internal/core/service"
)

// Deps carries everything the router wires together.
type Deps struct {
	Sessions       ports.SessionService
	Guard          *service.Guard
	Audit          ports.AuditRepository
	Redis          *redis.Client
	Mongo          *mongo.Database
	GatewayKeyHash string
	Log            zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("session_gateway"))

	// --- Handlers ---
	sessionHandler := handler.NewSessionHandler(deps.Sessions)
	guardHandler := handler.NewGuardHandler(deps.Guard)
	auditHandler := handler.NewAuditHandler(deps.Audit)

	gated := e.Group("", middleware.GatewayKey(deps.GatewayKeyHash))

	// --- Session routes ---
	gated.POST("/session/login", sessionHandler.Login)
	gated.POST("/session/logout", sessionHandler.Logout)
	gated.POST("/session/switch", sessionHandler.Switch)
	gated.GET("/session", sessionHandler.Sessions)
	gated.GET("/session/token", sessionHandler.Token)

	// --- Guard decision endpoint ---
	gated.GET("/guard/check", guardHandler.Check)

	// --- Login history, admin console only ---
	gated.GET("/audit", auditHandler.Recent, middleware.Guard(deps.Guard, domain.RoleAdmin))

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(deps.Redis, deps.Mongo)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?

	// --- Observability & docs ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
