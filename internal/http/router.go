package http

import (
	"context"
	"log/slog"

	"github.com/geocoder89/postsapi/internal/auth"
	"github.com/geocoder89/postsapi/internal/config"
	"github.com/geocoder89/postsapi/internal/domain/user"
	"github.com/geocoder89/postsapi/internal/http/handlers"
	"github.com/geocoder89/postsapi/internal/http/middlewares"
	"github.com/geocoder89/postsapi/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "postsapi"

type UserStore interface {
	handlers.UsersStore
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

type Denylist interface {
	handlers.AccessRevoker
	middlewares.Denylist
}

// Deps is everything the router needs. Prom, Gatherer, Checks and
// ShuttingDown are optional.
type Deps struct {
	Users    UserStore
	Posts    handlers.PostsStore
	Refresh  handlers.RefreshTokenStore
	Denylist Denylist
	JWT      *auth.Manager
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	Checks   map[string]handlers.Check

	ShuttingDown func() bool
}

func NewRouter(log *slog.Logger, cfg config.Config, deps Deps) *gin.Engine {
	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	handlers.RegisterValidations()

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders(cfg.Env == "prod"))
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middlewares.ErrorDetails(cfg.ExposeErrorDetails))

	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	// operational routes
	h := handlers.NewHealthHandler(deps.Checks, deps.ShuttingDown)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// api routes
	body := []gin.HandlerFunc{middlewares.RequireJSON()}
	if cfg.MaxBodyBytes > 0 {
		body = append([]gin.HandlerFunc{middlewares.MaxBodyBytes(cfg.MaxBodyBytes)}, body...)
	}

	am := middlewares.NewAuthMiddleware(deps.JWT, deps.Denylist, deps.Users)
	authHandler := handlers.NewAuthHandler(deps.Users, deps.JWT, deps.Refresh, deps.Denylist, cfg)
	if deps.Prom != nil {
		am.OnFailure(deps.Prom.AuthFailed)
		authHandler.OnFailure(deps.Prom.AuthFailed)
	}

	public := r.Group("/", body...)
	public.POST("/register", authHandler.Register)
	public.POST("/login", authHandler.Login)
	public.POST("/auth/refresh", authHandler.Refresh)

	// auth gate ahead of the body checks
	authed := r.Group("/", append([]gin.HandlerFunc{am.RequireAuth()}, body...)...)
	authed.POST("/auth/logout", authHandler.Logout)
	authed.GET("/user", authHandler.Me)

	usersHandler := handlers.NewUsersHandler(deps.Users)

	// mutating a user account is optionally limited to its owner or an admin
	guard := func(c *gin.Context) { c.Next() }
	if cfg.UsersSelfOrAdmin {
		guard = am.RequireSelfOrAdmin("id")
	}

	authed.GET("/users", usersHandler.List)
	authed.POST("/users", usersHandler.Create)
	authed.GET("/users/:id", usersHandler.Show)
	authed.PUT("/users/:id", guard, usersHandler.Update)
	authed.PATCH("/users/:id", guard, usersHandler.Update)
	authed.DELETE("/users/:id", guard, usersHandler.Delete)

	postsHandler := handlers.NewPostsHandler(deps.Posts)

	authed.GET("/posts", postsHandler.List)
	authed.POST("/posts", postsHandler.Create)
	authed.GET("/posts/:id", postsHandler.Show)
	authed.PUT("/posts/:id", postsHandler.Update)
	authed.PATCH("/posts/:id", postsHandler.Update)
	authed.DELETE("/posts/:id", postsHandler.Delete)

	return r
}
