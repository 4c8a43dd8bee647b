package http

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-szyszlo/event-manager/internal/auth"
	"github.com/a-szyszlo/event-manager/internal/http/handlers"
	"github.com/a-szyszlo/event-manager/internal/http/middlewares"
	"github.com/a-szyszlo/event-manager/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Nonces issues and verifies the purpose-scoped tokens embedded in pages.
type Nonces interface {
	handlers.NonceIssuer
	middlewares.NonceVerifier
}

type Deps struct {
	Log  *slog.Logger
	Prom *observability.Prom
	Env  string
	Ping func(ctx context.Context) error
	// Draining reports that shutdown has begun; /readyz then fails.
	Draining func() bool
	Pages    handlers.PageStore

	Registrations handlers.RegistrationAdmitter
	Search        handlers.Searcher
	Nonces        Nonces
	Templates     *template.Template
	Static        http.FileSystem
	Location      *time.Location

	// Gatherer backs /metrics; nil disables the route.
	Gatherer prometheus.Gatherer

	CORSAllowedOrigins []string
	RateLimitPerMinute int
	MaxBodyBytes       int64
	TrustProxyHeaders  bool
}

func NewRouter(d Deps) *gin.Engine {
	if d.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware("event-manager"))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(d.MaxBodyBytes))
	r.Use(middlewares.ClientIP(d.TrustProxyHeaders))

	// health
	h := handlers.NewHealthHandler(d.Ping, d.Draining)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	// ajax actions
	limit := d.RateLimitPerMinute
	if limit <= 0 {
		limit = 20
	}
	limiter := middlewares.NewRateLimiter(limit, time.Minute)

	regHandler := handlers.NewRegistrationHandler(d.Registrations)
	searchHandler := handlers.NewSearchHandler(d.Search, d.Nonces)

	ajax := handlers.NewAjaxHandler()
	ajax.Handle(handlers.ActionRegister,
		limiter.RateLimiterMiddleware(middlewares.KeyByIP),
		regHandler.Register,
	)
	ajax.Handle(handlers.ActionSearch,
		middlewares.RequireNonce(d.Nonces, auth.PurposeSearch),
		searchHandler.Search,
	)
	ajax.Handle(handlers.ActionSearchNonce, searchHandler.Nonce)

	r.POST(handlers.AjaxPath, middlewares.RequireForm(), ajax.Dispatch)

	// pages
	pages := handlers.NewPagesHandler(d.Pages, d.Nonces, d.Location)
	if d.Templates != nil {
		r.SetHTMLTemplate(d.Templates)

		r.GET("/", func(ctx *gin.Context) {
			ctx.Redirect(http.StatusFound, "/eventy")
		})
		r.GET("/eventy", pages.SearchPage)
		r.GET("/wydarzenia/:slug", pages.EventPage)
		r.NoRoute(pages.NotFound)
	}

	if d.Static != nil {
		r.StaticFS("/static", d.Static)
	}

	return r
}
