package main

import (
	"log/slog"
	"net/http"
	"time"

	"mobility-challenge/activities"
	"mobility-challenge/auth"
	"mobility-challenge/common"
	"mobility-challenge/config"
	"mobility-challenge/exports"
	"mobility-challenge/stats"
	"mobility-challenge/teams"
	"mobility-challenge/users"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Migrate creates the tables in dependency order.
func Migrate(db *gorm.DB) error {
	steps := []func(*gorm.DB) error{
		teams.AutoMigrate,
		users.AutoMigrate,
		activities.AutoMigrate,
		common.AutoMigrateMetrics,
	}
	for _, step := range steps {
		if err := step(db); err != nil {
			return err
		}
	}
	return nil
}

// Deps are the collaborators of the HTTP router.
type Deps struct {
	Config *config.Config
	DB     *gorm.DB
	Logger *slog.Logger
	// Metrics receives one row per request; nil disables persistence.
	Metrics common.MetricSink
	Now     func() time.Time
}

// NewRouter wires every service and mounts the API.
func NewRouter(d Deps) *gin.Engine {
	if d.Now == nil {
		d.Now = time.Now
	}
	cfg := d.Config

	r := gin.New()
	r.RedirectTrailingSlash = false
	r.Use(common.MetricsMiddleware(d.Metrics), common.RequestLogger(d.Logger))
	if gin.Mode() == gin.DebugMode {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery(), common.ErrorResponder(d.Logger, cfg.IsProduction()))

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL, d.Now)
	teamSvc := teams.NewService(d.DB)
	userSvc := users.NewService(d.DB, teamSvc, issuer)
	ledger := activities.NewLedger(activities.NewGormStore(d.DB), d.Now)
	aggregator := stats.NewAggregator(stats.NewGormSource(d.DB), d.Now)
	exporter := exports.NewExporter(d.DB, teamSvc)

	teamHandler := teams.NewHandler(teamSvc)
	userHandler := users.NewHandler(userSvc, issuer, cfg.IsProduction())
	activityHandler := activities.NewHandler(ledger)
	statsHandler := stats.NewHandler(aggregator)
	exportHandler := exports.NewHandler(exporter, d.Logger, d.Now)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	requireAuth := auth.RequireAuth(issuer)

	userHandler.RegisterAuth(api.Group("/auth"))
	teamHandler.RegisterPublic(api.Group("/teams"))
	activityHandler.RegisterRoutes(api.Group("/activities", requireAuth))
	statsHandler.RegisterPublic(api.Group("/stats"))
	statsHandler.RegisterPersonal(api.Group("/stats", requireAuth))

	admin := api.Group("/admin", requireAuth, auth.RequireAdmin())
	userHandler.RegisterAdmin(admin.Group("/users"))
	teamHandler.RegisterAdmin(admin.Group("/teams"))
	adminActivities := admin.Group("/activities")
	activityHandler.RegisterAdmin(adminActivities)
	exportHandler.RegisterAdmin(adminActivities)

	return r
}
