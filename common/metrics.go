package common

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// RequestIDKey is the gin context key holding the request ID.
const RequestIDKey = "request_id"

var requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "mobility",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "Duration of HTTP requests by route, method and status.",
	Buckets:   prometheus.DefBuckets,
}, []string{"route", "method", "status"})

func init() {
	prometheus.MustRegister(requestDuration)
}

// ApiMetric tracks API performance metrics
type ApiMetric struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RequestID  string    `gorm:"size:36;index" json:"request_id"`
	Endpoint   string    `gorm:"not null" json:"endpoint"`
	Method     string    `gorm:"not null" json:"method"`
	StatusCode int       `gorm:"not null" json:"status_code"`
	DurationMs int       `gorm:"not null" json:"duration_ms"`
	Errors     string    `gorm:"type:text" json:"errors,omitempty"`
	Timestamp  time.Time `gorm:"not null;index" json:"timestamp"`
}

func (ApiMetric) TableName() string { return "api_metrics" }

// AutoMigrateMetrics creates the api_metrics table
func AutoMigrateMetrics(db *gorm.DB) error {
	return db.AutoMigrate(&ApiMetric{})
}

// MetricSink receives one ApiMetric per request.
type MetricSink func(ApiMetric)

// NewMetricRecorder returns a sink that saves metrics asynchronously so the
// response is never held up by the insert.
func NewMetricRecorder(db *gorm.DB, logger *slog.Logger) MetricSink {
	return func(metric ApiMetric) {
		go func() {
			if err := db.Create(&metric).Error; err != nil {
				logger.Warn("persist api metric", "error", err)
			}
		}()
	}
}

// MetricsMiddleware tags each request with an ID, observes its duration in
// prometheus and hands an ApiMetric to sink when sink is non-nil.
func MetricsMiddleware(sink MetricSink) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Generate request ID for tracing
		requestID := uuid.New().String()
		c.Set(RequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		startTime := time.Now()
		c.Next()
		duration := time.Since(startTime)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		requestDuration.WithLabelValues(route, c.Request.Method, strconv.Itoa(status)).Observe(duration.Seconds())

		if sink == nil {
			return
		}
		errors := ""
		if len(c.Errors) > 0 {
			errors = c.Errors.String()
		}
		sink(ApiMetric{
			RequestID:  requestID,
			Endpoint:   route,
			Method:     c.Request.Method,
			StatusCode: status,
			DurationMs: int(duration.Milliseconds()),
			Errors:     errors,
			Timestamp:  startTime,
		})
	}
}
