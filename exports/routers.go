package exports

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"mobility-challenge/common"
	"mobility-challenge/parsers"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
)

type Handler struct {
	exporter *Exporter
	logger   *slog.Logger
	now      func() time.Time
}

func NewHandler(exporter *Exporter, logger *slog.Logger, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{exporter: exporter, logger: logger, now: now}
}

// RegisterAdmin mounts the export under the admin activities group.
func (h *Handler) RegisterAdmin(r *gin.RouterGroup) {
	r.GET("/export", h.StreamActivities)
}

// StreamActivities godoc
// @Summary Stream activity export
// @Description Streams every activity, optionally for one team, as CSV or NDJSON
// @Tags admin
// @Produce text/csv
// @Produce application/x-ndjson
// @Param format query string false "Export format (csv or ndjson)"
// @Param team query string false "Team slug"
// @Success 200 {file} file "Streaming export data"
// @Failure 400 {object} common.ErrorBody "Invalid format"
// @Failure 404 {object} common.ErrorBody "Team not found"
// @Router /admin/activities/export [get]
func (h *Handler) StreamActivities(c *gin.Context) {
	format, err := ParseFormat(c.Query("format"))
	if err != nil {
		common.Fail(c, err)
		return
	}
	filter, team, err := h.exporter.FilterForTeam(c.Request.Context(), c.Query("team"))
	if err != nil {
		common.Fail(c, err)
		return
	}

	scope := "all"
	if team != nil {
		scope = slug.Make(team.Name)
	}
	filename := fmt.Sprintf("activities_%s_%s.%s", scope, h.now().Format("20060102_150405"), format)

	if format == parsers.FormatCSV {
		c.Header("Content-Type", "text/csv; charset=utf-8")
	} else {
		c.Header("Content-Type", "application/x-ndjson")
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	c.Stream(func(w io.Writer) bool {
		n, err := h.exporter.WriteActivities(c.Request.Context(), w, format, filter)
		if err != nil {
			// headers are gone; the truncated body is all the client gets
			h.logger.Error("activity export failed", "rows", n, "error", err, "request_id", c.GetString(common.RequestIDKey))
			_ = c.Error(err)
		}
		return false
	})
}
