package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	apierrors "github.com/wellwatchhq/wellwatch/internal/errors"
	"github.com/wellwatchhq/wellwatch/internal/freshness"
	"github.com/wellwatchhq/wellwatch/internal/models"
	"github.com/wellwatchhq/wellwatch/internal/repository"
)

// Feeds the status endpoint reports on.
var watchedFeeds = []models.FeedType{
	models.FeedPermits,
	models.FeedCompletions,
	models.FeedTransfers,
	models.FeedStatuses,
	models.FeedDockets,
}

// FeedHandler exposes feed freshness for operators.
type FeedHandler struct {
	store   repository.FeedStatusStore
	monitor *freshness.Monitor
}

// NewFeedHandler creates a new FeedHandler instance.
func NewFeedHandler(store repository.FeedStatusStore, monitor *freshness.Monitor) *FeedHandler {
	return &FeedHandler{store: store, monitor: monitor}
}

// FeedStatusResponse is one feed's freshness in the status response.
type FeedStatusResponse struct {
	Feed          string  `json:"feed"`
	LastCheckedAt *string `json:"last_checked_at,omitempty"`
	LastNewRecord *string `json:"last_new_record,omitempty"`
	Stale         bool    `json:"stale"`
}

// Status handles GET /api/v1/feeds/status.
func (h *FeedHandler) Status(c *gin.Context) {
	out := make([]FeedStatusResponse, 0, len(watchedFeeds))

	for _, feed := range watchedFeeds {
		status, err := h.store.Get(c.Request.Context(), feed)
		if err != nil {
			apierrors.InternalServerError(c, "Failed to load feed status", err)
			return
		}

		resp := FeedStatusResponse{Feed: string(feed)}
		if status != nil {
			checked := status.LastCheckedAt.Format(time.RFC3339)
			resp.LastCheckedAt = &checked
			if status.LastNewRecord != nil {
				lastNew := status.LastNewRecord.Format(time.RFC3339)
				resp.LastNewRecord = &lastNew
			}
		}

		stale, err := h.monitor.IsStale(c.Request.Context(), feed)
		if err != nil {
			apierrors.InternalServerError(c, "Failed to evaluate feed staleness", err)
			return
		}
		resp.Stale = stale

		out = append(out, resp)
	}

	c.JSON(http.StatusOK, gin.H{"feeds": out})
}
