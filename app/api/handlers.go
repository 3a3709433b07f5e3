package api

import (
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/feed2social/app/database"
	"github.com/lysyi3m/feed2social/app/feed"
	"github.com/lysyi3m/feed2social/app/tasks"
)

func NewHandler(configCache *feed.DestinationConfigCache, ledger database.LedgerReader,
	scheduler tasks.TaskSchedulerInterface, metrics http.Handler) *Handler {
	return &Handler{
		configCache: configCache,
		ledger:      ledger,
		scheduler:   scheduler,
		metrics:     metrics,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if count, err := h.ledger.Count(c.Request.Context()); err == nil {
		health["ledger_entries"] = count
	} else {
		slog.Error("Database error", "operation", "count_entries", "error", err)
		health["ledger_error"] = err.Error()
	}

	health["loaded_destinations"] = h.configCache.GetConfigCount()

	if h.scheduler != nil {
		if result, startedAt := h.scheduler.LastResult(); result != nil {
			health["last_run_id"] = result.RunID
			health["last_run_at"] = startedAt.Format(time.RFC3339)
			health["rate_limited"] = result.RateLimited
		}
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.ledger.Stats(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	byName := make(map[string]database.DestinationStats, len(stats))
	for _, s := range stats {
		byName[s.Destination] = s
	}

	var lastResult *tasks.RunResult
	var lastRunAt time.Time
	if h.scheduler != nil {
		lastResult, lastRunAt = h.scheduler.LastResult()
	}

	configs := h.configCache.GetConfigs()
	destinations := make([]destinationInfo, 0, len(configs))
	for _, config := range configs {
		info := destinationInfo{
			Name:       config.Name,
			Type:       config.Type,
			Enabled:    config.Enabled,
			MaxLength:  config.Sanitize.MaxLength,
			SkipMarker: config.Sanitize.SkipMarker,
			Reply:      config.Reply.IsEnabled(),
		}

		if s, ok := byName[config.Name]; ok {
			info.Entries = s.Entries
			if s.LastEntryAt != nil {
				at := s.LastEntryAt.In(time.Local).Format(time.RFC3339)
				info.LastEntryAt = &at
			}
		}

		if lastResult != nil {
			if summary, ok := lastResult.Summaries[config.Name]; ok {
				info.LastRun = &runStatus{
					RunID:       lastResult.RunID,
					StartedAt:   lastRunAt.Format(time.RFC3339),
					Seen:        summary.Seen,
					Skipped:     summary.Skipped,
					Published:   summary.Published,
					Committed:   summary.Committed,
					Failed:      summary.Failed,
					RateLimited: summary.RateLimited,
				}
			}
		}

		destinations = append(destinations, info)
	}

	sort.Slice(destinations, func(i, j int) bool {
		return destinations[i].Name < destinations[j].Name
	})

	c.JSON(http.StatusOK, gin.H{
		"destinations": destinations,
		"total":        len(destinations),
	})
}

func (h *Handler) GetMetrics(c *gin.Context) {
	h.metrics.ServeHTTP(c.Writer, c.Request)
}

func (h *Handler) APIListLedger(c *gin.Context) {
	name := c.Param("name")
	if _, err := h.configCache.GetConfig(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Destination configuration not found"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = n
	}

	entries, err := h.ledger.List(c.Request.Context(), name, limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_entries", "destination", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	result := make([]ledgerEntry, 0, len(entries))
	for _, entry := range entries {
		result = append(result, ledgerEntry{
			EntryID:   entry.EntryID,
			CreatedAt: entry.CreatedAt.In(time.Local).Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"destination": name,
		"entries":     result,
		"total":       len(result),
	})
}

func (h *Handler) APIReloadDestination(c *gin.Context) {
	name := c.Param("name")
	if _, err := h.configCache.GetConfig(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Destination configuration not found"})
		return
	}

	config, err := h.configCache.LoadConfig(name)
	if err != nil {
		slog.Error("Error reloading configuration", "destination", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configuration reloaded",
		"destination": gin.H{
			"name":    config.Name,
			"type":    config.Type,
			"enabled": config.Enabled,
		},
	})
}

func (h *Handler) APIRunNow(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler not running"})
		return
	}

	if err := h.scheduler.RunNow(); err != nil {
		slog.Error("Error triggering run", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to trigger run",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Run triggered",
	})
}
