package tracker

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/leadharvest/config"
)

// linkedinContext is appended to the company name in search links so
// results land in the target market.
const linkedinContext = "San Francisco"

// NewRouter creates a configured Gin engine with all tracker routes.
func NewRouter(store *Store, cfg config.TrackerConfig) *gin.Engine {
	gin.SetMode(cfg.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	api := r.Group("/api")
	api.GET("/leads", listLeads(store))
	api.PATCH("/leads/:id", updateLead(store))
	api.GET("/leads/:id/log", leadLog(store))
	api.GET("/stats", stats(store))
	api.POST("/bulk", bulkUpdate(store))

	return r
}

// listLeads handles GET /api/leads with optional status, type, search and
// has_email query filters. Each lead is decorated with LinkedIn search
// links built from its name.
func listLeads(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		leads, err := store.ListLeads(c.Request.Context(), LeadFilter{
			Status:   c.Query("status"),
			Type:     c.Query("type"),
			Search:   c.Query("search"),
			HasEmail: c.Query("has_email"),
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		for i := range leads {
			keywords := url.QueryEscape(leads[i].Name + " " + linkedinContext)
			leads[i].LinkedInSearch = "https://www.linkedin.com/search/results/all/?keywords=" + keywords
			leads[i].LinkedInMessage = "https://www.linkedin.com/search/results/people/?keywords=" + keywords
		}
		c.JSON(http.StatusOK, leads)
	}
}

func updateLead(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lead id"})
			return
		}

		var upd LeadUpdate
		if err := c.ShouldBindJSON(&upd); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		switch err := store.UpdateLead(c.Request.Context(), id, upd); {
		case errors.Is(err, ErrNoFields), errors.Is(err, ErrUnknownStatus):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusOK, gin.H{"ok": true})
		}
	}
}

func leadLog(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lead id"})
			return
		}

		log, err := store.LeadLog(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, log)
	}
}

func stats(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := store.Stats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

type bulkRequest struct {
	IDs    []int64 `json:"ids"`
	Status string  `json:"status"`
}

func bulkUpdate(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req bulkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if len(req.IDs) == 0 || req.Status == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "need ids and status"})
			return
		}

		updated, err := store.BulkUpdateStatus(c.Request.Context(), req.IDs, req.Status)
		switch {
		case errors.Is(err, ErrUnknownStatus):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusOK, gin.H{"ok": true, "updated": updated})
		}
	}
}
