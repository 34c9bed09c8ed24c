package publicapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/walking-football-hub/wfh-backend/internal/programs"
)

// ProgramSource is the read slice of the program repository the public
// endpoints use. List is the capped page backing the lite listing; ListAll
// scans every program so the stats cover the whole collection.
type ProgramSource interface {
	List(ctx context.Context) ([]programs.Program, error)
	ListAll(ctx context.Context) ([]programs.Program, error)
}

// LiteProgram is the whitelisted field subset exposed without
// authentication.
type LiteProgram struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Location            string `json:"location"`
	Schedule            string `json:"schedule"`
	Difficulty          string `json:"difficulty"`
	Available           bool   `json:"available"`
	MaxParticipants     int    `json:"maxParticipants"`
	CurrentParticipants int    `json:"currentParticipants"`
}

type programsLiteResponse struct {
	Items []LiteProgram `json:"items"`
	Ts    int64         `json:"ts"`
}

type Handler struct {
	source ProgramSource
	cache  *Cache
}

func NewHandler(source ProgramSource, cache *Cache) *Handler {
	return &Handler{source: source, cache: cache}
}

// Register mounts the unauthenticated endpoints. Both are CORS-open and
// answer only GET plus the OPTIONS preflight.
func (h *Handler) Register(r gin.IRouter, extra ...gin.HandlerFunc) {
	programsChain := append(append([]gin.HandlerFunc{}, extra...), h.programsLite)
	statsChain := append(append([]gin.HandlerFunc{}, extra...), h.statsLite)
	r.Any("/apiProgramsLite", programsChain...)
	r.Any("/apiStatsLite", statsChain...)
}

func (h *Handler) programsLite(c *gin.Context) {
	if done := openCORS(c); done {
		return
	}

	if payload, ok := h.cache.Get(c.Request.Context(), cacheKeyPrograms); ok {
		c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
		return
	}

	items, err := h.source.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed", "detail": err.Error()})
		return
	}

	lite := make([]LiteProgram, 0, len(items))
	for _, p := range items {
		lite = append(lite, LiteProgram{
			ID:                  p.ID,
			Name:                p.Name,
			Location:            p.Location,
			Schedule:            p.Schedule,
			Difficulty:          p.Difficulty,
			Available:           p.Available,
			MaxParticipants:     p.MaxParticipants,
			CurrentParticipants: p.CurrentParticipants,
		})
	}

	payload, err := json.Marshal(programsLiteResponse{Items: lite, Ts: time.Now().UnixMilli()})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed", "detail": err.Error()})
		return
	}

	h.cache.Set(c.Request.Context(), cacheKeyPrograms, payload)
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

func (h *Handler) statsLite(c *gin.Context) {
	if done := openCORS(c); done {
		return
	}

	if payload, ok := h.cache.Get(c.Request.Context(), cacheKeyStats); ok {
		c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
		return
	}

	items, err := h.source.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed", "detail": err.Error()})
		return
	}

	payload, err := json.Marshal(ComputeStats(items))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed", "detail": err.Error()})
		return
	}

	h.cache.Set(c.Request.Context(), cacheKeyStats, payload)
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

// openCORS applies the wildcard-origin headers and handles the preflight
// and method guard. Returns true when the request is already answered.
func openCORS(c *gin.Context) bool {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Vary", "Origin")

	switch c.Request.Method {
	case http.MethodOptions:
		c.Status(http.StatusNoContent)
		return true
	case http.MethodGet:
		return false
	default:
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method-not-allowed"})
		return true
	}
}
