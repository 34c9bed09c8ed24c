package programs

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/walking-football-hub/wfh-backend/internal/auth"
)

// RoleResolver is the slice of the role service the handlers need.
type RoleResolver interface {
	RoleForEmail(ctx context.Context, email string) string
}

type Handler struct {
	repo  *Repo
	roles RoleResolver
}

// Register mounts the program, booking and rating routes. The group must
// already be behind the auth middleware; adminOnly additionally gates the
// mutating program routes.
func Register(rg *gin.RouterGroup, repo *Repo, roles RoleResolver, adminOnly gin.HandlerFunc) {
	h := &Handler{repo: repo, roles: roles}

	rg.GET("/programs", h.list)
	rg.GET("/programs/:id", h.get)
	rg.POST("/programs", adminOnly, h.create)
	rg.PATCH("/programs/:id", adminOnly, h.update)
	rg.DELETE("/programs/:id", adminOnly, h.delete)

	rg.POST("/programs/:id/bookings", h.book)
	rg.DELETE("/programs/:id/bookings", h.cancelBooking)
	rg.GET("/programs/:id/bookings", adminOnly, h.listBookings)

	rg.GET("/programs/:id/ratings", h.listRatings)
	rg.GET("/programs/:id/my-rating", h.myRating)
	rg.PUT("/programs/:id/ratings", h.upsertRating)
	rg.DELETE("/programs/:id/ratings", h.deleteRating)

	rg.GET("/ratings", adminOnly, h.listAllRatings)
}

func (h *Handler) create(c *gin.Context) {
	var in ProgramInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "name is required"})
		return
	}

	p, err := h.repo.Create(c.Request.Context(), in)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ok": true, "program": forAPI(*p)})
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.repo.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	out := make([]Program, 0, len(items))
	for _, p := range items {
		out = append(out, forAPI(p))
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "programs": out})
}

func (h *Handler) get(c *gin.Context) {
	p, err := h.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "program": forAPI(*p)})
}

func (h *Handler) update(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	if err := h.repo.Update(c.Request.Context(), c.Param("id"), patch); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.repo.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type bookReq struct {
	DisplayName string `json:"displayName"`
}

func (h *Handler) book(c *gin.Context) {
	var req bookReq
	// Body is optional; displayName defaults to empty.
	_ = c.ShouldBindJSON(&req)

	email := auth.UserEmail(c)
	if err := h.repo.Book(c.Request.Context(), c.Param("id"), email, req.DisplayName); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true})
}

func (h *Handler) cancelBooking(c *gin.Context) {
	email := auth.UserEmail(c)
	if err := h.repo.Cancel(c.Request.Context(), c.Param("id"), email); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) listBookings(c *gin.Context) {
	items, err := h.repo.ListBookings(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "bookings": items})
}

func (h *Handler) listRatings(c *gin.Context) {
	items, err := h.repo.ListRatings(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "ratings": items})
}

func (h *Handler) myRating(c *gin.Context) {
	rt, err := h.repo.GetUserRating(c.Request.Context(), c.Param("id"), auth.UserEmail(c))
	if errors.Is(err, ErrRatingNotFound) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "rating": nil})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "rating": rt})
}

type ratingReq struct {
	Stars   float64 `json:"stars"`
	Comment string  `json:"comment"`
}

func (h *Handler) upsertRating(c *gin.Context) {
	var req ratingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	in := RatingInput{Email: auth.UserEmail(c), Stars: req.Stars, Comment: req.Comment}
	if err := h.repo.UpsertRating(c.Request.Context(), c.Param("id"), in); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// deleteRating removes the caller's rating. Admins may delete another user's
// rating via ?email=.
func (h *Handler) deleteRating(c *gin.Context) {
	email := auth.UserEmail(c)
	if target := NormalizeEmail(c.Query("email")); target != "" && target != email {
		if h.roles.RoleForEmail(c.Request.Context(), email) != auth.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": "admin-only"})
			return
		}
		email = target
	}

	if err := h.repo.DeleteRating(c.Request.Context(), c.Param("id"), email); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) listAllRatings(c *gin.Context) {
	items, err := h.repo.ListAllRatingsFlat(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "ratings": items})
}

func (h *Handler) fail(c *gin.Context, err error) {
	c.JSON(httpStatusFor(err), gin.H{"ok": false, "error": err.Error()})
}

func httpStatusFor(err error) int {
	switch {
	case errors.Is(err, ErrProgramNotFound), errors.Is(err, ErrRatingNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrProgramFull),
		errors.Is(err, ErrAlreadyBooked),
		errors.Is(err, ErrProgramUnavailable):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrInvalidStars),
		errors.Is(err, ErrFieldNotAllowed),
		errors.Is(err, ErrInvalidPatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// forAPI rounds derived aggregates for display.
func forAPI(p Program) Program {
	p.RatingAvg = Round2(p.RatingAvg)
	return p
}
