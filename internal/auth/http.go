package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type roleHandler struct {
	roles *RoleService
}

// RegisterRoutes mounts the role endpoints on an authenticated group.
func RegisterRoutes(rg *gin.RouterGroup, roles *RoleService, adminOnly gin.HandlerFunc) {
	h := &roleHandler{roles: roles}

	rg.GET("/me/role", h.myRole)
	rg.PUT("/roles", adminOnly, h.setRole)
}

func (h *roleHandler) myRole(c *gin.Context) {
	email := UserEmail(c)
	c.JSON(http.StatusOK, gin.H{
		"ok":    true,
		"email": email,
		"role":  h.roles.RoleForEmail(c.Request.Context(), email),
	})
}

type setRoleReq struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *roleHandler) setRole(c *gin.Context) {
	var req setRoleReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	if err := h.roles.SetRole(c.Request.Context(), req.Email, req.Role); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
