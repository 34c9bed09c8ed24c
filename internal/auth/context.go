package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	CtxFirebaseUID = "firebase_uid"
	CtxEmail       = "email"
)

// UserFirebaseUID extracts the Firebase UID from the Gin context.
// This is set by middleware.FirebaseAuth.
func UserFirebaseUID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxFirebaseUID))
}

// UserEmail extracts the verified token's email claim from the Gin context.
// Booking and rating identity comes from here, never from request bodies.
func UserEmail(c *gin.Context) string {
	return strings.ToLower(strings.TrimSpace(c.GetString(CtxEmail)))
}
