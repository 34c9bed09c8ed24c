package auth

import (
	"context"
	"fmt"
	"log"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// RoleService resolves a user's role from the roles collection, falling back
// to a configured allow-list so a fresh deployment works before any role
// documents exist. Role changes take effect without a redeploy.
type RoleService struct {
	fs         *firestore.Client
	adminAllow map[string]struct{}
}

func NewRoleService(fs *firestore.Client, adminEmails []string) *RoleService {
	allow := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			allow[e] = struct{}{}
		}
	}
	return &RoleService{fs: fs, adminAllow: allow}
}

// RoleForEmail returns "admin" or "user". Lookup order: roles/{email}
// document, then the env allow-list, then the default. Lookup failures
// degrade to the fallback rather than blocking the request.
func (s *RoleService) RoleForEmail(ctx context.Context, email string) string {
	e := strings.ToLower(strings.TrimSpace(email))
	if e == "" {
		return RoleUser
	}

	if s.fs != nil {
		snap, err := s.fs.Collection("roles").Doc(e).Get(ctx)
		if err == nil {
			if role, rerr := snap.DataAt("role"); rerr == nil {
				if str, ok := role.(string); ok && str != "" {
					return str
				}
			}
		} else if status.Code(err) != codes.NotFound {
			log.Printf("[roles] lookup failed for %s: %v", e, err)
		}
	}

	return s.fallbackRole(e)
}

func (s *RoleService) fallbackRole(email string) string {
	if _, ok := s.adminAllow[email]; ok {
		return RoleAdmin
	}
	return RoleUser
}

// SetRole writes a role document, letting an admin promote or demote users
// at runtime.
func (s *RoleService) SetRole(ctx context.Context, email, role string) error {
	e := strings.ToLower(strings.TrimSpace(email))
	if e == "" {
		return fmt.Errorf("email is required")
	}
	if role != RoleAdmin && role != RoleUser {
		return fmt.Errorf("unknown role %q", role)
	}

	_, err := s.fs.Collection("roles").Doc(e).Set(ctx, map[string]any{
		"role":      role,
		"updatedAt": firestore.ServerTimestamp,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	return nil
}
