package bootstrap

import (
	"time"

	"cloud.google.com/go/firestore"
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/walking-football-hub/wfh-backend/config"
	httpapi "github.com/walking-football-hub/wfh-backend/internal/api/http"
	apimw "github.com/walking-football-hub/wfh-backend/internal/api/http/middleware"
	"github.com/walking-football-hub/wfh-backend/internal/auth"
	authmw "github.com/walking-football-hub/wfh-backend/internal/auth/middleware"
	"github.com/walking-football-hub/wfh-backend/internal/mail"
	"github.com/walking-football-hub/wfh-backend/internal/programs"
	"github.com/walking-football-hub/wfh-backend/internal/publicapi"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	Cfg         *config.Config
	AuthClient  *fbauth.Client
	Firestore   *firestore.Client
	Redis       *redis.Client
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	cfg := dep.Cfg

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(apimw.RequestID())

	// Front-end origin CORS, incl. preflight for unmatched OPTIONS. The
	// public endpoints override the origin to wildcard themselves.
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORS.Origin},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.Redis)
	healthHandler.RegisterRoutes(r)

	repo := programs.NewRepo(dep.Firestore)
	roles := auth.NewRoleService(dep.Firestore, cfg.Jobs.AdminEmails)

	requireUser := authmw.FirebaseAuth(dep.AuthClient)
	adminOnly := authmw.RequireAdmin(roles)

	api := r.Group("/api/v1")
	api.Use(requireUser)
	programs.Register(api, repo, roles, adminOnly)
	auth.RegisterRoutes(api, roles, adminOnly)

	outbox := mail.NewFirestoreOutbox(dep.Firestore)
	sender := mail.NewSendGridSender(cfg.Mail.SendGridKey)
	dispatcher := mail.NewDispatcher(cfg.Mail, sender, outbox, repo)
	mail.RegisterCompat(r, dispatcher, requireUser)

	cache := publicapi.NewCache(dep.Redis, time.Duration(cfg.Public.CacheTTLSeconds)*time.Second)
	pub := publicapi.NewHandler(repo, cache)
	pub.Register(r, apimw.RateLimit(cfg.Public.RateRPS, cfg.Public.RateBurst))

	return r
}
