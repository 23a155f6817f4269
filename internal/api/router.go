package api

import (
	"github.com/gin-gonic/gin"

	"github.com/he1237596/feed-service/internal/auth"
	"github.com/he1237596/feed-service/internal/extract"
	"github.com/he1237596/feed-service/internal/feed"
	"github.com/he1237596/feed-service/internal/storage"
	"github.com/he1237596/feed-service/internal/store"
)

type Deps struct {
	Store      *store.Store
	Artifacts  *storage.Store
	Extractor  *extract.Extractor
	Feeds      *feed.Synthesizer
	Policy     auth.Policy
	SigningKey []byte
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.Default()
	r.Use(AuthMiddleware(d.SigningKey))

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })

	r.POST("/register", RegisterHandler(d.Store))
	r.POST("/login", LoginHandler(d.Store, d.SigningKey))

	// feeds
	r.GET("/api/v1/feed", CompactFeedHandler(d.Feeds))
	r.GET("/api/v1/feed/*name", DetailedFeedHandler(d.Store, d.Feeds, d.Policy))
	r.GET("/api/v1/npm/*name", NPMDocHandler(d.Store, d.Feeds, d.Policy))

	// uploads: /pilet expects a manifest, /push synthesizes one when the
	// tarball carries none (CLI-friendly path)
	r.POST("/api/v1/pilet", RequireScope(auth.ScopePublish),
		UploadHandler(d.Store, d.Artifacts, d.Extractor, d.Feeds, d.Policy, extract.Strict))
	r.POST("/api/v1/push", RequireScope(auth.ScopePublish),
		UploadHandler(d.Store, d.Artifacts, d.Extractor, d.Feeds, d.Policy, extract.Lenient))

	// downloads
	r.GET("/files/*ref", DownloadHandler(d.Store, d.Artifacts, d.Policy))

	// packages
	r.GET("/api/v1/packages", ListPackagesHandler(d.Store))
	r.GET("/api/v1/packages/:id", GetPackageHandler(d.Store, d.Policy))
	r.PUT("/api/v1/packages/:id", RequireScope(auth.ScopePublish), UpdatePackageHandler(d.Store, d.Feeds, d.Policy))
	r.DELETE("/api/v1/packages/:id", RequireScope(auth.ScopePublish), DeletePackageHandler(d.Store, d.Feeds, d.Policy))
	r.GET("/api/v1/packages/:id/stats", PackageStatsHandler(d.Store, d.Policy))
	r.GET("/api/v1/packages/:id/downloads", RequireScope(auth.ScopeRead), PackageDownloadsHandler(d.Store, d.Policy))

	// versions
	r.POST("/api/v1/versions/:id/deprecate", RequireScope(auth.ScopePublish), DeprecateVersionHandler(d.Store, d.Feeds, d.Policy))
	r.POST("/api/v1/versions/:id/promote", RequireScope(auth.ScopePublish), PromoteVersionHandler(d.Store, d.Feeds, d.Policy))
	r.DELETE("/api/v1/versions/:id", RequireScope(auth.ScopePublish), DeleteVersionHandler(d.Store, d.Feeds, d.Policy))

	// stats
	r.GET("/api/v1/stats", TotalStatsHandler(d.Store))

	return r
}
