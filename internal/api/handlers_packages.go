package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/he1237596/feed-service/internal/auth"
	"github.com/he1237596/feed-service/internal/feed"
	"github.com/he1237596/feed-service/internal/regerr"
	"github.com/he1237596/feed-service/internal/store"
)

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		respondErr(c, regerr.New(regerr.KindValidation, "invalid %s", name))
		return 0, false
	}
	return id, true
}

func ListPackagesHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := claimsFrom(c)
		var viewerID int64
		admin := false
		if claims != nil {
			viewerID = claims.UserID
			admin = claims.Role == "admin"
		}
		pkgs, err := st.ListVisible(viewerID, admin)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"packages": pkgs})
	}
}

func GetPackageHandler(st *store.Store, policy auth.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		pkg, err := st.GetPackageByID(id)
		if err != nil {
			respondErr(c, err)
			return
		}
		if !policy.CanView(claimsFrom(c), pkg) {
			respondErr(c, regerr.New(regerr.KindNotFound, "package %d not found", id))
			return
		}
		vs, err := st.ListVersions(pkg.ID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"package": pkg, "versions": vs})
	}
}

func UpdatePackageHandler(st *store.Store, feeds *feed.Synthesizer, policy auth.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		pkg, err := st.GetPackageByID(id)
		if err != nil {
			respondErr(c, err)
			return
		}
		if !policy.CanMutate(claimsFrom(c), pkg) {
			respondErr(c, regerr.New(regerr.KindPermission, "not an owner of %s", pkg.Name))
			return
		}
		var req struct {
			Description *string `json:"description"`
			Public      *bool   `json:"public"`
		}
		if err := c.BindJSON(&req); err != nil {
			respondErr(c, regerr.Wrap(regerr.KindValidation, err, "bad request body"))
			return
		}
		if err := st.UpdatePackage(id, req.Description, req.Public); err != nil {
			respondErr(c, err)
			return
		}
		feeds.Invalidate(pkg.Name)
		c.JSON(http.StatusOK, gin.H{"status": "updated"})
	}
}

func DeletePackageHandler(st *store.Store, feeds *feed.Synthesizer, policy auth.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		pkg, err := st.GetPackageByID(id)
		if err != nil {
			respondErr(c, err)
			return
		}
		if !policy.CanMutate(claimsFrom(c), pkg) {
			respondErr(c, regerr.New(regerr.KindPermission, "not an owner of %s", pkg.Name))
			return
		}
		if err := st.DeletePackage(id); err != nil {
			respondErr(c, err)
			return
		}
		feeds.Invalidate(pkg.Name)
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	}
}

func PackageStatsHandler(st *store.Store, policy auth.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		pkg, err := st.GetPackageByID(id)
		if err != nil {
			respondErr(c, err)
			return
		}
		if !policy.CanView(claimsFrom(c), pkg) {
			respondErr(c, regerr.New(regerr.KindNotFound, "package %d not found", id))
			return
		}
		stats, err := st.PackageStats(id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"package": pkg.Name, "downloads": stats})
	}
}

// PackageDownloadsHandler lists recent download events for owners
// debugging their publishing pipeline.
func PackageDownloadsHandler(st *store.Store, policy auth.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		pkg, err := st.GetPackageByID(id)
		if err != nil {
			respondErr(c, err)
			return
		}
		if !policy.CanMutate(claimsFrom(c), pkg) {
			respondErr(c, regerr.New(regerr.KindPermission, "not an owner of %s", pkg.Name))
			return
		}
		limit := 100
		if q := c.Query("limit"); q != "" {
			if n, err := strconv.Atoi(q); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		events, err := st.ListDownloads(id, limit)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"package": pkg.Name, "events": events})
	}
}

func TotalStatsHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := st.TotalDownloads()
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"total_downloads": n})
	}
}
