package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/he1237596/feed-service/internal/auth"
	"github.com/he1237596/feed-service/internal/feed"
	"github.com/he1237596/feed-service/internal/models"
	"github.com/he1237596/feed-service/internal/regerr"
	"github.com/he1237596/feed-service/internal/store"
)

// versionForMutation loads the version and its package and checks the
// mutation policy in one go.
func versionForMutation(c *gin.Context, st *store.Store, policy auth.Policy) (*models.Version, *models.Package, bool) {
	id, ok := pathID(c, "id")
	if !ok {
		return nil, nil, false
	}
	v, err := st.GetVersionByID(id)
	if err != nil {
		respondErr(c, err)
		return nil, nil, false
	}
	pkg, err := st.GetPackageByID(v.PackageID)
	if err != nil {
		respondErr(c, err)
		return nil, nil, false
	}
	if !policy.CanMutate(claimsFrom(c), pkg) {
		respondErr(c, regerr.New(regerr.KindPermission, "not an owner of %s", pkg.Name))
		return nil, nil, false
	}
	return v, pkg, true
}

func DeprecateVersionHandler(st *store.Store, feeds *feed.Synthesizer, policy auth.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, pkg, ok := versionForMutation(c, st, policy)
		if !ok {
			return
		}
		var req struct {
			Deprecated *bool `json:"deprecated" binding:"required"`
		}
		if err := c.BindJSON(&req); err != nil {
			respondErr(c, regerr.Wrap(regerr.KindValidation, err, "bad request body"))
			return
		}
		if err := st.SetDeprecated(v.ID, *req.Deprecated); err != nil {
			respondErr(c, err)
			return
		}
		feeds.Invalidate(pkg.Name)
		c.JSON(http.StatusOK, gin.H{"version": v.Version, "deprecated": *req.Deprecated})
	}
}

func PromoteVersionHandler(st *store.Store, feeds *feed.Synthesizer, policy auth.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, pkg, ok := versionForMutation(c, st, policy)
		if !ok {
			return
		}
		if err := st.PromoteToLatest(v.ID); err != nil {
			respondErr(c, err)
			return
		}
		feeds.Invalidate(pkg.Name)
		c.JSON(http.StatusOK, gin.H{"version": v.Version, "latest": true})
	}
}

func DeleteVersionHandler(st *store.Store, feeds *feed.Synthesizer, policy auth.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, pkg, ok := versionForMutation(c, st, policy)
		if !ok {
			return
		}
		if err := st.DeleteVersion(v.ID); err != nil {
			respondErr(c, err)
			return
		}
		feeds.Invalidate(pkg.Name)
		c.JSON(http.StatusOK, gin.H{"status": "deleted", "version": v.Version})
	}
}
