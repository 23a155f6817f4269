package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/he1237596/feed-service/internal/auth"
	"github.com/he1237596/feed-service/internal/feed"
	"github.com/he1237596/feed-service/internal/models"
	"github.com/he1237596/feed-service/internal/regerr"
	"github.com/he1237596/feed-service/internal/store"
)

func CompactFeedHandler(feeds *feed.Synthesizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := claimsFrom(c)
		var viewerID int64
		admin := false
		if claims != nil {
			viewerID = claims.UserID
			admin = claims.Role == "admin"
		}
		items, err := feeds.Compact(viewerID, admin)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

// visiblePackage resolves the wildcard name param and applies the view
// policy, hiding private packages behind a not-found.
func visiblePackage(c *gin.Context, st *store.Store, policy auth.Policy) (*models.Package, bool) {
	name := strings.Trim(c.Param("name"), "/")
	pkg, err := st.GetPackageByName(name)
	if err != nil {
		respondErr(c, err)
		return nil, false
	}
	if !policy.CanView(claimsFrom(c), pkg) {
		respondErr(c, regerr.New(regerr.KindNotFound, "package %s not found", name))
		return nil, false
	}
	return pkg, true
}

func DetailedFeedHandler(st *store.Store, feeds *feed.Synthesizer, policy auth.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		pkg, ok := visiblePackage(c, st, policy)
		if !ok {
			return
		}
		d, err := feeds.Detailed(pkg)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

func NPMDocHandler(st *store.Store, feeds *feed.Synthesizer, policy auth.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		pkg, ok := visiblePackage(c, st, policy)
		if !ok {
			return
		}
		doc, err := feeds.NPM(pkg)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}
