package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/he1237596/feed-service/internal/auth"
	"github.com/he1237596/feed-service/internal/regerr"
	"github.com/he1237596/feed-service/internal/storage"
	"github.com/he1237596/feed-service/internal/store"
)

// DownloadHandler serves /files/<name>/<version>. Scoped names contain a
// slash, so the version is split off the tail of the wildcard.
func DownloadHandler(st *store.Store, art *storage.Store, policy auth.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref := strings.Trim(c.Param("ref"), "/")
		ref = strings.TrimSuffix(strings.TrimSuffix(ref, ".tgz"), ".tar.gz")
		i := strings.LastIndex(ref, "/")
		if i <= 0 {
			respondErr(c, regerr.New(regerr.KindValidation, "want /files/<package>/<version>"))
			return
		}
		name, version := ref[:i], ref[i+1:]

		pkg, err := st.GetPackageByName(name)
		if err != nil {
			respondErr(c, err)
			return
		}
		claims := claimsFrom(c)
		if !policy.CanView(claims, pkg) {
			// Private packages stay invisible to outsiders.
			respondErr(c, regerr.New(regerr.KindNotFound, "package %s not found", name))
			return
		}
		v, err := st.GetVersion(pkg.ID, version)
		if err != nil {
			respondErr(c, err)
			return
		}

		digest, err := art.Digest(v.ArtifactPath)
		if err != nil {
			respondErr(c, err)
			return
		}
		if digest != v.Digest {
			respondErr(c, regerr.New(regerr.KindStorage, "digest mismatch for %s@%s", pkg.Name, v.Version))
			return
		}

		rc, size, err := art.Open(v.ArtifactPath)
		if err != nil {
			respondErr(c, err)
			return
		}
		defer rc.Close()

		// One event per stream start. Recording is best-effort and must
		// never hold up delivery.
		st.RecordDownload(v.ID, pkg.ID, v.Version, c.ClientIP(), c.GetHeader("User-Agent"))

		headers := map[string]string{
			"Content-Disposition": fmt.Sprintf(`attachment; filename=%q`, storage.Filename(pkg.Name, v.Version)),
		}
		c.DataFromReader(http.StatusOK, size, "application/gzip", rc, headers)
	}
}
