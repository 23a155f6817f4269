package api

import (
	"log"
	"mime/multipart"
	"net/http"

	"github.com/Masterminds/semver/v3"
	"github.com/gin-gonic/gin"

	"github.com/he1237596/feed-service/internal/auth"
	"github.com/he1237596/feed-service/internal/extract"
	"github.com/he1237596/feed-service/internal/feed"
	"github.com/he1237596/feed-service/internal/models"
	"github.com/he1237596/feed-service/internal/regerr"
	"github.com/he1237596/feed-service/internal/storage"
	"github.com/he1237596/feed-service/internal/store"
)

// Publishing tools historically disagree on the multipart field name, so
// both are tried in order and the first structural hit wins.
var uploadFields = []string{"file", "pilet"}

func formFile(c *gin.Context) (*multipart.FileHeader, error) {
	var lastErr error
	for _, field := range uploadFields {
		fh, err := c.FormFile(field)
		if err == nil {
			return fh, nil
		}
		lastErr = err
	}
	return nil, regerr.Wrap(regerr.KindValidation, lastErr, "no file field in upload (tried %v)", uploadFields)
}

// freshIntent reports an explicit fresh-publish signal: query flag, body
// flag or dedicated header. Nothing is inferred from client identity.
func freshIntent(c *gin.Context) bool {
	for _, v := range []string{c.Query("fresh"), c.PostForm("fresh"), c.GetHeader("X-Fresh-Publish")} {
		if v == "true" || v == "1" {
			return true
		}
	}
	return false
}

// UploadHandler runs the whole upload pipeline: persist bytes, extract
// metadata, find-or-create the package, record the version. Every
// failure after the artifact hits disk removes it again before the
// error goes out.
func UploadHandler(st *store.Store, art *storage.Store, ex *extract.Extractor, feeds *feed.Synthesizer, policy auth.Policy, mode extract.Mode) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := claimsFrom(c)

		fh, err := formFile(c)
		if err != nil {
			respondErr(c, err)
			return
		}
		ext, err := art.Ext(fh.Filename)
		if err != nil {
			respondErr(c, err)
			return
		}
		f, err := fh.Open()
		if err != nil {
			respondErr(c, regerr.Wrap(regerr.KindValidation, err, "open upload"))
			return
		}
		defer f.Close()

		path, size, digest, err := art.Store(f, ext)
		if err != nil {
			respondErr(c, err)
			return
		}
		rollback := func(cause error) {
			if rmErr := art.Remove(path); rmErr != nil {
				log.Printf("upload rollback: %v", rmErr)
			}
			respondErr(c, cause)
		}

		m, err := ex.Extract(c.Request.Context(), path, mode)
		if err != nil {
			rollback(err)
			return
		}
		if _, err := semver.NewVersion(m.Version); err != nil {
			rollback(regerr.New(regerr.KindValidation, "invalid version %q", m.Version))
			return
		}
		name, err := store.NormalizeName(m.Name)
		if err != nil {
			rollback(err)
			return
		}

		pkg, err := st.GetPackageByName(name)
		switch {
		case err == nil:
			if !policy.CanMutate(claims, pkg) {
				rollback(regerr.New(regerr.KindPermission, "not an owner of %s", name))
				return
			}
		case regerr.IsKind(err, regerr.KindNotFound):
			pkg = &models.Package{Name: name, Description: m.Description, Author: claims.Username, CreatedBy: claims.UserID, Public: true}
			if err := st.CreatePackage(pkg); err != nil {
				rollback(err)
				return
			}
		default:
			rollback(err)
			return
		}

		v := &models.Version{
			PackageID:    pkg.ID,
			Version:      m.Version,
			ArtifactPath: path,
			FileSize:     size,
			Digest:       digest,
		}
		if freshIntent(c) {
			err = st.FreshPublish(v)
		} else {
			err = st.CreateVersion(v)
		}
		if err != nil {
			rollback(err)
			return
		}

		feeds.Invalidate(name)
		log.Printf("published %s@%s (%d bytes) by %s", name, v.Version, size, claims.Username)
		c.JSON(http.StatusCreated, gin.H{
			"name":    name,
			"version": v.Version,
			"digest":  digest,
			"size":    size,
		})
	}
}
