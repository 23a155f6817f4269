package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/he1237596/feed-service/internal/regerr"
)

// respondErr maps the core error taxonomy onto HTTP. Conflict responses
// name the conflicting version so the client can retry with
// fresh-publish if it means it.
func respondErr(c *gin.Context, err error) {
	kind := regerr.KindOf(err)
	body := gin.H{"error": err.Error(), "kind": string(kind)}
	var e *regerr.Error
	if errors.As(err, &e) && e.ConflictingVersion != "" {
		body["conflicting_version"] = e.ConflictingVersion
	}
	status := http.StatusInternalServerError
	switch kind {
	case regerr.KindNotFound:
		status = http.StatusNotFound
	case regerr.KindConflict:
		status = http.StatusConflict
	case regerr.KindPermission:
		status = http.StatusForbidden
	case regerr.KindValidation:
		status = http.StatusBadRequest
	case regerr.KindExtraction:
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, body)
}
