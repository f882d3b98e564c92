package api

import (
	"errors"
	"io"
	"net/http"

	"storefront/internal/apperr"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError writes err in the {"error", "details"} shape. Untyped errors
// are Internal and their text never reaches the client.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	meta := apperr.MetadataFor(kind)

	body := gin.H{"error": meta.PublicMessage}
	if typed := apperr.As(err); typed != nil && meta.DetailsAllowed {
		body["details"] = typed.Message()
	}

	if kind == apperr.KindInternal || kind == apperr.KindExternalService {
		util.ContextLogger(c.Request.Context()).Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}

	c.AbortWithStatusJSON(meta.HTTPStatus, body)
}

// badRequest reports a binding failure.
func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}

func invalidParam(c *gin.Context, name string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid " + name,
		"details": name + " must be a positive integer",
	})
}

// bindOptionalJSON binds the body into obj; only an empty body is allowed to
// leave obj at its zero value. Content-Length is not consulted because
// chunked requests report it as -1.
func bindOptionalJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
