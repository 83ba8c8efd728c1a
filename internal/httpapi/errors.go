// Package httpapi exposes the UniFlow REST surface: auth, profile, health,
// and metrics routes over Gin.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/uniflowhq/uniflow/internal/apperr"
	"go.uber.org/zap"
)

// errorBody is the wire shape of every failure response.
type errorBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

// kindStatus maps a domain error kind to its HTTP status and error name.
func kindStatus(kind apperr.Kind) (int, string) {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest, "ValidationError"
	case apperr.KindAuthentication:
		return http.StatusUnauthorized, "AuthenticationError"
	case apperr.KindAuthorization:
		return http.StatusForbidden, "AuthorizationError"
	case apperr.KindNotFound:
		return http.StatusNotFound, "NotFoundError"
	case apperr.KindConflict:
		return http.StatusConflict, "ConflictError"
	default:
		return http.StatusInternalServerError, "InternalServerError"
	}
}

// writeError translates a service failure into the JSON error envelope.
// Untyped errors become a generic 500: internal detail is logged, never sent.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	status, name := kindStatus(kind)

	message := apperr.MessageOf(err)
	if kind == apperr.KindUnknown || message == "" {
		logger.Error("unhandled error",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		message = "An unexpected error occurred"
	}

	c.JSON(status, errorBody{Error: name, Message: message, StatusCode: status})
}

// writeValidation responds with a 400 ValidationError for malformed requests.
func writeValidation(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorBody{
		Error:      "ValidationError",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	})
}
