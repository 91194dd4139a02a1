package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apperrors "moneta/internal/errors"
	"moneta/internal/logger"
)

// ErrorHandler returns a Gin middleware that converts errors set on the Gin
// context into the `{success:false, message}` envelope. Validation errors
// become a 400 listing every violated field; AppErrors carry their own
// status; anything else is logged and returned as a generic 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		var valErr *apperrors.ValidationError
		if errors.As(err, &valErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": valErr.Error(),
				"fields":  valErr.Fields(),
			})
			return
		}

		var bindErrs validator.ValidationErrors
		if errors.As(err, &bindErrs) {
			fields := make([]string, len(bindErrs))
			for i, fe := range bindErrs {
				fields[i] = fe.Field()
			}
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "validation failed: " + strings.Join(fields, ", "),
				"fields":  fields,
			})
			return
		}

		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			if appErr.Internal != nil {
				logger.Get().Errorw("app error",
					"code", appErr.Code,
					"message", appErr.Message,
					"internal", appErr.Internal.Error(),
					"path", c.Request.URL.Path,
				)
			}
			c.JSON(appErr.StatusCode, gin.H{
				"success": false,
				"message": appErr.Message,
			})
			return
		}

		logger.Get().Errorw("unexpected error",
			"error", err.Error(),
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": apperrors.ErrInternal.Message,
		})
	}
}
