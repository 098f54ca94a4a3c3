package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/adinsights/internal/models"
	"github.com/adinsights/internal/store"
)

func init() {
	// Report JSON field names in validation errors.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// bindError converts a gin binding failure into a ValidationError.
func bindError(err error) *models.ValidationError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &models.ValidationError{Message: "invalid request body"}
	}

	fe := verrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", fe.Field())
	case "email":
		msg = fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "min":
		msg = fmt.Sprintf("%s must contain at least %s item(s)", fe.Field(), fe.Param())
	default:
		msg = fmt.Sprintf("%s is invalid", fe.Field())
	}
	return &models.ValidationError{Field: fe.Field(), Message: msg}
}

func badRequest(c *gin.Context, verr *models.ValidationError) {
	body := gin.H{"error": verr.Message}
	if verr.Field != "" {
		body["field"] = verr.Field
	}
	c.JSON(http.StatusBadRequest, body)
}

// respondError maps store errors to status codes. Anything unexpected is
// logged with the request and answered with a generic message.
func respondError(c *gin.Context, err error, notFound string) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
		return
	}
	c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
