// Package respond writes API errors as the uniform JSON envelope.
package respond

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/bitescout/BiteScoutAPI/internal/apierror"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}

// Error aborts the request with err rendered as an envelope. Internal causes
// are logged and never sent to the client.
func Error(c *gin.Context, err error) {
	apiErr := apierror.From(err)
	if apiErr.Code == apierror.CodeInternal {
		log.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
	}
	c.AbortWithStatusJSON(apiErr.Code.HTTPStatus(), apierror.NewEnvelope(apiErr, c.Request.URL.Path, time.Now()))
}

// BindError renders a request binding failure as VALIDATION_ERROR with per-field details.
func BindError(c *gin.Context, err error) {
	Error(c, Validation(err))
}

// Validation converts a binding error into a validation error.
func Validation(err error) *apierror.Error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			rule := fe.Tag()
			if fe.Param() != "" {
				rule += "=" + fe.Param()
			}
			details[fe.Field()] = rule
		}
		return apierror.Validation("request validation failed", details)
	}
	return apierror.Validation("invalid json", nil)
}
