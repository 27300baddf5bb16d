package respond

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bitescout/BiteScoutAPI/internal/apierror"
	"github.com/gin-gonic/gin"
)

type createBody struct {
	UserID string `json:"userId" binding:"required"`
	Role   string `json:"role" binding:"omitempty,oneof=guest user moderator"`
}

func serve(t *testing.T, handler gin.HandlerFunc, body string) (*httptest.ResponseRecorder, apierror.Envelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/things", handler)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/things", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	var env apierror.Envelope
	if rec.Code >= 400 {
		if errUnmarshal := json.Unmarshal(rec.Body.Bytes(), &env); errUnmarshal != nil {
			t.Fatalf("decode envelope: %v (%s)", errUnmarshal, rec.Body.String())
		}
	}
	return rec, env
}

func TestBindErrorReportsJSONFieldNames(t *testing.T) {
	rec, env := serve(t, func(c *gin.Context) {
		var body createBody
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			BindError(c, errBind)
			return
		}
		c.Status(http.StatusNoContent)
	}, `{"role":"owner"}`)

	if rec.Code != http.StatusBadRequest || env.Code != apierror.CodeValidation {
		t.Fatalf("status = %d code = %s", rec.Code, env.Code)
	}
	if env.Path != "/things" || env.Timestamp.IsZero() {
		t.Fatalf("envelope = %+v", env)
	}
	details, ok := env.Details.(map[string]any)
	if !ok {
		t.Fatalf("details = %#v", env.Details)
	}
	if details["userId"] != "required" || details["role"] != "oneof=guest user moderator" {
		t.Fatalf("details = %v", details)
	}
}

func TestBindErrorMalformedJSON(t *testing.T) {
	rec, env := serve(t, func(c *gin.Context) {
		var body createBody
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			BindError(c, errBind)
			return
		}
		c.Status(http.StatusNoContent)
	}, `{`)
	if rec.Code != http.StatusBadRequest || env.Message != "invalid json" {
		t.Fatalf("status = %d envelope = %+v", rec.Code, env)
	}
}

func TestErrorHidesInternalCause(t *testing.T) {
	rec, env := serve(t, func(c *gin.Context) {
		Error(c, apierror.Internal("list failed", errSecret))
	}, `{}`)
	if rec.Code != http.StatusInternalServerError || env.Code != apierror.CodeInternal {
		t.Fatalf("status = %d code = %s", rec.Code, env.Code)
	}
	if strings.Contains(rec.Body.String(), errSecret.Error()) {
		t.Fatalf("internal cause leaked: %s", rec.Body.String())
	}
}

var errSecret = &secretErr{}

type secretErr struct{}

func (*secretErr) Error() string { return "password=hunter2" }
