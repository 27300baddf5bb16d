package front

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bitescout/BiteScoutAPI/internal/access"
	"github.com/bitescout/BiteScoutAPI/internal/apierror"
	"github.com/bitescout/BiteScoutAPI/internal/config"
	"github.com/bitescout/BiteScoutAPI/internal/db/dbtest"
	"github.com/bitescout/BiteScoutAPI/internal/models"
	"github.com/bitescout/BiteScoutAPI/internal/notifications"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type testEnv struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := dbtest.Open(t)
	inbox := notifications.NewStore(db)
	svc := access.NewService(db, notifications.NewNotifier(inbox, nil))
	router := gin.New()
	RegisterFrontRoutes(router, Deps{
		DB:            db,
		JWT:           config.JWTConfig{Secret: "front-secret", Issuer: "bitescout", Expiry: time.Hour},
		Access:        svc,
		Notifications: inbox,
	})
	return &testEnv{t: t, db: db, router: router}
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			e.t.Fatalf("marshal body: %v", errMarshal)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) decode(rec *httptest.ResponseRecorder, out any) {
	e.t.Helper()
	if errUnmarshal := json.Unmarshal(rec.Body.Bytes(), out); errUnmarshal != nil {
		e.t.Fatalf("decode %s: %v", rec.Body.String(), errUnmarshal)
	}
}

func (e *testEnv) expectError(rec *httptest.ResponseRecorder, status int, code apierror.Code) apierror.Envelope {
	e.t.Helper()
	if rec.Code != status {
		e.t.Fatalf("status = %d, want %d: %s", rec.Code, status, rec.Body.String())
	}
	var env apierror.Envelope
	e.decode(rec, &env)
	if env.Code != code {
		e.t.Fatalf("code = %s, want %s", env.Code, code)
	}
	return env
}

// signup registers and logs in a user, returning its id and token.
func (e *testEnv) signup(username string) (string, string) {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct-horse",
	})
	if rec.Code != http.StatusCreated {
		e.t.Fatalf("register %s: %d %s", username, rec.Code, rec.Body.String())
	}
	rec = e.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": username, "password": "correct-horse"})
	if rec.Code != http.StatusOK {
		e.t.Fatalf("login %s: %d %s", username, rec.Code, rec.Body.String())
	}
	var out struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	e.decode(rec, &out)
	return out.User.ID, out.Token
}

func (e *testEnv) createRestaurant(token, name string) models.Restaurant {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/restaurants", token, map[string]string{"name": name})
	if rec.Code != http.StatusCreated {
		e.t.Fatalf("create restaurant: %d %s", rec.Code, rec.Body.String())
	}
	var row models.Restaurant
	e.decode(rec, &row)
	return row
}

func TestAccessWorkflowOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	ownerID, ownerToken := env.signup("owner")
	userID, userToken := env.signup("diner")
	_, strangerToken := env.signup("stranger")
	restaurant := env.createRestaurant(ownerToken, "Casa Verde")

	rec := env.do(http.MethodPost, "/restaurant-access/"+restaurant.ID, userToken, map[string]string{"userId": userID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("request access: %d %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Message          string                  `json:"message"`
		RestaurantAccess models.RestaurantAccess `json:"restaurantAccess"`
	}
	env.decode(rec, &created)
	if created.RestaurantAccess.Status != models.AccessStatusPending || created.Message == "" {
		t.Fatalf("created = %+v", created)
	}
	accessID := created.RestaurantAccess.ID

	rec = env.do(http.MethodGet, "/notifications/"+ownerID, ownerToken, nil)
	var ownerInbox []models.Notification
	env.decode(rec, &ownerInbox)
	if len(ownerInbox) != 1 || ownerInbox[0].IsRead {
		t.Fatalf("owner inbox = %+v", ownerInbox)
	}

	env.expectError(env.do(http.MethodPatch, "/restaurant-access/access/"+accessID+"/grant", strangerToken, nil), http.StatusForbidden, apierror.CodeAuthorization)

	rec = env.do(http.MethodPatch, "/restaurant-access/access/"+accessID+"/grant", ownerToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("grant: %d %s", rec.Code, rec.Body.String())
	}
	var granted struct {
		AccessRecord models.RestaurantAccess `json:"accessRecord"`
	}
	env.decode(rec, &granted)
	if granted.AccessRecord.Status != models.AccessStatusApproved {
		t.Fatalf("granted = %+v", granted.AccessRecord)
	}

	conflict := env.expectError(env.do(http.MethodPatch, "/restaurant-access/access/"+accessID+"/grant", ownerToken, nil), http.StatusConflict, apierror.CodeConflict)
	if conflict.Path != "/restaurant-access/access/"+accessID+"/grant" {
		t.Fatalf("envelope path = %q", conflict.Path)
	}

	rec = env.do(http.MethodPatch, "/restaurant-access/access/"+accessID+"/update", ownerToken, map[string]string{"role": "moderator"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodGet, "/restaurant-access/user/"+userID, userToken, nil)
	var listed struct {
		RestaurantAccesses []models.RestaurantAccess `json:"restaurantAccesses"`
	}
	env.decode(rec, &listed)
	if len(listed.RestaurantAccesses) != 1 || listed.RestaurantAccesses[0].Role != models.RoleModerator {
		t.Fatalf("listed = %+v", listed)
	}
	env.expectError(env.do(http.MethodGet, "/restaurant-access/user/"+userID, strangerToken, nil), http.StatusForbidden, apierror.CodeAuthorization)

	rec = env.do(http.MethodGet, "/restaurant-access/owner/"+ownerID, ownerToken, nil)
	env.decode(rec, &listed)
	if len(listed.RestaurantAccesses) != 1 {
		t.Fatalf("owner listing = %+v", listed)
	}

	rec = env.do(http.MethodPatch, "/restaurant-access/access/"+accessID+"/delete", ownerToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRequestAccessValidationAndNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.signup("owner")
	userID, userToken := env.signup("diner")
	restaurant := env.createRestaurant(ownerToken, "Casa Verde")

	bad := env.expectError(env.do(http.MethodPost, "/restaurant-access/"+restaurant.ID, userToken, map[string]string{}), http.StatusBadRequest, apierror.CodeValidation)
	details, ok := bad.Details.(map[string]any)
	if !ok || details["userId"] != "required" {
		t.Fatalf("details = %#v", bad.Details)
	}
	env.expectError(env.do(http.MethodPost, "/restaurant-access/missing", userToken, map[string]string{"userId": userID}), http.StatusNotFound, apierror.CodeNotFound)
	env.expectError(env.do(http.MethodPatch, "/restaurant-access/access/missing/grant", ownerToken, nil), http.StatusNotFound, apierror.CodeNotFound)
	env.expectError(env.do(http.MethodPost, "/restaurant-access/"+restaurant.ID, "", map[string]string{"userId": userID}), http.StatusUnauthorized, apierror.CodeAuthentication)

	if rec := env.do(http.MethodPost, "/restaurant-access/"+restaurant.ID, userToken, map[string]string{"userId": userID}); rec.Code != http.StatusCreated {
		t.Fatalf("first request: %d", rec.Code)
	}
	env.expectError(env.do(http.MethodPost, "/restaurant-access/"+restaurant.ID, userToken, map[string]string{"userId": userID}), http.StatusConflict, apierror.CodeConflict)
}

func TestNotificationEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ownerID, ownerToken := env.signup("owner")
	_, otherToken := env.signup("other")
	restaurant := env.createRestaurant(ownerToken, "Casa Verde")
	for _, name := range []string{"a", "b"} {
		userID, token := env.signup("diner-" + name)
		if rec := env.do(http.MethodPost, "/restaurant-access/"+restaurant.ID, token, map[string]string{"userId": userID}); rec.Code != http.StatusCreated {
			t.Fatalf("request: %d %s", rec.Code, rec.Body.String())
		}
	}

	rec := env.do(http.MethodGet, "/notifications/"+ownerID+"?limit=1", ownerToken, nil)
	var page []models.Notification
	env.decode(rec, &page)
	if len(page) != 1 {
		t.Fatalf("limited page = %d", len(page))
	}
	env.expectError(env.do(http.MethodGet, "/notifications/"+ownerID+"?limit=x", ownerToken, nil), http.StatusBadRequest, apierror.CodeValidation)
	env.expectError(env.do(http.MethodGet, "/notifications/"+ownerID, otherToken, nil), http.StatusForbidden, apierror.CodeAuthorization)

	env.expectError(env.do(http.MethodPatch, "/notifications/"+ownerID+"/"+page[0].ID+"/read", otherToken, nil), http.StatusForbidden, apierror.CodeAuthorization)
	rec = env.do(http.MethodPatch, "/notifications/"+ownerID+"/"+page[0].ID+"/read", ownerToken, nil)
	var read models.Notification
	env.decode(rec, &read)
	if rec.Code != http.StatusOK || !read.IsRead {
		t.Fatalf("mark read: %d %+v", rec.Code, read)
	}

	rec = env.do(http.MethodGet, "/notifications/"+ownerID+"?unread=true", ownerToken, nil)
	env.decode(rec, &page)
	if len(page) != 1 {
		t.Fatalf("unread = %d, want 1", len(page))
	}

	var all struct {
		Count int64 `json:"count"`
	}
	env.decode(env.do(http.MethodGet, "/notifications/"+ownerID+"/unread-count", ownerToken, nil), &all)
	if all.Count != 1 {
		t.Fatalf("unread-count = %d, want 1", all.Count)
	}
	env.expectError(env.do(http.MethodGet, "/notifications/"+ownerID+"/unread-count", otherToken, nil), http.StatusForbidden, apierror.CodeAuthorization)

	env.decode(env.do(http.MethodPatch, "/notifications/"+ownerID+"/read-all", ownerToken, nil), &all)
	if all.Count != 1 {
		t.Fatalf("read-all count = %d, want 1", all.Count)
	}
	env.decode(env.do(http.MethodPatch, "/notifications/"+ownerID+"/read-all", ownerToken, nil), &all)
	if all.Count != 0 {
		t.Fatalf("second read-all count = %d, want 0", all.Count)
	}
}

func TestAuthAndRestaurantDirectory(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signup("owner")

	env.expectError(env.do(http.MethodPost, "/api/auth/register", "", map[string]string{"username": "owner", "password": "correct-horse"}), http.StatusConflict, apierror.CodeConflict)
	env.expectError(env.do(http.MethodPost, "/api/auth/register", "", map[string]string{"username": "shorty", "password": "short"}), http.StatusBadRequest, apierror.CodeValidation)
	env.expectError(env.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "owner", "password": "wrong-horse"}), http.StatusUnauthorized, apierror.CodeAuthentication)

	rec := env.do(http.MethodGet, "/api/me", token, nil)
	if rec.Code != http.StatusOK || bytes.Contains(rec.Body.Bytes(), []byte("password")) {
		t.Fatalf("me: %d %s", rec.Code, rec.Body.String())
	}

	env.createRestaurant(token, "Casa Verde")
	env.createRestaurant(token, "Blue Door")
	var listed struct {
		Restaurants []models.Restaurant `json:"restaurants"`
	}
	env.decode(env.do(http.MethodGet, "/api/restaurants?keyword=VERDE", token, nil), &listed)
	if len(listed.Restaurants) != 1 || listed.Restaurants[0].Name != "Casa Verde" {
		t.Fatalf("keyword search = %+v", listed.Restaurants)
	}
	env.expectError(env.do(http.MethodGet, "/api/restaurants/missing", token, nil), http.StatusNotFound, apierror.CodeNotFound)

	rec = env.do(http.MethodGet, "/api/config", "", nil)
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte("siteName")) {
		t.Fatalf("config: %d %s", rec.Code, rec.Body.String())
	}
	if rec = env.do(http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
}
