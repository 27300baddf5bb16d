package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bitescout/BiteScoutAPI/internal/access"
	"github.com/bitescout/BiteScoutAPI/internal/config"
	"github.com/bitescout/BiteScoutAPI/internal/db/dbtest"
	"github.com/bitescout/BiteScoutAPI/internal/notifications"
	"github.com/bitescout/BiteScoutAPI/internal/realtime"
	"github.com/bitescout/BiteScoutAPI/sdk/client"
)

func TestBuildEngineWiresRoutes(t *testing.T) {
	conn := dbtest.Open(t)
	cfg := config.Defaults()
	cfg.Server.Mode = "test"
	cfg.JWT.Secret = "app-secret"
	hub := realtime.NewHub()
	inbox := notifications.NewStore(conn)
	engine := buildEngine(cfg, conn, hub, access.NewService(conn, notifications.NewNotifier(inbox, hub)), inbox)

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/api/config", http.StatusOK},
		{http.MethodGet, "/api/me", http.StatusUnauthorized},
		{http.MethodGet, "/api/admin/settings", http.StatusUnauthorized},
		{http.MethodGet, "/notifications/u1", http.StatusUnauthorized},
		{http.MethodGet, "/missing", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != tc.want {
			t.Fatalf("%s %s = %d, want %d: %s", tc.method, tc.path, rec.Code, tc.want, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if !strings.Contains(rec.Body.String(), `"code":"RESOURCE_NOT_FOUND"`) {
		t.Fatalf("404 body = %s", rec.Body.String())
	}
}

func TestStartBackplaneWithoutRedisUsesHub(t *testing.T) {
	hub := realtime.NewHub()
	publisher, closeFn := startBackplane(context.Background(), config.RedisConfig{}, hub)
	defer closeFn()
	if publisher != notifications.Publisher(hub) {
		t.Fatalf("publisher = %T, want the local hub", publisher)
	}
}

func TestCreateUserRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	if _, err := CreateUser(ctx, config.AppConfig{}, CreateUserParams{Password: "long-enough"}); err == nil {
		t.Fatalf("expected missing username error")
	}
	if _, err := CreateUser(ctx, config.AppConfig{}, CreateUserParams{Username: "x", Password: "long-enough", Role: "chef"}); err == nil {
		t.Fatalf("expected invalid role error")
	}
}

func signupClient(t *testing.T, ctx context.Context, baseURL, username string) (*client.Client, client.User) {
	t.Helper()
	c, err := client.New(baseURL)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if _, err = c.Register(ctx, username, username+"@example.com", "correct-horse"); err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	user, err := c.Login(ctx, username, "correct-horse")
	if err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	return c, user
}

func TestGrantReachesLiveClientOverWebsocket(t *testing.T) {
	conn := dbtest.Open(t)
	cfg := config.Defaults()
	cfg.Server.Mode = "test"
	cfg.JWT.Secret = "app-secret"
	cfg.RateLimit.Enabled = false
	hub := realtime.NewHub()
	inbox := notifications.NewStore(conn)
	engine := buildEngine(cfg, conn, hub, access.NewService(conn, notifications.NewNotifier(inbox, hub)), inbox)
	srv := httptest.NewServer(engine)
	defer srv.Close()
	defer hub.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	owner, _ := signupClient(t, ctx, srv.URL, "owner")
	diner, dinerUser := signupClient(t, ctx, srv.URL, "diner")
	restaurant, err := owner.CreateRestaurant(ctx, "Casa Verde")
	if err != nil {
		t.Fatalf("create restaurant: %v", err)
	}

	store := client.NewStore(diner, dinerUser.ID)
	pushed := make(chan client.Notification, 4)
	stream := client.NewStream(diner, store, client.StreamConfig{
		OnNotification: func(n client.Notification) { pushed <- n },
	})
	streamCtx, stopStream := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- stream.Run(streamCtx) }()
	defer func() {
		stopStream()
		<-done
	}()

	deadline := time.Now().Add(5 * time.Second)
	for hub.Count(dinerUser.ID) != 1 || store.Err() != nil {
		if time.Now().After(deadline) {
			t.Fatalf("stream never connected: count=%d err=%v", hub.Count(dinerUser.ID), store.Err())
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Requested after the store loaded, so only the push can tell it about the grant.
	rec, err := diner.RequestAccess(ctx, restaurant.ID, dinerUser.ID, "")
	if err != nil {
		t.Fatalf("request access: %v", err)
	}
	if store.Gate(restaurant.ID) {
		t.Fatalf("gate open before grant")
	}
	if _, err = owner.GrantAccess(ctx, rec.ID); err != nil {
		t.Fatalf("grant: %v", err)
	}

	select {
	case n := <-pushed:
		if n.Title != "Access granted" {
			t.Fatalf("pushed = %+v", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("grant notification never pushed")
	}
	if !store.Gate(restaurant.ID) {
		t.Fatalf("gate still closed after grant push; records = %+v", store.AccessRecords())
	}
	if store.UnreadCount() != 1 {
		t.Fatalf("unread = %d, want 1", store.UnreadCount())
	}
}
