package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestClientDecodesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"CONFLICT_ERROR","message":"transition not allowed","timestamp":"2026-05-01T09:00:00Z","path":"` + r.URL.Path + `"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithToken("tok"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = c.GrantAccess(context.Background(), "a1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Code != CodeConflict || apiErr.Path != "/restaurant-access/access/a1/grant" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
	if !IsCode(err, CodeConflict) || IsCode(err, CodeNotFound) {
		t.Fatalf("IsCode mismatch for %v", err)
	}
}

func TestClientFallsBackWhenBodyIsNotAnEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gateway down", http.StatusForbidden)
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	if _, err := c.Me(context.Background()); !IsCode(err, CodeAuthorization) {
		t.Fatalf("err = %v, want AUTHORIZATION_ERROR", err)
	}
}

func TestLoginStoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "diner" {
			t.Errorf("username = %q", body["username"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "issued", "user": map[string]string{"id": "u1", "username": "diner"}})
	}))
	defer srv.Close()

	c, _ := New(srv.URL + "/")
	user, err := c.Login(context.Background(), "diner", "secret-pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != "u1" || c.Token() != "issued" {
		t.Fatalf("user=%+v token=%q", user, c.Token())
	}
}

func TestNewRejectsNonHTTPBaseURL(t *testing.T) {
	if _, err := New("ftp://example.com"); err == nil {
		t.Fatalf("expected error for ftp scheme")
	}
	c, err := New("https://api.example.com/base")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := c.websocketURL(); got != "wss://api.example.com/base/ws" {
		t.Fatalf("websocketURL = %q", got)
	}
}

// fakeRealtimeServer answers the REST reads a Store needs and drops the first
// websocket session right after pushing one notification.
type fakeRealtimeServer struct {
	t        *testing.T
	sessions atomic.Int32
	loads    atomic.Int32
}

func (f *fakeRealtimeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/restaurant-access/user/u1":
		f.loads.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"restaurantAccesses": []AccessRecord{{ID: "a1", RestaurantID: "r1", Status: StatusPending}}})
	case "/notifications/u1":
		_ = json.NewEncoder(w).Encode([]Notification{{ID: "n1", UserID: "u1", Title: "Access granted", CreatedAt: baseTime}})
	case "/ws":
		f.serveWS(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeRealtimeServer) serveWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.t.Errorf("upgrade: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()
	session := f.sessions.Add(1)

	var frame streamFrame
	if errRead := conn.ReadJSON(&frame); errRead != nil {
		return
	}
	var userID string
	_ = json.Unmarshal(frame.Data, &userID)
	if frame.Event != "authenticate" || userID != "u1" {
		f.t.Errorf("first frame = %+v", frame)
		return
	}
	_ = conn.WriteJSON(map[string]any{"event": "authenticated", "data": map[string]string{"message": "ok"}})
	if session == 1 {
		_ = conn.WriteJSON(map[string]any{"event": "notification", "data": Notification{
			ID: "n1", UserID: "u1", Title: "Access granted", CreatedAt: baseTime,
			Data: json.RawMessage(`{"accessId":"a1","status":"approved"}`),
		}})
		return
	}
	for {
		if _, _, errRead := conn.ReadMessage(); errRead != nil {
			return
		}
	}
}

func TestStreamMergesPushesAndReloadsAfterReconnect(t *testing.T) {
	fake := &fakeRealtimeServer{t: t}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c, _ := New(srv.URL, WithToken("tok"))
	store := NewStore(c, "u1")
	pushed := make(chan Notification, 4)
	stream := NewStream(c, store, StreamConfig{
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
		OnNotification: func(n Notification) { pushed <- n },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- stream.Run(ctx) }()

	select {
	case n := <-pushed:
		if n.ID != "n1" {
			t.Fatalf("pushed = %+v", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no notification pushed")
	}

	deadline := time.Now().Add(5 * time.Second)
	for fake.sessions.Load() < 2 || fake.loads.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("sessions=%d loads=%d, want a reconnect and a reload", fake.sessions.Load(), fake.loads.Load())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if store.UnreadCount() != 1 {
		t.Fatalf("unread = %d, want 1 after reload", store.UnreadCount())
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}

func TestStreamStopsWhenTokenRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, _ := New(srv.URL, WithToken("bad"))
	stream := NewStream(c, NewStore(c, "u1"), StreamConfig{InitialBackoff: time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := stream.Run(ctx); !errors.Is(err, ErrStreamRejected) {
		t.Fatalf("err = %v, want ErrStreamRejected", err)
	}
}

func TestStreamStopsWhenAuthenticateRefused(t *testing.T) {
	var sessions atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		sessions.Add(1)
		var frame streamFrame
		if errRead := conn.ReadJSON(&frame); errRead != nil {
			return
		}
		_ = conn.WriteJSON(map[string]any{"event": "error", "data": map[string]string{"message": "userId does not match token"}})
	}))
	defer srv.Close()

	c, _ := New(srv.URL, WithToken("tok"))
	stream := NewStream(c, NewStore(c, "u2"), StreamConfig{InitialBackoff: time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := stream.Run(ctx)
	if !errors.Is(err, ErrStreamRejected) {
		t.Fatalf("err = %v, want ErrStreamRejected", err)
	}
	if got := sessions.Load(); got != 1 {
		t.Fatalf("sessions = %d, want no reconnect", got)
	}
}
