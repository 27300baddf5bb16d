package client

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
)

// ErrNotLoaded is returned by Err before the first Load.
var ErrNotLoaded = errors.New("client: store not loaded")

// API is the subset of *Client the Store depends on.
type API interface {
	ListAccessByUser(ctx context.Context, userID string) ([]AccessRecord, error)
	ListNotifications(ctx context.Context, userID string, q NotificationQuery) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) (Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
}

// Store caches one user's access records and notifications. The server stays
// authoritative: Load replaces the cache and pushes are merged into it.
type Store struct {
	api    API
	userID string

	mu       sync.RWMutex
	loaded   bool
	err      error
	access   []AccessRecord
	inbox    []Notification
	onChange []func()
}

// NewStore builds an empty, unloaded store for userID.
func NewStore(api API, userID string) *Store {
	return &Store{api: api, userID: userID}
}

// UserID returns the user the store tracks.
func (s *Store) UserID() string { return s.userID }

// OnChange registers fn to run after every cache mutation. fn must not block.
func (s *Store) OnChange(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

// Load fetches access records and notifications. On failure the store enters
// the error state and Gate denies until a later Load succeeds.
func (s *Store) Load(ctx context.Context) error {
	records, err := s.api.ListAccessByUser(ctx, s.userID)
	if err == nil {
		var inbox []Notification
		inbox, err = s.api.ListNotifications(ctx, s.userID, NotificationQuery{})
		if err == nil {
			s.mu.Lock()
			s.access = append([]AccessRecord(nil), records...)
			s.inbox = nil
			for _, n := range inbox {
				s.upsertLocked(n)
			}
			s.loaded = true
			s.err = nil
			s.mu.Unlock()
			s.changed()
			return nil
		}
	}
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.changed()
	return err
}

// Err returns the last Load failure, ErrNotLoaded before the first Load, or nil.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return s.err
	}
	if !s.loaded {
		return ErrNotLoaded
	}
	return nil
}

// AccessRecords returns a copy of the cached access records.
func (s *Store) AccessRecords() []AccessRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]AccessRecord(nil), s.access...)
}

// Notifications returns a copy of the cached notifications, newest first.
func (s *Store) Notifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Notification(nil), s.inbox...)
}

// UnreadCount counts cached notifications that are not read.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.inbox {
		if !n.IsRead {
			count++
		}
	}
	return count
}

// Gate reports whether the user holds an approved record on restaurantID.
// An unloaded or failed store denies.
func (s *Store) Gate(restaurantID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded || s.err != nil || restaurantID == "" {
		return false
	}
	for _, rec := range s.access {
		if rec.RestaurantID == restaurantID && rec.Status == StatusApproved {
			return true
		}
	}
	return false
}

// UpsertNotification merges n by id and reports whether it was new. A new
// access notification also refreshes the cached record it names; redelivered
// or out-of-date pushes leave the records alone.
func (s *Store) UpsertNotification(n Notification) bool {
	if n.ID == "" || (n.UserID != "" && n.UserID != s.userID) {
		return false
	}
	s.mu.Lock()
	inserted := s.upsertLocked(n)
	if inserted {
		s.applyAccessDataLocked(n)
	}
	s.mu.Unlock()
	s.changed()
	return inserted
}

// MarkRead marks id read on the server and in the cache.
func (s *Store) MarkRead(ctx context.Context, id string) error {
	row, err := s.api.MarkNotificationRead(ctx, s.userID, id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.upsertLocked(row)
	s.mu.Unlock()
	s.changed()
	return nil
}

// MarkAllRead marks every notification read on the server and in the cache.
func (s *Store) MarkAllRead(ctx context.Context) (int64, error) {
	count, err := s.api.MarkAllNotificationsRead(ctx, s.userID)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	for i := range s.inbox {
		s.inbox[i].IsRead = true
	}
	s.mu.Unlock()
	s.changed()
	return count, nil
}

// upsertLocked replaces or inserts n, keeping newest-first order. A read entry
// never becomes unread again.
func (s *Store) upsertLocked(n Notification) bool {
	for i := range s.inbox {
		if s.inbox[i].ID != n.ID {
			continue
		}
		if s.inbox[i].IsRead && !n.IsRead {
			n.IsRead = true
			n.ReadAt = s.inbox[i].ReadAt
		}
		s.inbox[i] = n
		return false
	}
	idx := sort.Search(len(s.inbox), func(i int) bool {
		return newerThan(n, s.inbox[i])
	})
	s.inbox = append(s.inbox, Notification{})
	copy(s.inbox[idx+1:], s.inbox[idx:])
	s.inbox[idx] = n
	return true
}

// newerThan orders by createdAt, then id. IDs are UUIDv7 and sort by time.
func newerThan(a, b Notification) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

type accessNotificationData struct {
	AccessID     string       `json:"accessId"`
	UserID       string       `json:"userId"`
	RestaurantID string       `json:"restaurantId"`
	Status       AccessStatus `json:"status"`
	Role         Role         `json:"role"`
}

// applyAccessDataLocked folds the access state carried by n into the cache.
// The notification's createdAt stands in for the record's version: data older
// than the cached updatedAt is ignored. A record the cache has not seen yet is
// added only when it belongs to this user.
func (s *Store) applyAccessDataLocked(n Notification) {
	if len(n.Data) == 0 {
		return
	}
	var data accessNotificationData
	if errUnmarshal := json.Unmarshal(n.Data, &data); errUnmarshal != nil || data.AccessID == "" || data.Status == "" {
		return
	}
	for i := range s.access {
		rec := &s.access[i]
		if rec.ID != data.AccessID {
			continue
		}
		if n.CreatedAt.Before(rec.UpdatedAt) {
			return
		}
		rec.Status = data.Status
		if data.Role != "" {
			rec.Role = data.Role
		}
		rec.UpdatedAt = n.CreatedAt
		return
	}
	if data.UserID != s.userID || data.RestaurantID == "" {
		return
	}
	s.access = append(s.access, AccessRecord{
		ID:           data.AccessID,
		UserID:       data.UserID,
		RestaurantID: data.RestaurantID,
		Role:         data.Role,
		Status:       data.Status,
		CreatedAt:    n.CreatedAt,
		UpdatedAt:    n.CreatedAt,
	})
}

func (s *Store) changed() {
	s.mu.RLock()
	hooks := append([]func(){}, s.onChange...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn()
	}
}
