// Package access implements the restaurant access workflow: who may manage a
// restaurant, and how requests move between pending, approved, suspended and
// innactive.
package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/bitescout/BiteScoutAPI/internal/apierror"
	"github.com/bitescout/BiteScoutAPI/internal/models"
	"github.com/bitescout/BiteScoutAPI/internal/notifications"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service orchestrates access transitions. Each mutation runs load, evaluate,
// conditional write and notification insert in one transaction, then pushes
// the notifications after commit.
type Service struct {
	db       *gorm.DB
	store    *Store
	inbox    *notifications.Store
	notifier *notifications.Notifier
}

// NewService constructs a Service.
func NewService(db *gorm.DB, notifier *notifications.Notifier) *Service {
	return &Service{
		db:       db,
		store:    NewStore(db),
		inbox:    notifications.NewStore(db),
		notifier: notifier,
	}
}

// notificationData is the reference payload stored with access notifications.
type notificationData struct {
	Event        string              `json:"event"`
	AccessID     string              `json:"accessId"`
	UserID       string              `json:"userId"`
	RestaurantID string              `json:"restaurantId"`
	Status       models.AccessStatus `json:"status"`
	Role         models.Role         `json:"role"`
}

type pendingNote struct {
	userID  string
	title   string
	message string
}

// txScope collects notifications created inside a transaction for post-commit push.
type txScope struct {
	store *Store
	inbox *notifications.Store
	sent  []models.Notification
}

func (sc *txScope) notify(ctx context.Context, rec models.RestaurantAccess, event Transition, notes ...pendingNote) error {
	seen := make(map[string]struct{}, len(notes))
	for _, note := range notes {
		if note.userID == "" {
			continue
		}
		if _, dup := seen[note.userID]; dup {
			continue
		}
		seen[note.userID] = struct{}{}
		row, err := sc.inbox.Create(ctx, note.userID, note.title, note.message, notificationData{
			Event:        string(event),
			AccessID:     rec.ID,
			UserID:       rec.UserID,
			RestaurantID: rec.RestaurantID,
			Status:       rec.Status,
			Role:         rec.Role,
		})
		if err != nil {
			return err
		}
		sc.sent = append(sc.sent, row)
	}
	return nil
}

func (s *Service) inTx(ctx context.Context, fn func(sc *txScope) error) error {
	var sent []models.Notification
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sc := &txScope{store: s.store.WithTx(tx), inbox: s.inbox.WithTx(tx)}
		if err := fn(sc); err != nil {
			return err
		}
		sent = sc.sent
		return nil
	})
	if errTx != nil {
		return apierror.From(errTx)
	}
	if s.notifier != nil {
		s.notifier.Push(ctx, sent...)
	}
	return nil
}

// RequestAccess creates a pending record for userID on restaurantID and
// notifies the restaurant's owner and approved admins.
func (s *Service) RequestAccess(ctx context.Context, actor Actor, userID, restaurantID string, role models.Role) (models.RestaurantAccess, error) {
	userID = strings.TrimSpace(userID)
	restaurantID = strings.TrimSpace(restaurantID)
	if userID == "" {
		return models.RestaurantAccess{}, apierror.Validation("userId is required", map[string]string{"userId": "required"})
	}
	if restaurantID == "" {
		return models.RestaurantAccess{}, apierror.Validation("restaurantId is required", map[string]string{"restaurantId": "required"})
	}
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return models.RestaurantAccess{}, apierror.Validation(fmt.Sprintf("unknown role %q", string(role)), map[string]string{"role": "oneof guest user moderator admin root"})
	}
	if role.AtLeast(models.RoleAdmin) {
		return models.RestaurantAccess{}, apierror.Validation("admin roles are granted with update, not requested", map[string]string{"role": "below admin"})
	}

	var out models.RestaurantAccess
	err := s.inTx(ctx, func(sc *txScope) error {
		restaurant, err := sc.store.FindRestaurant(ctx, restaurantID)
		if err != nil {
			return err
		}
		current := StatusNone
		live, err := sc.store.FindLive(ctx, userID, restaurantID)
		if err != nil {
			return err
		}
		if live != nil {
			current = live.Status
		}
		rel := Relation{
			Requester: actor.UserID != "" && actor.UserID == userID,
			Manager:   actor.IsGlobalAdmin(),
			Root:      actor.Role == models.RoleRoot,
		}
		next, err := Evaluate(current, TransitionRequest, rel)
		if err != nil {
			return err
		}

		out = models.RestaurantAccess{
			ID:           models.NewID(),
			UserID:       userID,
			RestaurantID: restaurantID,
			Role:         role,
			Status:       next,
		}
		if err := sc.store.Create(ctx, &out); err != nil {
			return err
		}

		managers, err := sc.store.ListManagerIDs(ctx, restaurantID)
		if err != nil {
			return err
		}
		recipients := append([]string{restaurant.OwnerID}, managers...)
		notes := make([]pendingNote, 0, len(recipients))
		for _, id := range recipients {
			if id == userID {
				continue
			}
			notes = append(notes, pendingNote{
				userID:  id,
				title:   "New access request",
				message: fmt.Sprintf("A user requested %s access to %s.", role, restaurant.Name),
			})
		}
		return sc.notify(ctx, out, TransitionRequest, notes...)
	})
	if err != nil {
		return models.RestaurantAccess{}, err
	}
	log.WithFields(log.Fields{"access_id": out.ID, "user_id": userID, "restaurant_id": restaurantID}).Info("access requested")
	return out, nil
}

// GrantAccess approves a pending or suspended record.
func (s *Service) GrantAccess(ctx context.Context, accessID string, actor Actor) (models.RestaurantAccess, error) {
	return s.transition(ctx, accessID, actor, TransitionGrant, "")
}

// SuspendAccess suspends an approved record.
func (s *Service) SuspendAccess(ctx context.Context, accessID string, actor Actor) (models.RestaurantAccess, error) {
	return s.transition(ctx, accessID, actor, TransitionSuspend, "")
}

// DeleteAccess soft-deletes a record by moving it to the terminal innactive status.
func (s *Service) DeleteAccess(ctx context.Context, accessID string, actor Actor) (models.RestaurantAccess, error) {
	return s.transition(ctx, accessID, actor, TransitionRevoke, "")
}

// UpdateRole changes the role on an approved record.
func (s *Service) UpdateRole(ctx context.Context, accessID string, actor Actor, role models.Role) (models.RestaurantAccess, error) {
	if role == "" {
		return models.RestaurantAccess{}, apierror.Validation("role is required", map[string]string{"role": "required"})
	}
	return s.transition(ctx, accessID, actor, TransitionUpdateRole, role)
}

func (s *Service) transition(ctx context.Context, accessID string, actor Actor, t Transition, role models.Role) (models.RestaurantAccess, error) {
	accessID = strings.TrimSpace(accessID)
	if accessID == "" {
		return models.RestaurantAccess{}, apierror.Validation("accessId is required", map[string]string{"accessId": "required"})
	}

	var out models.RestaurantAccess
	err := s.inTx(ctx, func(sc *txScope) error {
		row, err := sc.store.FindByID(ctx, accessID)
		if err != nil {
			return err
		}
		restaurant, err := sc.store.FindRestaurant(ctx, row.RestaurantID)
		if err != nil {
			return err
		}
		var actorGrant *models.RestaurantAccess
		if !actor.IsGlobalAdmin() && actor.UserID != restaurant.OwnerID {
			actorGrant, err = sc.store.FindApproved(ctx, actor.UserID, restaurant.ID)
			if err != nil {
				return err
			}
		}
		rel := Relate(actor, restaurant, &row, actorGrant)

		next, err := Evaluate(row.Status, t, rel)
		if err != nil {
			return err
		}
		nextRole := row.Role
		if t == TransitionUpdateRole {
			if err := CheckAssignableRole(role, rel); err != nil {
				return err
			}
			nextRole = role
		}
		if err := sc.store.CompareAndSwap(ctx, &row, next, nextRole); err != nil {
			return err
		}
		out = row
		return sc.notify(ctx, row, t, transitionNote(row, restaurant, t, actor))
	})
	if err != nil {
		return models.RestaurantAccess{}, err
	}
	log.WithFields(log.Fields{
		"access_id":  out.ID,
		"transition": string(t),
		"actor_id":   actor.UserID,
		"status":     string(out.Status),
	}).Info("access transition applied")
	return out, nil
}

func transitionNote(row models.RestaurantAccess, restaurant models.Restaurant, t Transition, actor Actor) pendingNote {
	note := pendingNote{userID: row.UserID}
	switch t {
	case TransitionGrant:
		note.title = "Access granted"
		note.message = fmt.Sprintf("Your %s access to %s was approved.", row.Role, restaurant.Name)
	case TransitionSuspend:
		note.title = "Access suspended"
		note.message = fmt.Sprintf("Your access to %s was suspended.", restaurant.Name)
	case TransitionRevoke:
		if actor.UserID == row.UserID {
			note.userID = restaurant.OwnerID
			note.title = "Access request withdrawn"
			note.message = fmt.Sprintf("A pending access request for %s was withdrawn.", restaurant.Name)
			break
		}
		note.title = "Access removed"
		note.message = fmt.Sprintf("Your access to %s was removed.", restaurant.Name)
	case TransitionUpdateRole:
		note.title = "Access role updated"
		note.message = fmt.Sprintf("Your role on %s is now %s.", restaurant.Name, row.Role)
	}
	return note
}

// ListByUser returns every record requested by userID.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]models.RestaurantAccess, error) {
	return s.store.ListByUser(ctx, userID)
}

// ListByOwner returns every record targeting restaurants owned by ownerID.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]models.RestaurantAccess, error) {
	return s.store.ListByOwner(ctx, ownerID)
}
