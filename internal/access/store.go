package access

import (
	"context"
	"errors"
	"time"

	"github.com/bitescout/BiteScoutAPI/internal/apierror"
	dbutil "github.com/bitescout/BiteScoutAPI/internal/db"
	"github.com/bitescout/BiteScoutAPI/internal/models"
	"gorm.io/gorm"
)

// Store persists restaurant access records. It is the only writer of the
// restaurant_accesses table and is used by Service inside transactions.
type Store struct {
	db *gorm.DB
}

// NewStore constructs a Store over a database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx returns a Store bound to tx.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx}
}

// FindRestaurant loads a restaurant by id.
func (s *Store) FindRestaurant(ctx context.Context, restaurantID string) (models.Restaurant, error) {
	var restaurant models.Restaurant
	if errFind := s.db.WithContext(ctx).First(&restaurant, "id = ?", restaurantID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.Restaurant{}, apierror.NotFound("restaurant not found")
		}
		return models.Restaurant{}, apierror.Internal("query restaurant failed", errFind)
	}
	return restaurant, nil
}

// FindByID loads an access record by id.
func (s *Store) FindByID(ctx context.Context, accessID string) (models.RestaurantAccess, error) {
	var row models.RestaurantAccess
	if errFind := s.db.WithContext(ctx).First(&row, "id = ?", accessID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.RestaurantAccess{}, apierror.NotFound("access record not found")
		}
		return models.RestaurantAccess{}, apierror.Internal("query access record failed", errFind)
	}
	return row, nil
}

// FindLive returns the non-terminal record for a user/restaurant pair, or nil.
func (s *Store) FindLive(ctx context.Context, userID, restaurantID string) (*models.RestaurantAccess, error) {
	var row models.RestaurantAccess
	errFind := s.db.WithContext(ctx).
		Where("live_key = ?", models.AccessLiveKey(userID, restaurantID)).
		First(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apierror.Internal("query live access failed", errFind)
	}
	return &row, nil
}

// Create inserts a new pending record. A concurrent duplicate surfaces as Conflict.
func (s *Store) Create(ctx context.Context, row *models.RestaurantAccess) error {
	if row.Status.Live() {
		key := models.AccessLiveKey(row.UserID, row.RestaurantID)
		row.LiveKey = &key
	}
	if errCreate := s.db.WithContext(ctx).Create(row).Error; errCreate != nil {
		if dbutil.IsDuplicateKey(errCreate) {
			return apierror.Conflict("an active access record already exists for this user and restaurant")
		}
		return apierror.Internal("create access record failed", errCreate)
	}
	return nil
}

// CompareAndSwap moves row from its loaded status/role to next. It writes only if
// the stored status and role still match, so of two racing callers one gets Conflict.
func (s *Store) CompareAndSwap(ctx context.Context, row *models.RestaurantAccess, nextStatus models.AccessStatus, nextRole models.Role) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"status":     nextStatus,
		"role":       nextRole,
		"updated_at": now,
	}
	var liveKey *string
	if nextStatus.Live() {
		key := models.AccessLiveKey(row.UserID, row.RestaurantID)
		liveKey = &key
		updates["live_key"] = key
	} else {
		updates["live_key"] = gorm.Expr("NULL")
	}

	result := s.db.WithContext(ctx).
		Model(&models.RestaurantAccess{}).
		Where("id = ? AND status = ? AND role = ?", row.ID, row.Status, row.Role).
		Updates(updates)
	if result.Error != nil {
		if dbutil.IsDuplicateKey(result.Error) {
			return apierror.Conflict("an active access record already exists for this user and restaurant")
		}
		return apierror.Internal("update access record failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return apierror.Conflict("access record was modified concurrently")
	}
	row.Status = nextStatus
	row.Role = nextRole
	row.LiveKey = liveKey
	row.UpdatedAt = now
	return nil
}

// ListByUser returns a user's records, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]models.RestaurantAccess, error) {
	rows := make([]models.RestaurantAccess, 0)
	if errFind := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error; errFind != nil {
		return nil, apierror.Internal("list access records failed", errFind)
	}
	return rows, nil
}

// ListByOwner returns records targeting restaurants owned by ownerID, newest first.
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]models.RestaurantAccess, error) {
	rows := make([]models.RestaurantAccess, 0)
	if errFind := s.db.WithContext(ctx).
		Model(&models.RestaurantAccess{}).
		Select("restaurant_accesses.*").
		Joins("JOIN restaurants ON restaurants.id = restaurant_accesses.restaurant_id").
		Where("restaurants.owner_id = ?", ownerID).
		Order("restaurant_accesses.created_at DESC").Order("restaurant_accesses.id DESC").
		Find(&rows).Error; errFind != nil {
		return nil, apierror.Internal("list owner access records failed", errFind)
	}
	return rows, nil
}

// FindApproved returns userID's approved record on a restaurant, or nil.
func (s *Store) FindApproved(ctx context.Context, userID, restaurantID string) (*models.RestaurantAccess, error) {
	live, err := s.FindLive(ctx, userID, restaurantID)
	if err != nil || live == nil {
		return nil, err
	}
	if live.Status != models.AccessStatusApproved {
		return nil, nil
	}
	return live, nil
}

// ListManagerIDs returns user ids holding an approved admin-or-higher grant on a restaurant.
func (s *Store) ListManagerIDs(ctx context.Context, restaurantID string) ([]string, error) {
	var ids []string
	if errFind := s.db.WithContext(ctx).
		Model(&models.RestaurantAccess{}).
		Where("restaurant_id = ? AND status = ? AND role IN ?", restaurantID, models.AccessStatusApproved, []models.Role{models.RoleAdmin, models.RoleRoot}).
		Order("created_at ASC").
		Pluck("user_id", &ids).Error; errFind != nil {
		return nil, apierror.Internal("list restaurant managers failed", errFind)
	}
	return ids, nil
}
