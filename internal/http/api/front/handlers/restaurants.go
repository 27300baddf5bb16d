package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bitescout/BiteScoutAPI/internal/apierror"
	dbutil "github.com/bitescout/BiteScoutAPI/internal/db"
	"github.com/bitescout/BiteScoutAPI/internal/http/respond"
	"github.com/bitescout/BiteScoutAPI/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const maxRestaurantList = 200

// RestaurantHandler manages the minimal restaurant directory.
type RestaurantHandler struct {
	db *gorm.DB
}

// NewRestaurantHandler constructs a RestaurantHandler.
func NewRestaurantHandler(db *gorm.DB) *RestaurantHandler {
	return &RestaurantHandler{db: db}
}

// createRestaurantRequest captures the payload for creating a restaurant.
type createRestaurantRequest struct {
	Name string `json:"name" binding:"required,max=200"`
}

// Create registers a restaurant owned by the caller.
func (h *RestaurantHandler) Create(c *gin.Context) {
	var body createRestaurantRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.BindError(c, errBind)
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		respond.Error(c, apierror.Validation("name is required", map[string]string{"name": "required"}))
		return
	}
	row := models.Restaurant{
		ID:      models.NewID(),
		Name:    name,
		OwnerID: getActor(c).UserID,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		respond.Error(c, apierror.Internal("create restaurant failed", errCreate))
		return
	}
	c.JSON(http.StatusCreated, row)
}

// List returns restaurants filtered by keyword.
func (h *RestaurantHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.Restaurant{})
	if keyword := strings.TrimSpace(c.Query("keyword")); keyword != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+keyword+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "name"), pattern)
	}
	if ownerID := strings.TrimSpace(c.Query("ownerId")); ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	rows := make([]models.Restaurant, 0)
	if errFind := q.Order("name ASC").Limit(maxRestaurantList).Find(&rows).Error; errFind != nil {
		respond.Error(c, apierror.Internal("list restaurants failed", errFind))
		return
	}
	c.JSON(http.StatusOK, gin.H{"restaurants": rows})
}

// Get returns one restaurant.
func (h *RestaurantHandler) Get(c *gin.Context) {
	var row models.Restaurant
	if errFind := h.db.WithContext(c.Request.Context()).First(&row, "id = ?", c.Param("id")).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			respond.Error(c, apierror.NotFound("restaurant not found"))
			return
		}
		respond.Error(c, apierror.Internal("query restaurant failed", errFind))
		return
	}
	c.JSON(http.StatusOK, row)
}
