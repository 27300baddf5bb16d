package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bitescout/BiteScoutAPI/internal/apierror"
	"github.com/bitescout/BiteScoutAPI/internal/config"
	dbutil "github.com/bitescout/BiteScoutAPI/internal/db"
	"github.com/bitescout/BiteScoutAPI/internal/http/respond"
	"github.com/bitescout/BiteScoutAPI/internal/models"
	"github.com/bitescout/BiteScoutAPI/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuthHandler handles user registration and login.
type AuthHandler struct {
	db     *gorm.DB
	jwtCfg config.JWTConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg}
}

// registerRequest defines the request body for user registration.
type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// Register creates a new user account with the user role.
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.BindError(c, errBind)
		return
	}
	username := strings.TrimSpace(body.Username)
	hash, errHash := security.HashPassword(body.Password)
	if errHash != nil {
		if errors.Is(errHash, security.ErrWeakPassword) {
			respond.Error(c, apierror.Validation("password too weak", map[string]string{"password": "min=8"}))
			return
		}
		respond.Error(c, apierror.Internal("hash password failed", errHash))
		return
	}

	user := models.User{
		ID:       models.NewID(),
		Username: username,
		Email:    strings.TrimSpace(body.Email),
		Password: hash,
		Role:     models.RoleUser,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&user).Error; errCreate != nil {
		if dbutil.IsDuplicateKey(errCreate) {
			respond.Error(c, apierror.Conflict("username already exists"))
			return
		}
		respond.Error(c, apierror.Internal("create user failed", errCreate))
		return
	}
	c.JSON(http.StatusCreated, user)
}

// loginRequest defines the request body for login.
type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates a user and issues a JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.BindError(c, errBind)
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).Where("username = ?", strings.TrimSpace(body.Username)).First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			respond.Error(c, apierror.Authentication("invalid credentials"))
			return
		}
		respond.Error(c, apierror.Internal("query user failed", errFind))
		return
	}
	if !security.CheckPassword(user.Password, body.Password) {
		respond.Error(c, apierror.Authentication("invalid credentials"))
		return
	}
	if user.Disabled {
		respond.Error(c, apierror.Authorization("user disabled"))
		return
	}

	token, errToken := security.GenerateToken(h.jwtCfg.Secret, h.jwtCfg.Issuer, user.ID, user.Username, string(user.Role), h.jwtCfg.Expiry)
	if errToken != nil {
		respond.Error(c, apierror.Internal("issue token failed", errToken))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}
