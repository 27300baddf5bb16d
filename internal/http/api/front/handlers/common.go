package handlers

import (
	"strconv"
	"strings"

	"github.com/bitescout/BiteScoutAPI/internal/access"
	"github.com/bitescout/BiteScoutAPI/internal/apierror"
	apihttp "github.com/bitescout/BiteScoutAPI/internal/http"
	"github.com/gin-gonic/gin"
)

// getActor extracts the authenticated caller from gin context.
func getActor(c *gin.Context) access.Actor {
	return apihttp.CurrentActor(c)
}

// requireSelfOrAdmin allows the owner of userID or a global admin.
func requireSelfOrAdmin(actor access.Actor, userID string) error {
	if actor.UserID != "" && actor.UserID == userID {
		return nil
	}
	if actor.IsGlobalAdmin() {
		return nil
	}
	return apierror.Authorization("not allowed to access another user's data")
}

// requireSelf allows only the owner of userID.
func requireSelf(actor access.Actor, userID string) error {
	if actor.UserID != "" && actor.UserID == userID {
		return nil
	}
	return apierror.Authorization("not allowed to modify another user's data")
}

// queryInt parses an optional integer query parameter.
func queryInt(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	n, errParse := strconv.Atoi(raw)
	if errParse != nil || n < 0 {
		return 0, apierror.Validation("invalid "+key, map[string]string{key: "non-negative integer"})
	}
	return n, nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(c *gin.Context, key string) (bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return false, nil
	}
	b, errParse := strconv.ParseBool(raw)
	if errParse != nil {
		return false, apierror.Validation("invalid "+key, map[string]string{key: "boolean"})
	}
	return b, nil
}
