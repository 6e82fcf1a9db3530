package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/khanhnq02905/Academic-Calendar/internal/middleware"
	"github.com/khanhnq02905/Academic-Calendar/internal/models"
	appErrors "github.com/khanhnq02905/Academic-Calendar/pkg/errors"
	"github.com/khanhnq02905/Academic-Calendar/pkg/response"
)

// actorFromContext resolves the caller or writes a 401 and returns false.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.CurrentActor(c)
	if !ok || actor.ID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}

func pageParams(c *gin.Context) (int, int, error) {
	page, err := intQuery(c, "page")
	if err != nil {
		return 0, 0, err
	}
	size, err := intQuery(c, "page_size")
	if err != nil {
		return 0, 0, err
	}
	return page, size, nil
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, key+" must be a non-negative integer")
	}
	return value, nil
}
