package api

import (
	"errors"
	"net/http"
	"strconv"

	"funnel-crm/internal/apperror"
	"funnel-crm/internal/auth"
	"funnel-crm/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError writes err as {"error": ...}. Unclassified errors are logged
// and reported generically.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	status := apperror.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}

	body := gin.H{"error": apperror.Message(err)}
	var appErr *apperror.Error
	if errors.As(err, &appErr) && len(appErr.Fields) > 0 {
		body["fields"] = appErr.Fields
	}
	c.JSON(status, body)
}

// bindJSON binds the request body, answering 400 on failure.
func bindJSON(c *gin.Context, log *zap.Logger, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		log.Debug("invalid request body", zap.String("path", c.FullPath()), zap.Error(err))
		respondError(c, log, apperror.FromBinding(err))
		return false
	}
	return true
}

// idParam parses a positive integer path parameter.
func idParam(c *gin.Context, name string) (uint, error) {
	return parseID(c.Param(name), name)
}

func parseID(raw, name string) (uint, error) {
	if raw == "" {
		return 0, apperror.Validation("%s is required", name)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.Validation("invalid %s", name)
	}
	return uint(id), nil
}

// currentAccount is only called behind RequireSession.
func currentAccount(c *gin.Context) *models.Account {
	acc, _ := auth.CurrentAccount(c)
	return acc
}
