package api

import (
	"net/http"

	"funnel-crm/internal/apperror"
	"funnel-crm/internal/auth"
	"funnel-crm/internal/media"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const immutableCache = "public, max-age=31536000, immutable"

type UploadHandler struct {
	Store       *media.Store
	RequireAuth bool
	log         *zap.Logger
}

func NewUploadHandler(store *media.Store, requireAuth bool, log *zap.Logger) *UploadHandler {
	return &UploadHandler{Store: store, RequireAuth: requireAuth, log: log}
}

// Upload stores the multipart "file" field and returns its public URL.
func (h *UploadHandler) Upload(c *gin.Context) {
	var accountID *uint
	if acc, ok := auth.CurrentAccount(c); ok {
		accountID = &acc.ID
	} else if h.RequireAuth {
		respondError(c, h.log, apperror.Unauthorized("unauthorized"))
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		respondError(c, h.log, apperror.Validation("file is required"))
		return
	}
	defer file.Close()

	rec, err := h.Store.Save(c.Request.Context(), accountID, header.Filename, file)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":  media.URL(rec.Filename),
		"name": rec.OriginalName,
		"type": rec.MimeType,
		"size": rec.FileSize,
	})
}

// Serve streams a stored file with a long-lived cache header.
func (h *UploadHandler) Serve(c *gin.Context) {
	f, contentType, err := h.Store.Open(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.Header("Cache-Control", immutableCache)
	c.DataFromReader(http.StatusOK, info.Size(), contentType, f, nil)
}
