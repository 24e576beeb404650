package api

import (
	"bytes"
	"net/http"

	"funnel-crm/internal/contacts"
	"funnel-crm/internal/ledger"
	pkgmodels "funnel-crm/pkg/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ContactHandler struct {
	Contacts *contacts.Service
	Ledger   *ledger.Ledger
	log      *zap.Logger
}

func NewContactHandler(contacts *contacts.Service, ledger *ledger.Ledger, log *zap.Logger) *ContactHandler {
	return &ContactHandler{Contacts: contacts, Ledger: ledger, log: log}
}

func (h *ContactHandler) GetContacts(c *gin.Context) {
	views, err := h.Contacts.List(c.Request.Context(), currentAccount(c).ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// CreateContactRequest adds a lead by hand.
type CreateContactRequest struct {
	Phone   string               `json:"phone" binding:"required"`
	Name    *string              `json:"name"`
	StageID pkgmodels.FlexibleID `json:"stageId"`
}

func (h *ContactHandler) CreateContact(c *gin.Context) {
	var req CreateContactRequest
	if !bindJSON(c, h.log, &req) {
		return
	}

	contact, err := h.Contacts.Create(c.Request.Context(), currentAccount(c).ID, req.Phone, req.Name, req.StageID.Value)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, contact)
}

func (h *ContactHandler) GetContact(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	contact, err := h.Contacts.Get(c.Request.Context(), currentAccount(c).ID, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

// UpdateContactRequest is a partial update; absent fields stay unchanged.
type UpdateContactRequest struct {
	Name    *string              `json:"name"`
	StageID pkgmodels.FlexibleID `json:"stageId"`
}

func (h *ContactHandler) UpdateContact(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	var req UpdateContactRequest
	if !bindJSON(c, h.log, &req) {
		return
	}

	contact, err := h.Contacts.Update(c.Request.Context(), currentAccount(c).ID, id, req.Name, req.StageID.Value)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *ContactHandler) DeleteContact(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	if err := h.Contacts.Delete(c.Request.Context(), currentAccount(c).ID, id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetWindow reports whether free-form replies are still allowed.
func (h *ContactHandler) GetWindow(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if _, err := h.Contacts.Get(c.Request.Context(), currentAccount(c).ID, id); err != nil {
		respondError(c, h.log, err)
		return
	}

	w, err := h.Ledger.ResponseWindow(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"isOpen":           w.IsOpen,
		"remainingSeconds": w.RemainingSeconds(),
		"lastInboundAt":    w.LastInboundAt,
		"expiresAt":        w.ExpiresAt,
	})
}

func (h *ContactHandler) ExportContacts(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.Contacts.Export(c.Request.Context(), currentAccount(c).ID, &buf); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=contacts.csv")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
