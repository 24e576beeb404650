package api

import (
	"net/http"
	"strings"

	"funnel-crm/internal/apperror"
	"funnel-crm/internal/contacts"
	"funnel-crm/internal/ledger"
	"funnel-crm/internal/models"
	"funnel-crm/internal/webhook"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// attachmentCaption is the body used when a file is sent without text.
const attachmentCaption = "📎 Attached file: "

type MessageHandler struct {
	Ledger   *ledger.Ledger
	Contacts *contacts.Service
	Notifier *webhook.Notifier
	log      *zap.Logger
}

func NewMessageHandler(ledger *ledger.Ledger, contacts *contacts.Service, notifier *webhook.Notifier, log *zap.Logger) *MessageHandler {
	return &MessageHandler{Ledger: ledger, Contacts: contacts, Notifier: notifier, log: log}
}

// GetMessages lists a contact's messages. Admins may read any contact.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	contactID, err := parseID(c.Query("contactId"), "contactId")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	acc := currentAccount(c)
	messages, err := h.Ledger.List(c.Request.Context(), contactID, acc.ID, acc.IsAdmin())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

type SendMessageRequest struct {
	ContactID uint   `json:"contactId" binding:"required"`
	Body      string `json:"body"`
	Direction string `json:"direction" binding:"omitempty,oneof=inbound outbound"`
	Status    string `json:"status"`
	FileURL   string `json:"fileUrl"`
	FileType  string `json:"fileType"`
	FileName  string `json:"fileName"`
}

// SendMessage appends a message typed in the dashboard. Outbound messages
// are also pushed to the automation webhook in the background.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if !bindJSON(c, h.log, &req) {
		return
	}

	acc := currentAccount(c)
	contact, err := h.Contacts.Get(c.Request.Context(), acc.ID, req.ContactID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	body := req.Body
	if strings.TrimSpace(body) == "" && req.FileURL != "" {
		name := req.FileName
		if name == "" {
			name = req.FileURL[strings.LastIndex(req.FileURL, "/")+1:]
		}
		body = attachmentCaption + name
	}
	if strings.TrimSpace(body) == "" {
		respondError(c, h.log, apperror.Validation("body is required"))
		return
	}

	direction := req.Direction
	if direction == "" {
		direction = models.DirectionOutbound
	}

	in := ledger.AppendInput{
		ContactID: contact.ID,
		Body:      body,
		Direction: direction,
		Status:    req.Status,
	}
	if req.FileURL != "" {
		in.Attachment = &ledger.Attachment{URL: req.FileURL, Type: req.FileType, Name: req.FileName}
	}

	msg, err := h.Ledger.Append(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	if msg.Direction == models.DirectionOutbound {
		h.Notifier.NotifyAsync(msg, contact, acc)
	}
	c.JSON(http.StatusOK, msg)
}

func (h *MessageHandler) ClearMessages(c *gin.Context) {
	contactID, err := parseID(c.Query("contactId"), "contactId")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	deleted, err := h.Ledger.Clear(c.Request.Context(), contactID, currentAccount(c).ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": deleted})
}
