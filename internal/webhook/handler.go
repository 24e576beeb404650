package webhook

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"funnel-crm/internal/apperror"
	"funnel-crm/internal/auth"
	pkgmodels "funnel-crm/pkg/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler exposes the bridge to the automation platform over HTTP.
type Handler struct {
	Bridge *Bridge
	log    *zap.Logger
}

func NewHandler(bridge *Bridge, log *zap.Logger) *Handler {
	return &Handler{
		Bridge: bridge,
		log:    log.Named("webhook"),
	}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/webhook/incoming", h.HandleIncoming)
	rg.POST("/webhook/outgoing", h.HandleOutgoing)
	rg.GET("/contacts", h.ListContacts)
}

func (h *Handler) HandleIncoming(c *gin.Context) {
	var payload pkgmodels.InboundPayload
	if !h.bind(c, &payload) {
		return
	}

	msg, err := h.Bridge.IngestInbound(c.Request.Context(), auth.APIKey(c, payload.UserAPIKey), payload)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pkgmodels.IngestResponse{Success: true, MessageID: msg.ID})
}

func (h *Handler) HandleOutgoing(c *gin.Context) {
	var payload pkgmodels.OutboundPayload
	if !h.bind(c, &payload) {
		return
	}

	msg, err := h.Bridge.IngestOutbound(c.Request.Context(), auth.APIKey(c, payload.UserAPIKey), payload)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pkgmodels.IngestResponse{Success: true, MessageID: msg.ID})
}

func (h *Handler) ListContacts(c *gin.Context) {
	summaries, err := h.Bridge.Summaries(c.Request.Context(), auth.APIKey(c, ""), c.Query("phone"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

// bind decodes the JSON body keeping numbers as json.Number, so timestamps
// keep their full precision.
func (h *Handler) bind(c *gin.Context, dst any) bool {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.fail(c, apperror.Validation("invalid request payload"))
		return false
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		h.log.Debug("invalid webhook payload", zap.Error(err))
		h.fail(c, apperror.Validation("invalid request payload"))
		return false
	}
	return true
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := apperror.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error("webhook request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": apperror.Message(err)})
}
