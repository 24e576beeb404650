package api

import (
	"net/http"

	"funnel-crm/internal/funnel"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type FunnelHandler struct {
	Funnels *funnel.Engine
	log     *zap.Logger
}

func NewFunnelHandler(funnels *funnel.Engine, log *zap.Logger) *FunnelHandler {
	return &FunnelHandler{Funnels: funnels, log: log}
}

type createFunnelRequest struct {
	Name string `json:"name"`
}

type stageRequest struct {
	Name  *string `json:"name"`
	Order *int    `json:"order"`
}

func (h *FunnelHandler) GetFunnels(c *gin.Context) {
	funnels, err := h.Funnels.ListFunnels(c.Request.Context(), currentAccount(c).ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, funnels)
}

func (h *FunnelHandler) CreateFunnel(c *gin.Context) {
	var req createFunnelRequest
	if !bindJSON(c, h.log, &req) {
		return
	}

	f, err := h.Funnels.CreateFunnel(c.Request.Context(), currentAccount(c).ID, req.Name)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

func (h *FunnelHandler) GetStages(c *gin.Context) {
	funnelID, err := idParam(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	stages, err := h.Funnels.ListStages(c.Request.Context(), currentAccount(c).ID, funnelID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, stages)
}

func (h *FunnelHandler) AddStage(c *gin.Context) {
	funnelID, err := idParam(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	var req stageRequest
	if !bindJSON(c, h.log, &req) {
		return
	}

	name := ""
	if req.Name != nil {
		name = *req.Name
	}
	stage, err := h.Funnels.AddStage(c.Request.Context(), currentAccount(c).ID, funnelID, name, req.Order)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, stage)
}

func (h *FunnelHandler) UpdateStage(c *gin.Context) {
	stageID, err := idParam(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	var req stageRequest
	if !bindJSON(c, h.log, &req) {
		return
	}

	stage, err := h.Funnels.UpdateStage(c.Request.Context(), currentAccount(c).ID, stageID, req.Name, req.Order)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, stage)
}

func (h *FunnelHandler) DeleteStage(c *gin.Context) {
	stageID, err := idParam(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	if err := h.Funnels.DeleteStage(c.Request.Context(), currentAccount(c).ID, stageID); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
