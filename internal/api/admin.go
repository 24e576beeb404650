package api

import (
	"net/http"

	"funnel-crm/internal/account"
	"funnel-crm/internal/ledger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler is read-only. Admins never write other accounts' data.
type AdminHandler struct {
	Accounts *account.Service
	Ledger   *ledger.Ledger
	log      *zap.Logger
}

func NewAdminHandler(accounts *account.Service, ledger *ledger.Ledger, log *zap.Logger) *AdminHandler {
	return &AdminHandler{Accounts: accounts, Ledger: ledger, log: log}
}

func (h *AdminHandler) GetAccounts(c *gin.Context) {
	accounts, err := h.Accounts.List(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

func (h *AdminHandler) GetMessages(c *gin.Context) {
	contactID, err := parseID(c.Query("contactId"), "contactId")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	messages, err := h.Ledger.List(c.Request.Context(), contactID, currentAccount(c).ID, true)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}
