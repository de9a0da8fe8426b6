package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/regime-switch-bot/internal/autoswitch"
	"github.com/your-org/regime-switch-bot/internal/engine"
	"github.com/your-org/regime-switch-bot/internal/market"
	"github.com/your-org/regime-switch-bot/internal/position"
	"github.com/your-org/regime-switch-bot/internal/risk"
	"github.com/your-org/regime-switch-bot/internal/selector"
)

// Switcher is the read and force surface of the auto-strategy manager.
type Switcher interface {
	Snapshot() autoswitch.State
	LastCondition() market.Condition
	Recommendation() (selector.Score, bool)
	History() []autoswitch.SwitchRecord
	Statistics() autoswitch.Stats
	ForceSwitch(ctx context.Context, id string) (autoswitch.Decision, error)
}

// Portfolio exposes the paper account.
type Portfolio interface {
	Account() risk.AccountState
	Book() *position.Book
}

// StatusHandler serves the manager state and the account.
type StatusHandler struct {
	switcher  Switcher
	portfolio Portfolio
}

// NewStatusHandler creates a StatusHandler. portfolio may be nil.
func NewStatusHandler(switcher Switcher, portfolio Portfolio) *StatusHandler {
	return &StatusHandler{switcher: switcher, portfolio: portfolio}
}

// RegisterRoutes registers the status routes under /api.
func (h *StatusHandler) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api")
	api.GET("/status", h.GetStatus)
	api.GET("/switches", h.GetSwitches)
	api.POST("/strategy", h.PostStrategy)
}

type statusResponse struct {
	State       autoswitch.State    `json:"state"`
	Condition   market.Condition    `json:"market_condition"`
	Recommended *selector.Score     `json:"recommended,omitempty"`
	Stats       autoswitch.Stats    `json:"stats"`
	Account     *risk.AccountState  `json:"account,omitempty"`
	Positions   []position.Snapshot `json:"positions,omitempty"`
}

// GetStatus returns the current state, condition, recommendation, statistics
// and account.
func (h *StatusHandler) GetStatus(c *gin.Context) {
	resp := statusResponse{
		State:     h.switcher.Snapshot(),
		Condition: h.switcher.LastCondition(),
		Stats:     h.switcher.Statistics(),
	}
	if rec, found := h.switcher.Recommendation(); found {
		resp.Recommended = &rec
	}
	if h.portfolio != nil {
		acct := h.portfolio.Account()
		resp.Account = &acct
		resp.Positions = h.portfolio.Book().Snapshots()
	}
	ok(c, resp)
}

// GetSwitches returns the retained switch records, newest last. ?limit=N keeps
// the newest N.
func (h *StatusHandler) GetSwitches(c *gin.Context) {
	records := h.switcher.History()
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			fail(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if n < len(records) {
			records = records[len(records)-n:]
		}
	}
	ok(c, records)
}

type strategyRequest struct {
	ID string `json:"id" binding:"required"`
}

// PostStrategy forces a switch to the requested strategy.
func (h *StatusHandler) PostStrategy(c *gin.Context) {
	var req strategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	d, err := h.switcher.ForceSwitch(c.Request.Context(), req.ID)
	switch {
	case err == nil:
		ok(c, d.Record)
	case errors.Is(err, autoswitch.ErrAlreadyActive):
		fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrUnknownStrategy):
		fail(c, http.StatusBadRequest, err.Error())
	default:
		fail(c, http.StatusBadGateway, err.Error())
	}
}
