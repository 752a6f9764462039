package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"teamboard/internal/service"
)

type CalendarHandler struct {
	calendar Calendar
	logger   *zap.Logger
}

func NewCalendarHandler(calendar Calendar, logger *zap.Logger) *CalendarHandler {
	return &CalendarHandler{calendar: calendar, logger: logger}
}

// Connect handles POST /api/integrations/calendar/connect
func (h *CalendarHandler) Connect(c *gin.Context) {
	var req struct {
		Code string `json:"code"`
	}
	_ = c.ShouldBindJSON(&req)

	if err := h.calendar.Connect(c.Request.Context(), currentUser(c), req.Code); err != nil {
		respondError(c, h.logger, "ConnectCalendar", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Google account connected"})
}

// Events handles GET /api/integrations/calendar/events
func (h *CalendarHandler) Events(c *gin.Context) {
	events, err := h.calendar.Events(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.logger, "CalendarEvents", err)
		return
	}
	c.JSON(http.StatusOK, events)
}

type LeaderboardHandler struct {
	board  Leaderboard
	logger *zap.Logger
}

func NewLeaderboardHandler(board Leaderboard, logger *zap.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{board: board, logger: logger}
}

// Get handles GET /api/leaderboard?range=all|week|month
func (h *LeaderboardHandler) Get(c *gin.Context) {
	r, err := service.ParseRange(c.Query("range"))
	if err != nil {
		respondError(c, h.logger, "Leaderboard", err)
		return
	}
	lb, err := h.board.Get(c.Request.Context(), r)
	if err != nil {
		respondError(c, h.logger, "Leaderboard", err)
		return
	}
	c.JSON(http.StatusOK, lb)
}
