package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/causerie/causerie-server/internal/core"
	"github.com/causerie/causerie-server/internal/store"
)

// MuteHandlers administers individual mute records: per-channel scoped or
// global (empty channel). Admin only.
type MuteHandlers struct {
	store store.Store
	hub   *core.Hub
	log   *zerolog.Logger
}

// NewMuteHandlers creates a new mute handlers instance.
func NewMuteHandlers(st store.Store, hub *core.Hub, logger *zerolog.Logger) *MuteHandlers {
	return &MuteHandlers{
		store: st,
		hub:   hub,
		log:   logger,
	}
}

// MuteRequest represents a mute create/delete request body. An empty
// channel means a global mute.
type MuteRequest struct {
	Channel string  `json:"channel,omitempty"`
	UserID  string  `json:"user_id" binding:"required"`
	Reason  *string `json:"reason,omitempty"`
}

// MuteResponse represents a mute record in API responses.
type MuteResponse struct {
	ID        int64   `json:"id"`
	Channel   *string `json:"channel,omitempty"`
	UserID    string  `json:"user_id"`
	MutedBy   string  `json:"muted_by"`
	Reason    *string `json:"reason,omitempty"`
	CreatedAt string  `json:"created_at"`
}

func muteResponse(rec *store.MuteRecord) MuteResponse {
	return MuteResponse{
		ID:        rec.ID,
		Channel:   rec.Channel,
		UserID:    rec.UserID,
		MutedBy:   rec.MutedBy,
		Reason:    rec.Reason,
		CreatedAt: rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func scopeOf(req MuteRequest) *string {
	if req.Channel == "" {
		return nil
	}
	ch := req.Channel
	return &ch
}

// CreateMute inserts a mute record for a (scope, user) pair.
// POST /api/mutes
func (h *MuteHandlers) CreateMute(c *gin.Context) {
	userID, _, isAdmin, ok := identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	if !isAdmin {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "admin only"})
		return
	}

	var req MuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	rec, err := h.store.CreateMute(c.Request.Context(), &store.MuteRecord{
		Channel: scopeOf(req),
		UserID:  req.UserID,
		MutedBy: userID,
		Reason:  req.Reason,
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "user already muted in this scope"})
			return
		}
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("failed to create mute")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("user_id", req.UserID).Str("channel", req.Channel).Msg("mute created")
	c.JSON(http.StatusCreated, muteResponse(rec))
}

// DeleteMute removes the mute record for a (scope, user) pair.
// DELETE /api/mutes
func (h *MuteHandlers) DeleteMute(c *gin.Context) {
	_, _, isAdmin, ok := identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	if !isAdmin {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "admin only"})
		return
	}

	var req MuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.store.DeleteMute(c.Request.Context(), scopeOf(req), req.UserID); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "mute not found"})
		return
	}

	h.log.Info().Str("user_id", req.UserID).Str("channel", req.Channel).Msg("mute removed")
	c.Status(http.StatusNoContent)
}

// ListMutes lists active mute records; ?channel= narrows to one scope.
// GET /api/mutes
func (h *MuteHandlers) ListMutes(c *gin.Context) {
	_, _, isAdmin, ok := identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	if !isAdmin {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "admin only"})
		return
	}

	var scope *string
	if ch := c.Query("channel"); ch != "" {
		scope = &ch
	}

	records, err := h.store.ListMutes(c.Request.Context(), scope)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list mutes")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]MuteResponse, 0, len(records))
	for _, rec := range records {
		response = append(response, muteResponse(rec))
	}
	c.JSON(http.StatusOK, response)
}
