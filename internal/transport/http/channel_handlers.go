package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/causerie/causerie-server/internal/core"
	"github.com/causerie/causerie-server/internal/store"
)

// ChannelHandlers is the thin channel directory the hub reads from: create,
// list, delete, describe, and the manual whole-channel mute toggle.
type ChannelHandlers struct {
	store store.Store
	hub   *core.Hub
	log   *zerolog.Logger
}

// NewChannelHandlers creates a new channel handlers instance.
func NewChannelHandlers(st store.Store, hub *core.Hub, logger *zerolog.Logger) *ChannelHandlers {
	return &ChannelHandlers{
		store: st,
		hub:   hub,
		log:   logger,
	}
}

// CreateChannelRequest represents the create channel request body.
type CreateChannelRequest struct {
	Name        string  `json:"name" binding:"required,min=1,max=64"`
	Description *string `json:"description,omitempty"`
}

// SetDescriptionRequest carries a description update.
type SetDescriptionRequest struct {
	Description *string `json:"description"`
}

// SetMutedRequest carries a whole-channel mute toggle.
type SetMutedRequest struct {
	Muted bool `json:"muted"`
}

// ChannelResponse represents a channel in API responses.
type ChannelResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	CreatedBy   string  `json:"created_by"`
	Description *string `json:"description,omitempty"`
	Muted       bool    `json:"muted"`
	CreatedAt   string  `json:"created_at"`
}

func channelResponse(ch *store.Channel) ChannelResponse {
	return ChannelResponse{
		ID:          ch.ID,
		Name:        ch.Name,
		CreatedBy:   ch.CreatedBy,
		Description: ch.Description,
		Muted:       ch.Muted,
		CreatedAt:   ch.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// CreateChannel handles channel creation.
// POST /api/channels
func (h *ChannelHandlers) CreateChannel(c *gin.Context) {
	_, username, _, ok := identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create channel request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ch, err := h.store.CreateChannel(c.Request.Context(), req.Name, username, req.Description)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "channel with this name already exists"})
			return
		}
		h.log.Error().Err(err).Str("channel", req.Name).Msg("failed to create channel")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("channel", ch.Name).Str("created_by", username).Msg("channel created")
	c.JSON(http.StatusCreated, channelResponse(ch))
}

// ListChannels handles listing channels.
// GET /api/channels
func (h *ChannelHandlers) ListChannels(c *gin.Context) {
	channels, err := h.store.ListChannels(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list channels")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]ChannelResponse, 0, len(channels))
	for _, ch := range channels {
		response = append(response, channelResponse(ch))
	}
	c.JSON(http.StatusOK, response)
}

// DeleteChannel soft-deletes a channel, cascades a soft delete to its
// messages, purges connection membership, and drops the live group.
// DELETE /api/channels/:name
func (h *ChannelHandlers) DeleteChannel(c *gin.Context) {
	_, username, isAdmin, ok := identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	name := c.Param("name")
	ctx := c.Request.Context()

	ch, err := h.store.GetChannelByName(ctx, name)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "channel not found"})
		return
	}
	if !isAdmin && !strings.EqualFold(ch.CreatedBy, username) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "creator or admin only"})
		return
	}

	if err := h.store.DeleteChannel(ctx, name); err != nil {
		h.log.Error().Err(err).Str("channel", name).Msg("failed to delete channel")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if err := h.store.SoftDeleteChannelMessages(ctx, name); err != nil {
		h.log.Error().Err(err).Str("channel", name).Msg("failed to cascade message delete")
	}
	if err := h.store.ClearChannelMembership(ctx, name); err != nil {
		h.log.Error().Err(err).Str("channel", name).Msg("failed to purge channel membership")
	}
	h.hub.DropChannel(name)

	h.log.Info().Str("channel", name).Str("deleted_by", username).Msg("channel deleted")
	c.Status(http.StatusNoContent)
}

// SetDescription updates a channel's description.
// PUT /api/channels/:name/description
func (h *ChannelHandlers) SetDescription(c *gin.Context) {
	_, username, isAdmin, ok := identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	name := c.Param("name")
	ctx := c.Request.Context()

	ch, err := h.store.GetChannelByName(ctx, name)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "channel not found"})
		return
	}
	if !isAdmin && !strings.EqualFold(ch.CreatedBy, username) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "creator or admin only"})
		return
	}

	var req SetDescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.store.SetChannelDescription(ctx, name, req.Description); err != nil {
		h.log.Error().Err(err).Str("channel", name).Msg("failed to set channel description")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

// SetMuted flips the whole-channel mute flag by hand and notifies the
// channel. The auto-muter only ever sets this flag; unmuting happens here.
// PUT /api/channels/:name/mute
func (h *ChannelHandlers) SetMuted(c *gin.Context) {
	_, username, isAdmin, ok := identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	name := c.Param("name")
	ctx := c.Request.Context()

	ch, err := h.store.GetChannelByName(ctx, name)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "channel not found"})
		return
	}
	if !isAdmin && !strings.EqualFold(ch.CreatedBy, username) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "creator or admin only"})
		return
	}

	var req SetMutedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.store.SetChannelMuted(ctx, name, req.Muted); err != nil {
		h.log.Error().Err(err).Str("channel", name).Msg("failed to set channel mute")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	h.hub.NotifyChannelMuteChanged(name, req.Muted)

	h.log.Info().Str("channel", name).Bool("muted", req.Muted).Str("by", username).Msg("channel mute changed")
	c.Status(http.StatusNoContent)
}
