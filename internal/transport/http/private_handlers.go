package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/causerie/causerie-server/internal/store"
)

const defaultConversationLimit = 50

// PrivateHandlers serves direct message history. Visibility honors the
// per-party hidden flags, so a hidden or withheld message never surfaces.
type PrivateHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewPrivateHandlers creates a new private message handlers instance.
func NewPrivateHandlers(st store.Store, logger *zerolog.Logger) *PrivateHandlers {
	return &PrivateHandlers{
		store: st,
		log:   logger,
	}
}

// PrivateMessageResponse represents a direct message in API responses.
type PrivateMessageResponse struct {
	ID       int64  `json:"id"`
	FromUser string `json:"from_user"`
	FromName string `json:"from_name"`
	ToUser   string `json:"to_user"`
	ToName   string `json:"to_name"`
	Text     string `json:"text"`
	Read     bool   `json:"read"`
	TS       int64  `json:"ts"`
}

// Conversation lists messages exchanged with another user.
// GET /api/private/:user
func (h *PrivateHandlers) Conversation(c *gin.Context) {
	userID, _, _, ok := identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	otherID := c.Param("user")
	limit := defaultConversationLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	messages, err := h.store.ListConversation(c.Request.Context(), userID, otherID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("other_user", otherID).Msg("failed to list conversation")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]PrivateMessageResponse, 0, len(messages))
	for _, msg := range messages {
		response = append(response, PrivateMessageResponse{
			ID:       msg.ID,
			FromUser: msg.FromUserID,
			FromName: msg.FromUsername,
			ToUser:   msg.ToUserID,
			ToName:   msg.ToUsername,
			Text:     msg.Body,
			Read:     msg.Read,
			TS:       msg.CreatedAt.Unix(),
		})
	}
	c.JSON(http.StatusOK, response)
}

// HideConversation soft-deletes the conversation for the caller only; the
// other party keeps their copy.
// DELETE /api/private/:user
func (h *PrivateHandlers) HideConversation(c *gin.Context) {
	userID, _, _, ok := identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	otherID := c.Param("user")
	if err := h.store.HideConversationFor(c.Request.Context(), userID, otherID); err != nil {
		h.log.Error().Err(err).Str("other_user", otherID).Msg("failed to hide conversation")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}
