package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"voyago/backend/internal/chat"
	"voyago/backend/internal/services"
	"voyago/backend/internal/utils"
)

// streamHeartbeat keeps idle SSE connections open through proxies.
const streamHeartbeat = 25 * time.Second

// RestChatHandler serves conversations, messages, typing presence and
// the live message stream.
type RestChatHandler struct {
	chatService services.IChatService
}

// NewRestChatHandler creates a new RestChatHandler.
func NewRestChatHandler(chatService services.IChatService) *RestChatHandler {
	return &RestChatHandler{chatService: chatService}
}

// conversationParams reads the caller, the counterparty path parameter and
// the optional booking_ids query.
func conversationParams(c *gin.Context) (me, other utils.SixID, bookingIDs []utils.SixID, ok bool) {
	if me, ok = requireUserID(c); !ok {
		return
	}
	if other, ok = parseIDParam(c, "otherUserId", "user"); !ok {
		return
	}
	var err error
	if bookingIDs, err = parseIDList(c.Query("booking_ids")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID format"})
		return me, other, nil, false
	}
	return me, other, bookingIDs, true
}

// ListConversations handles GET /v1/conversations?role=guest|host
func (h *RestChatHandler) ListConversations(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	role := services.BookingRole(c.Query("role"))
	switch role {
	case services.BookingRoleAny, services.BookingRoleGuest, services.BookingRoleHost:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be guest or host"})
		return
	}

	summaries, err := h.chatService.ListConversations(c.Request.Context(), userID, role)
	if err != nil {
		respondError(c, err, "Failed to list conversations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summaries})
}

// GetMessages handles GET /v1/conversations/:otherUserId/messages
func (h *RestChatHandler) GetMessages(c *gin.Context) {
	me, other, bookingIDs, ok := conversationParams(c)
	if !ok {
		return
	}
	msgs, err := h.chatService.GetConversationMessages(c.Request.Context(), me, other, bookingIDs)
	if err != nil {
		respondError(c, err, "Failed to load messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": msgs})
}

type sendMessageRequest struct {
	Text      string `json:"text" binding:"required,max=4000"`
	BookingID string `json:"booking_id"`
}

// SendMessage handles POST /v1/conversations/:otherUserId/messages
func (h *RestChatHandler) SendMessage(c *gin.Context) {
	me, ok := requireUserID(c)
	if !ok {
		return
	}
	other, ok := parseIDParam(c, "otherUserId", "user")
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message text is required"})
		return
	}
	var bookingID utils.SixID
	if req.BookingID != "" {
		id, err := utils.ParseSixID(req.BookingID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID format"})
			return
		}
		bookingID = id
	}

	msg, err := h.chatService.SendMessage(c.Request.Context(), me, other, bookingID, req.Text)
	if err != nil {
		respondError(c, err, "Failed to send message")
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkRead handles POST /v1/conversations/:otherUserId/read
func (h *RestChatHandler) MarkRead(c *gin.Context) {
	me, other, bookingIDs, ok := conversationParams(c)
	if !ok {
		return
	}
	updated, err := h.chatService.MarkConversationRead(c.Request.Context(), me, other, bookingIDs)
	if err != nil {
		respondError(c, err, "Failed to mark messages read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

type typingRequest struct {
	Typing bool `json:"typing"`
}

// SetTyping handles POST /v1/conversations/:otherUserId/typing. Each
// keystroke posts typing=true; the flag drops after the idle timeout.
func (h *RestChatHandler) SetTyping(c *gin.Context) {
	me, ok := requireUserID(c)
	if !ok {
		return
	}
	other, ok := parseIDParam(c, "otherUserId", "user")
	if !ok {
		return
	}
	var req typingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	key := chat.Key(me, other)
	if req.Typing {
		h.chatService.SetTyping(c.Request.Context(), key, me)
	} else {
		h.chatService.ClearTyping(c.Request.Context(), key, me)
	}
	c.Status(http.StatusNoContent)
}

// GetTyping handles GET /v1/conversations/:otherUserId/typing and reports
// whether the counterparty is typing.
func (h *RestChatHandler) GetTyping(c *gin.Context) {
	me, ok := requireUserID(c)
	if !ok {
		return
	}
	other, ok := parseIDParam(c, "otherUserId", "user")
	if !ok {
		return
	}
	typing := h.chatService.IsTyping(c.Request.Context(), chat.Key(me, other), other)
	c.JSON(http.StatusOK, gin.H{"typing": typing})
}

// Stream handles GET /v1/conversations/:otherUserId/stream as server-sent
// events. The subscription ends when the client disconnects.
func (h *RestChatHandler) Stream(c *gin.Context) {
	me, other, bookingIDs, ok := conversationParams(c)
	if !ok {
		return
	}
	msgs, err := h.chatService.Subscribe(c.Request.Context(), me, other, bookingIDs)
	if err != nil {
		respondError(c, err, "Failed to open conversation stream")
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return false
			}
			c.SSEvent("message", msg)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().UTC().Unix())
			return true
		}
	})
}
