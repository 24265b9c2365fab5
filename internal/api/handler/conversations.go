package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"worklink/backend/internal/config"
	"worklink/backend/internal/models"
	"worklink/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

type createConversationRequest struct {
	ClientID      string `json:"client_id" binding:"required"`
	FreelancerID  string `json:"freelancer_id" binding:"required"`
	EngagementRef string `json:"engagement_ref" binding:"required"`
}

// CreateConversation opens the channel for a work engagement. The caller
// must be one of the two participants and both sides must be known users.
func (h *Handler) CreateConversation(c *gin.Context) {
	userID, ok := h.authUserID(c)
	if !ok {
		return
	}

	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "client_id, freelancer_id and engagement_ref are required"})
		return
	}
	if req.ClientID == req.FreelancerID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a conversation needs two distinct participants"})
		return
	}
	if userID != req.ClientID && userID != req.FreelancerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "caller must be a participant"})
		return
	}

	for _, id := range []string{req.ClientID, req.FreelancerID} {
		user, err := h.Storage.GetUserByID(id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "identity lookup failed"})
			return
		}
		if user == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown participant " + id})
			return
		}
	}

	conv := &models.Conversation{
		ClientID:      req.ClientID,
		FreelancerID:  req.FreelancerID,
		EngagementRef: req.EngagementRef,
	}
	if err := h.Storage.SaveConversation(conv); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create conversation"})
		return
	}

	c.JSON(http.StatusCreated, conv)
}

// ListConversations returns the caller's conversations.
func (h *Handler) ListConversations(c *gin.Context) {
	userID, ok := h.authUserID(c)
	if !ok {
		return
	}

	convs, err := h.Storage.GetConversationsForUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// GetHistory is the pull-style catch-up query: messages after since_seq in
// ascending sequence order, paged by limit.
func (h *Handler) GetHistory(c *gin.Context) {
	userID, ok := h.authUserID(c)
	if !ok {
		return
	}

	conv, err := h.Storage.GetConversationByID(c.Param("id"))
	if errors.Is(err, storage.ErrConversationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "conversation lookup failed"})
		return
	}
	if !conv.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this conversation"})
		return
	}

	sinceSeq, _ := strconv.ParseUint(c.DefaultQuery("since_seq", "0"), 10, 64)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), config.PersistTimeout)
	defer cancel()

	messages, err := h.Storage.History(ctx, conv.ConversationID, sinceSeq, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// GetPresence answers the last known presence of any user. Never 404s: a
// user that has not connected yet is offline with no last-seen.
func (h *Handler) GetPresence(c *gin.Context) {
	if _, ok := h.authUserID(c); !ok {
		return
	}

	record, err := h.Storage.GetPresence(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "presence lookup failed"})
		return
	}

	resp := gin.H{"user_id": record.UserID, "status": record.Status}
	if !record.LastSeen.IsZero() {
		resp["last_seen"] = record.LastSeen
	}
	c.JSON(http.StatusOK, resp)
}
