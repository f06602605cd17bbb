package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/autoserviceai/chatd/internal/chat"
	"github.com/autoserviceai/chatd/internal/store"
)

const messagesPageSize = 50

func (s *Server) conversationViews(convs []store.Conversation) ([]*store.ConversationView, error) {
	views := make([]*store.ConversationView, 0, len(convs))
	for i := range convs {
		v, err := s.Store.ConversationView(&convs[i])
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *Server) ginConversationsList(c *gin.Context) {
	convs, err := s.Store.Conversations(false)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	views, err := s.conversationViews(convs)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) ginArchivedConversations(c *gin.Context) {
	convs, err := s.Store.Conversations(true)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	views, err := s.conversationViews(convs)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, views)
}

type conversationRefBody struct {
	ID           int64 `json:"id"`
	Conversation int64 `json:"conversation"`
}

func (b conversationRefBody) ref() int64 {
	if b.ID != 0 {
		return b.ID
	}
	return b.Conversation
}

// ginToggleArchived flips the archived flag rather than setting it, matching
// the admin UI's single archive/unarchive button.
func (s *Server) ginToggleArchived(c *gin.Context) {
	var body conversationRefBody
	if err := c.ShouldBindJSON(&body); err != nil || body.ref() == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false})
		return
	}
	conv, err := s.Store.ConversationByID(body.ref())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false})
		return
	}
	if err := s.Store.SetArchived(conv.ID, !conv.Archived); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	conv.Archived = !conv.Archived
	s.Notifier.ArchiveChanged(conv)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) conversationParam(c *gin.Context) (*store.Conversation, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false})
		return nil, false
	}
	conv, err := s.Store.ConversationByID(id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false})
		return nil, false
	}
	return conv, true
}

// canAccessConversation reports whether user may read conv: admins see
// everything, everyone else only their own thread.
func canAccessConversation(user *store.User, conv *store.Conversation) bool {
	if user.Profile.Admin {
		return true
	}
	return conv.UserID != nil && *conv.UserID == user.ID
}

func (s *Server) ginConversationGet(c *gin.Context) {
	conv, ok := s.conversationParam(c)
	if !ok {
		return
	}
	if !canAccessConversation(currentUser(c), conv) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authorized"})
		return
	}
	view, err := s.Store.ConversationView(conv)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

type conversationPutBody struct {
	Status    *string  `json:"status"`
	Autopilot *bool    `json:"autopilot"`
	Score     *float64 `json:"score"`
}

func (s *Server) ginConversationPut(c *gin.Context) {
	conv, ok := s.conversationParam(c)
	if !ok {
		return
	}
	var body conversationPutBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false})
		return
	}
	if body.Status != nil {
		conv.Status = *body.Status
	}
	if body.Autopilot != nil {
		conv.Autopilot = *body.Autopilot
	}
	if body.Score != nil {
		conv.Score = *body.Score
	}
	if err := s.Store.UpdateConversation(conv); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	view, err := s.Store.ConversationView(conv)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) ginConversationDelete(c *gin.Context) {
	conv, ok := s.conversationParam(c)
	if !ok {
		return
	}
	if err := s.Store.DeleteConversation(conv.ID); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) ginAssignConversation(c *gin.Context) {
	var body conversationRefBody
	if err := c.ShouldBindJSON(&body); err != nil || body.ref() == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing data"})
		return
	}
	conv, err := s.Store.ConversationByID(body.ref())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "conversation not found"})
		return
	}
	user := currentUser(c)
	if err := s.Store.SetAssignee(conv.ID, &user.ID); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	conv.AssignedToID = &user.ID
	s.Notifier.AssignmentChanged(conv, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ginUnassignConversation only lets the current assignee release a thread.
func (s *Server) ginUnassignConversation(c *gin.Context) {
	var body conversationRefBody
	if err := c.ShouldBindJSON(&body); err != nil || body.ref() == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing data"})
		return
	}
	conv, err := s.Store.ConversationByID(body.ref())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "conversation not found"})
		return
	}
	user := currentUser(c)
	if conv.AssignedToID == nil || *conv.AssignedToID != user.ID {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authorized"})
		return
	}
	if err := s.Store.SetAssignee(conv.ID, nil); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	conv.AssignedToID = nil
	s.Notifier.AssignmentChanged(conv, false)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ginMyConversation returns the caller's own thread, creating it on first
// access. The lookup runs under the same (name, integrated) key the
// workspace socket resolves with, so both paths share one conversation.
func (s *Server) ginMyConversation(c *gin.Context) {
	user := currentUser(c)
	if user.Email == nil || *user.Email == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "no email on account"})
		return
	}
	integ, err := s.Store.IntegrationByChannelOrCreate(store.ChannelIntegrated)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	name := chat.NormalizeName(*user.Email)
	conv, created, err := s.Store.ConversationByNameOrCreate(name, &integ.ID, &user.ID, true)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if created {
		s.Notifier.NewConversation(conv)
	}
	view, err := s.Store.ConversationView(conv)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

// ginMessages lists a conversation's messages newest first, one fixed-size
// page per request.
func (s *Server) ginMessages(c *gin.Context) {
	convID, err := strconv.ParseInt(c.Query("conversation"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "conversation required"})
		return
	}
	conv, err := s.Store.ConversationByID(convID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"count": 0, "results": []any{}})
		return
	}
	if !canAccessConversation(currentUser(c), conv) {
		c.JSON(http.StatusOK, gin.H{"count": 0, "results": []any{}})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	msgs, err := s.Store.MessagesPage(conv.ID, messagesPageSize, (page-1)*messagesPageSize)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	views, err := s.Store.MessageViews(msgs)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	count, err := s.Store.MessageCount(conv.ID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count, "results": views})
}

type markAsReadBody struct {
	Message int64 `json:"message" binding:"required"`
}

func (s *Server) ginMarkAsRead(c *gin.Context) {
	var body markAsReadBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing data"})
		return
	}
	msg, err := s.Store.MessageByID(body.Message)
	if errors.Is(err, store.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "message not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	conv, err := s.Store.ConversationByID(msg.ConversationID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !canAccessConversation(currentUser(c), conv) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authorized"})
		return
	}
	if err := s.Store.MarkMessageRead(msg.ID); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
