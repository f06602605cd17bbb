package httpapi

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/autoserviceai/chatd/internal/config"
	"github.com/autoserviceai/chatd/internal/store"
)

func (s *Server) ginDocumentsList(c *gin.Context) {
	user := currentUser(c)
	raw := c.Query("conversation")
	if raw == "" {
		if !user.Profile.Admin {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false})
			return
		}
		docs, err := s.Store.AllDocuments()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, docs)
		return
	}
	convID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false})
		return
	}
	conv, err := s.Store.ConversationByID(convID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false})
		return
	}
	if !canAccessConversation(user, conv) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false})
		return
	}
	docs, err := s.Store.DocumentsByConversation(conv.ID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, docs)
}

// ginDocumentUpload stores the file and either attaches it to a fresh
// message right away (fanned out to the conversation group) or, with
// staging=true, parks it for a later chat_message to claim.
func (s *Server) ginDocumentUpload(c *gin.Context) {
	user := currentUser(c)
	convID, err := strconv.ParseInt(c.PostForm("conversation"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false})
		return
	}
	conv, err := s.Store.ConversationByID(convID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false})
		return
	}
	if !canAccessConversation(user, conv) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false})
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	staging := c.PostForm("staging") != ""

	dir := config.DocumentsDir(config.Get().Server.DataDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	stored := uuid.NewString() + "_" + filepath.Base(file.Filename)
	if err := c.SaveUploadedFile(file, filepath.Join(dir, stored)); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	name := file.Filename
	doc := &store.Document{
		Name:           &name,
		File:           &stored,
		ConversationID: conv.ID,
		Staging:        staging,
	}
	if err := s.Store.CreateDocument(doc); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if !staging {
		msg, err := s.Store.CreateMessage(conv.ID, user.ID, nil, true)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err := s.Store.AttachDocument(doc.ID, msg.ID); err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		view, err := s.Store.MessageView(msg)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		s.Svc.Publish(conv, user, view)
		s.Notifier.DocumentUploaded(conv, doc)
	}
	c.JSON(http.StatusCreated, doc)
}
