package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/autoserviceai/chatd/internal/store"
)

func (s *Server) ginPaymentsList(c *gin.Context) {
	user := currentUser(c)
	raw := c.Query("conversation")
	if raw == "" {
		if !user.Profile.Admin {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authorized"})
			return
		}
		payments, err := s.Store.AllPayments()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, payments)
		return
	}
	convID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "conversation not found"})
		return
	}
	conv, err := s.Store.ConversationByID(convID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "conversation not found"})
		return
	}
	if !canAccessConversation(user, conv) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authorized"})
		return
	}
	payments, err := s.Store.PaymentsByConversation(conv.ID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, payments)
}

func (s *Server) paymentParam(c *gin.Context) (*store.Payment, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "payment not found"})
		return nil, false
	}
	payment, err := s.Store.PaymentByID(id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "payment not found"})
		return nil, false
	}
	return payment, true
}

func (s *Server) ginPaymentGet(c *gin.Context) {
	payment, ok := s.paymentParam(c)
	if !ok {
		return
	}
	conv, err := s.Store.ConversationByID(payment.ConversationID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !canAccessConversation(currentUser(c), conv) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authorized"})
		return
	}
	c.JSON(http.StatusOK, payment)
}

type paymentBody struct {
	Conversation int64  `json:"conversation"`
	Amount       *int64 `json:"amount"`
	Description  string `json:"description"`
}

func (s *Server) ginPaymentCreate(c *gin.Context) {
	var body paymentBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Amount == nil || body.Description == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing data"})
		return
	}
	conv, err := s.Store.ConversationByID(body.Conversation)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "conversation not found"})
		return
	}
	payment := &store.Payment{
		ConversationID: conv.ID,
		AmountCents:    *body.Amount,
		Description:    body.Description,
	}
	if err := s.Store.CreatePayment(payment); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func (s *Server) ginPaymentPut(c *gin.Context) {
	payment, ok := s.paymentParam(c)
	if !ok {
		return
	}
	var body paymentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing data"})
		return
	}
	if body.Amount != nil {
		payment.AmountCents = *body.Amount
	}
	if body.Description != "" {
		payment.Description = body.Description
	}
	if err := s.Store.UpdatePayment(payment); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (s *Server) ginPaymentDelete(c *gin.Context) {
	payment, ok := s.paymentParam(c)
	if !ok {
		return
	}
	if err := s.Store.DeletePayment(payment.ID); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
