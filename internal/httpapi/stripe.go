package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/paymentintent"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/autoserviceai/chatd/internal/config"
	"github.com/autoserviceai/chatd/internal/store"
)

type createIntentBody struct {
	PaymentID int64 `json:"payment_id" binding:"required"`
}

// ginCreatePaymentIntent creates a Stripe PaymentIntent for a previously
// requested payment and hands the client secret back for the checkout form.
func (s *Server) ginCreatePaymentIntent(c *gin.Context) {
	var body createIntentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing data"})
		return
	}
	payment, err := s.Store.PaymentByID(body.PaymentID)
	if errors.Is(err, store.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "payment not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
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

	stripe.Key = config.Get().Stripe.SecretKey
	intent, err := paymentintent.New(&stripe.PaymentIntentParams{
		Amount:   stripe.Int64(payment.AmountCents),
		Currency: stripe.String(string(stripe.CurrencyMXN)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := s.Store.CreatePaymentIntent(payment.ID, intent.ID); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"client_secret": intent.ClientSecret})
}

// ginStripeWebhook verifies the event signature and settles the matching
// payment on payment_intent.succeeded. Unknown event types are rejected so
// a misconfigured endpoint shows up in the Stripe dashboard.
func (s *Server) ginStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), config.Get().Stripe.WebhookSecret)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		payment, err := s.Store.PaymentByIntent(intent.ID)
		if errors.Is(err, store.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "payment intent not found"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err := s.Store.MarkPaymentPaid(payment.ID, time.Now().UTC()); err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		conv, err := s.Store.ConversationByID(payment.ConversationID)
		if err == nil {
			s.Notifier.PaymentSucceeded(conv, payment)
		}
	case "payment_intent.created":
		// acknowledged, nothing to settle yet
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unexpected event type"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
