package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/autoserviceai/chatd/internal/store"
)

func TestWhatsAppVerifyEchoesChallenge(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest("GET", "/api/whatsapp-webhook?hub.mode=subscribe&hub.challenge=12345", nil)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "12345", w.Body.String())
}

func TestWhatsAppInboundCreatesConversation(t *testing.T) {
	f := newAPIFixture(t)

	payload := `{
		"entry": [{
			"changes": [{
				"value": {
					"messages": [{"from": "5215512345678", "text": {"body": "hola"}}]
				}
			}]
		}]
	}`
	req := httptest.NewRequest("POST", "/api/whatsapp-webhook", bytes.NewReader([]byte(payload)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	conv, err := f.store.ConversationByName("5215512345678")
	require.NoError(t, err)
	msgs, err := f.store.RecentMessages(conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hola", *msgs[0].Body)
}

func TestWhatsAppInboundBadBody(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest("POST", "/api/whatsapp-webhook", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func signedStripeRequest(t *testing.T, payload string) *http.Request {
	t.Helper()
	now := time.Now()
	sig := webhook.ComputeSignature(now, []byte(payload), "whsec_test")
	req := httptest.NewRequest("POST", "/api/webhook", bytes.NewReader([]byte(payload)))
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%x", now.Unix(), sig))
	return req
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest("POST", "/api/webhook", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStripeWebhookSettlesPayment(t *testing.T) {
	f := newAPIFixture(t)

	email := "payer@example.com"
	u, err := f.store.CreateUser(&email, nil, "Pay", "Er", "hash")
	require.NoError(t, err)
	conv, _, err := f.store.ConversationByNameOrCreate("payer.example.com", nil, &u.ID, false)
	require.NoError(t, err)
	pay := &store.Payment{ConversationID: conv.ID, Description: "brake pads", AmountCents: 125000}
	require.NoError(t, f.store.CreatePayment(pay))
	require.NoError(t, f.store.CreatePaymentIntent(pay.ID, "pi_123"))

	payload := `{"api_version": "2024-04-10", "type": "payment_intent.succeeded", "data": {"object": {"id": "pi_123"}}}`
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, signedStripeRequest(t, payload))
	require.Equal(t, http.StatusOK, w.Code)

	got, err := f.store.PaymentByID(pay.ID)
	require.NoError(t, err)
	assert.True(t, got.Paid)
	require.NotNil(t, got.DatePaid)
}

func TestStripeWebhookUnknownIntent(t *testing.T) {
	f := newAPIFixture(t)

	payload := `{"api_version": "2024-04-10", "type": "payment_intent.succeeded", "data": {"object": {"id": "pi_missing"}}}`
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, signedStripeRequest(t, payload))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStripeWebhookUnexpectedEventType(t *testing.T) {
	f := newAPIFixture(t)

	payload := `{"api_version": "2024-04-10", "type": "charge.refunded", "data": {"object": {}}}`
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, signedStripeRequest(t, payload))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStripeWebhookAcknowledgesIntentCreated(t *testing.T) {
	f := newAPIFixture(t)

	payload := `{"api_version": "2024-04-10", "type": "payment_intent.created", "data": {"object": {"id": "pi_new"}}}`
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, signedStripeRequest(t, payload))
	assert.Equal(t, http.StatusOK, w.Code)
}
