package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestUser(t *testing.T, s *Store, email string) *User {
	t.Helper()
	u, err := s.CreateUser(&email, nil, "Test", "User", "hash")
	require.NoError(t, err)
	return u
}

func TestCreateUserHasProfile(t *testing.T) {
	s := openTestStore(t)
	u := createTestUser(t, s, "alice@example.com")

	got, err := s.UserByID(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", *got.Email)
	assert.False(t, got.Profile.Admin)
	assert.False(t, got.Profile.AI)
}

func TestUserByEmailNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.UserByEmail("nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserByPhoneOrCreate(t *testing.T) {
	s := openTestStore(t)

	u1, err := s.UserByPhoneOrCreate("5215512345678")
	require.NoError(t, err)
	u2, err := s.UserByPhoneOrCreate("5215512345678")
	require.NoError(t, err)
	assert.Equal(t, u1.ID, u2.ID)
}

func TestEnsureSentinelsIdempotent(t *testing.T) {
	s := openTestStore(t)

	anon1, ai1, err := s.EnsureSentinels()
	require.NoError(t, err)
	anon2, ai2, err := s.EnsureSentinels()
	require.NoError(t, err)

	assert.Equal(t, anon1.ID, anon2.ID)
	assert.Equal(t, ai1.ID, ai2.ID)
	assert.True(t, ai1.Profile.AI)

	got, err := s.AIUser()
	require.NoError(t, err)
	assert.Equal(t, ai1.ID, got.ID)
}

func TestConversationByNameOrCreate(t *testing.T) {
	s := openTestStore(t)
	u := createTestUser(t, s, "bob@example.com")

	conv, created, err := s.ConversationByNameOrCreate("bob.example.com", nil, &u.ID, true)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, StatusInactive, conv.Status)
	assert.True(t, conv.Autopilot)

	again, created, err := s.ConversationByNameOrCreate("bob.example.com", nil, &u.ID, true)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, conv.ID, again.ID)
}

func TestSetAutopilot(t *testing.T) {
	s := openTestStore(t)
	u := createTestUser(t, s, "bob@example.com")
	conv, _, err := s.ConversationByNameOrCreate("bob.example.com", nil, &u.ID, true)
	require.NoError(t, err)

	require.NoError(t, s.SetAutopilot(conv.ID, false))
	got, err := s.ConversationByID(conv.ID)
	require.NoError(t, err)
	assert.False(t, got.Autopilot)
}

func TestMessagesNewestFirst(t *testing.T) {
	s := openTestStore(t)
	u := createTestUser(t, s, "bob@example.com")
	conv, _, err := s.ConversationByNameOrCreate("bob.example.com", nil, &u.ID, false)
	require.NoError(t, err)

	for _, text := range []string{"one", "two", "three"} {
		body := text
		_, err := s.CreateMessage(conv.ID, u.ID, &body, false)
		require.NoError(t, err)
	}

	msgs, err := s.RecentMessages(conv.ID, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "three", *msgs[0].Body)
	assert.Equal(t, "two", *msgs[1].Body)

	count, err := s.MessageCount(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestMarkMessageRead(t *testing.T) {
	s := openTestStore(t)
	u := createTestUser(t, s, "bob@example.com")
	conv, _, err := s.ConversationByNameOrCreate("bob.example.com", nil, &u.ID, false)
	require.NoError(t, err)

	body := "hi"
	msg, err := s.CreateMessage(conv.ID, u.ID, &body, false)
	require.NoError(t, err)
	require.NoError(t, s.MarkMessageRead(msg.ID))

	got, err := s.MessageByID(msg.ID)
	require.NoError(t, err)
	assert.True(t, got.Read)
}

func TestDocumentStagingLifecycle(t *testing.T) {
	s := openTestStore(t)
	u := createTestUser(t, s, "bob@example.com")
	conv, _, err := s.ConversationByNameOrCreate("bob.example.com", nil, &u.ID, false)
	require.NoError(t, err)

	name, file := "invoice.pdf", "abc_invoice.pdf"
	doc := &Document{Name: &name, File: &file, ConversationID: conv.ID, Staging: true}
	require.NoError(t, s.CreateDocument(doc))

	staged, err := s.StagedDocument(doc.ID, conv.ID)
	require.NoError(t, err)
	assert.True(t, staged.Staging)

	msg, err := s.CreateMessage(conv.ID, u.ID, nil, true)
	require.NoError(t, err)
	require.NoError(t, s.AttachDocument(doc.ID, msg.ID))

	// attached documents are no longer staged
	_, err = s.StagedDocument(doc.ID, conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.DocumentByMessage(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
}

func TestStagedDocumentScopedToConversation(t *testing.T) {
	s := openTestStore(t)
	u := createTestUser(t, s, "bob@example.com")
	conv, _, err := s.ConversationByNameOrCreate("bob.example.com", nil, &u.ID, false)
	require.NoError(t, err)

	name := "invoice.pdf"
	doc := &Document{Name: &name, ConversationID: conv.ID, Staging: true}
	require.NoError(t, s.CreateDocument(doc))

	_, err = s.StagedDocument(doc.ID, conv.ID+1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPurgeStagedDocuments(t *testing.T) {
	s := openTestStore(t)
	u := createTestUser(t, s, "bob@example.com")
	conv, _, err := s.ConversationByNameOrCreate("bob.example.com", nil, &u.ID, false)
	require.NoError(t, err)

	name := "stale.pdf"
	doc := &Document{Name: &name, ConversationID: conv.ID, Staging: true}
	require.NoError(t, s.CreateDocument(doc))

	n, err := s.PurgeStagedDocuments(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = s.PurgeStagedDocuments(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPaymentIntentLookup(t *testing.T) {
	s := openTestStore(t)
	u := createTestUser(t, s, "bob@example.com")
	conv, _, err := s.ConversationByNameOrCreate("bob.example.com", nil, &u.ID, false)
	require.NoError(t, err)

	pay := &Payment{ConversationID: conv.ID, Description: "brake pads", AmountCents: 125000}
	require.NoError(t, s.CreatePayment(pay))
	require.NoError(t, s.CreatePaymentIntent(pay.ID, "pi_123"))

	got, err := s.PaymentByIntent("pi_123")
	require.NoError(t, err)
	assert.Equal(t, pay.ID, got.ID)
	assert.False(t, got.Paid)

	when := time.Now().UTC()
	require.NoError(t, s.MarkPaymentPaid(pay.ID, when))
	got, err = s.PaymentByID(pay.ID)
	require.NoError(t, err)
	assert.True(t, got.Paid)
	require.NotNil(t, got.DatePaid)
}

func TestIntegrationByWebToken(t *testing.T) {
	s := openTestStore(t)

	integ, err := s.IntegrationByChannelOrCreate(ChannelWeb)
	require.NoError(t, err)
	token := "widget-token"
	require.NoError(t, s.SetIntegrationTokens(integ.ID, nil, nil, &token))

	got, err := s.IntegrationByWebToken("widget-token")
	require.NoError(t, err)
	assert.Equal(t, integ.ID, got.ID)

	_, err = s.IntegrationByWebToken("wrong")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConversationViewResolvesRelations(t *testing.T) {
	s := openTestStore(t)
	u := createTestUser(t, s, "bob@example.com")
	conv, _, err := s.ConversationByNameOrCreate("bob.example.com", nil, &u.ID, false)
	require.NoError(t, err)

	body := "latest"
	_, err = s.CreateMessage(conv.ID, u.ID, &body, false)
	require.NoError(t, err)

	view, err := s.ConversationView(conv)
	require.NoError(t, err)
	require.NotNil(t, view.User)
	assert.Equal(t, u.ID, view.User.ID)
	require.NotNil(t, view.LastMessage)
	assert.Equal(t, "latest", *view.LastMessage.Body)
}
