package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoserviceai/chatd/internal/ai"
	"github.com/autoserviceai/chatd/internal/bus"
	"github.com/autoserviceai/chatd/internal/notify"
	"github.com/autoserviceai/chatd/internal/store"
)

type fixture struct {
	svc      *Service
	store    *store.Store
	notifier *notify.Notifier
	hub      *bus.Hub

	admin    *store.User
	customer *store.User
	conv     *store.Conversation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	_, aiUser, err := st.EnsureSentinels()
	require.NoError(t, err)

	adminEmail := "agent@example.com"
	admin, err := st.CreateUser(&adminEmail, nil, "Agent", "Smith", "hash")
	require.NoError(t, err)
	require.NoError(t, st.SetAdmin(admin.ID, true))
	admin.Profile.Admin = true

	customerEmail := "customer@example.com"
	customer, err := st.CreateUser(&customerEmail, nil, "Cus", "Tomer", "hash")
	require.NoError(t, err)

	conv, _, err := st.ConversationByNameOrCreate("customer.example.com", nil, &customer.ID, false)
	require.NoError(t, err)

	hub := bus.NewHub()
	notifier := notify.NewNotifier(st)
	svc := &Service{
		Store:    st,
		Hub:      hub,
		Notifier: notifier,
		AIUser:   aiUser,
	}
	return &fixture{
		svc:      svc,
		store:    st,
		notifier: notifier,
		hub:      hub,
		admin:    admin,
		customer: customer,
		conv:     conv,
	}
}

func recvEcho(t *testing.T, m *bus.Member) MessageEcho {
	t.Helper()
	select {
	case ev := <-m.Events():
		echo, ok := ev.(MessageEcho)
		require.True(t, ok, "unexpected event %T", ev)
		return echo
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fan-out")
		return MessageEcho{}
	}
}

func TestChatMessageFanOut(t *testing.T) {
	f := newFixture(t)
	m := f.hub.Join(f.conv.Name)
	defer f.hub.Leave(m)

	body := "my brakes squeal"
	require.NoError(t, f.svc.ChatMessage(context.Background(), f.conv, f.customer, &body, nil))

	echo := recvEcho(t, m)
	assert.Equal(t, EventChatMessageEcho, echo.Type)
	assert.Equal(t, "customer@example.com", echo.Sender)
	require.NotNil(t, echo.Message.Body)
	assert.Equal(t, "my brakes squeal", *echo.Message.Body)
}

func TestFirstMessageNotifiesThenQuietGate(t *testing.T) {
	f := newFixture(t)

	body := "hello"
	require.NoError(t, f.svc.ChatMessage(context.Background(), f.conv, f.customer, &body, nil))
	assert.Equal(t, 1, f.notifier.Pending())

	// a prompt follow-up stays inside the quiet window
	body2 := "anyone there?"
	require.NoError(t, f.svc.ChatMessage(context.Background(), f.conv, f.customer, &body2, nil))
	assert.Equal(t, 1, f.notifier.Pending())
}

func TestAdminMessageAlwaysNotifies(t *testing.T) {
	f := newFixture(t)

	body := "hello"
	require.NoError(t, f.svc.ChatMessage(context.Background(), f.conv, f.customer, &body, nil))
	reply := "right with you"
	require.NoError(t, f.svc.ChatMessage(context.Background(), f.conv, f.admin, &reply, nil))
	assert.Equal(t, 2, f.notifier.Pending())
}

func TestTypingEchoNotPersisted(t *testing.T) {
	f := newFixture(t)
	m := f.hub.Join(f.conv.Name)
	defer f.hub.Leave(m)

	f.svc.Typing(f.conv, f.customer, true)

	select {
	case ev := <-m.Events():
		echo, ok := ev.(TypingEcho)
		require.True(t, ok)
		assert.True(t, echo.Typing)
		assert.Equal(t, "customer@example.com", echo.Sender)
	case <-time.After(time.Second):
		t.Fatal("no typing echo")
	}

	count, err := f.store.MessageCount(f.conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func stageDocument(t *testing.T, st *store.Store, convID int64, name string) *store.Document {
	t.Helper()
	doc := &store.Document{Name: &name, ConversationID: convID, Staging: true}
	require.NoError(t, st.CreateDocument(doc))
	return doc
}

func TestDocumentBatchAttachment(t *testing.T) {
	f := newFixture(t)
	m := f.hub.Join(f.conv.Name)
	defer f.hub.Leave(m)

	d1 := stageDocument(t, f.store, f.conv.ID, "one.pdf")
	d2 := stageDocument(t, f.store, f.conv.ID, "two.pdf")
	d3 := stageDocument(t, f.store, f.conv.ID, "three.pdf")

	body := "here are the papers"
	docs := []int64{d1.ID, 9999, d2.ID, d3.ID} // 9999 is stale and must be skipped
	require.NoError(t, f.svc.ChatMessage(context.Background(), f.conv, f.customer, &body, docs))

	first := recvEcho(t, m)
	require.NotNil(t, first.Message.Body)
	assert.Equal(t, "here are the papers", *first.Message.Body)
	require.NotNil(t, first.Message.Document)
	assert.Equal(t, d1.ID, first.Message.Document.ID)

	for _, want := range []int64{d2.ID, d3.ID} {
		echo := recvEcho(t, m)
		assert.Nil(t, echo.Message.Body)
		require.NotNil(t, echo.Message.Document)
		assert.Equal(t, want, echo.Message.Document.ID)
	}

	// one root message plus two carriers
	count, err := f.store.MessageCount(f.conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestDocumentBatchAllStale(t *testing.T) {
	f := newFixture(t)
	m := f.hub.Join(f.conv.Name)
	defer f.hub.Leave(m)

	body := "supposedly with attachments"
	require.NoError(t, f.svc.ChatMessage(context.Background(), f.conv, f.customer, &body, []int64{555, 556}))

	// the root message still goes out exactly once
	echo := recvEcho(t, m)
	require.NotNil(t, echo.Message.Body)
	assert.Nil(t, echo.Message.Document)

	count, err := f.store.MessageCount(f.conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAutopilotReply(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`"bring it in on monday"`))
	}))
	defer srv.Close()
	f.svc.AI = ai.NewClient(srv.URL, "")
	require.NoError(t, f.store.SetAutopilot(f.conv.ID, true))

	m := f.hub.Join(f.conv.Name)
	defer f.hub.Leave(m)

	body := "when can you fit me in?"
	require.NoError(t, f.svc.ChatMessage(context.Background(), f.conv, f.customer, &body, nil))

	recvEcho(t, m) // customer's own message
	reply := recvEcho(t, m)
	assert.Equal(t, "AI", reply.Sender)
	require.NotNil(t, reply.Message.Body)
	assert.Equal(t, "bring it in on monday", *reply.Message.Body)

	count, err := f.store.MessageCount(f.conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAutopilotFailureDisablesForGood(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()
	f.svc.AI = ai.NewClient(srv.URL, "")
	require.NoError(t, f.store.SetAutopilot(f.conv.ID, true))

	body := "hello?"
	require.NoError(t, f.svc.ChatMessage(context.Background(), f.conv, f.customer, &body, nil))

	assert.Equal(t, int64(1), calls.Load())
	assert.False(t, f.conv.Autopilot)
	fresh, err := f.store.ConversationByID(f.conv.ID)
	require.NoError(t, err)
	assert.False(t, fresh.Autopilot)

	// first-message notification plus exactly one deactivation notice
	assert.Equal(t, 2, f.notifier.Pending())

	// the downgrade is permanent: no second call on the next message
	body2 := "still there?"
	require.NoError(t, f.svc.ChatMessage(context.Background(), f.conv, f.customer, &body2, nil))
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, 2, f.notifier.Pending())
}

func TestAutopilotSkipsAdminSender(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`"should not happen"`))
	}))
	defer srv.Close()
	f.svc.AI = ai.NewClient(srv.URL, "")
	require.NoError(t, f.store.SetAutopilot(f.conv.ID, true))

	reply := "a human answer"
	require.NoError(t, f.svc.ChatMessage(context.Background(), f.conv, f.admin, &reply, nil))
	assert.Equal(t, int64(0), calls.Load())
}

func TestRequestPayment(t *testing.T) {
	f := newFixture(t)
	m := f.hub.Join(f.conv.Name)
	defer f.hub.Leave(m)

	require.NoError(t, f.svc.RequestPayment(f.conv, f.admin, "brake pads", 125000))

	echo := recvEcho(t, m)
	assert.Nil(t, echo.Message.Body)
	require.NotNil(t, echo.Message.Payment)
	assert.Equal(t, int64(125000), echo.Message.Payment.AmountCents)
	assert.Equal(t, "brake pads", echo.Message.Payment.Description)
	assert.Equal(t, 1, f.notifier.Pending())
}

func TestRequestDocument(t *testing.T) {
	f := newFixture(t)
	m := f.hub.Join(f.conv.Name)
	defer f.hub.Leave(m)

	require.NoError(t, f.svc.RequestDocument(f.conv, f.admin, "proof of ownership"))

	echo := recvEcho(t, m)
	assert.Nil(t, echo.Message.Body)
	require.NotNil(t, echo.Message.Document)
	require.NotNil(t, echo.Message.Document.Requirement)
	assert.Equal(t, "proof of ownership", *echo.Message.Document.Requirement)
	assert.Equal(t, 1, f.notifier.Pending())
}

func TestInboundWhatsApp(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.InboundWhatsApp(context.Background(), "5215512345678", "hola"))

	conv, err := f.store.ConversationByName("5215512345678")
	require.NoError(t, err)
	require.NotNil(t, conv.IntegrationID)
	integ, err := f.store.IntegrationByID(*conv.IntegrationID)
	require.NoError(t, err)
	assert.Equal(t, store.ChannelWhatsApp, integ.Channel)

	msgs, err := f.store.RecentMessages(conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hola", *msgs[0].Body)

	// second inbound reuses user and conversation
	require.NoError(t, f.svc.InboundWhatsApp(context.Background(), "5215512345678", "sigues ahi?"))
	again, err := f.store.ConversationByName("5215512345678")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)
}
