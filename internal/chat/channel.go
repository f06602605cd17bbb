package chat

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/autoserviceai/chatd/internal/notify"
	"github.com/autoserviceai/chatd/internal/store"
	"github.com/autoserviceai/chatd/internal/ticket"
)

// ConnectRequest carries the handshake parameters a channel may consume.
type ConnectRequest struct {
	Ticket       string // single-use ticket (direct, admin)
	Conversation string // admin: required path param; anonymous: optional resume name
	WebToken     string // anonymous: widget integration token
}

// Channel resolves a new connection to an identity and a conversation,
// enforcing the channel's own authorization rules. One session handler
// serves every channel; only resolution differs.
type Channel interface {
	Resolve(req ConnectRequest) (*store.User, *store.Conversation, error)
}

// NormalizeName maps an email to a conversation/group name. Group names
// must not carry '@'.
func NormalizeName(email string) string {
	return strings.ReplaceAll(email, "@", ".")
}

// randomName generates the 16-character identifier for fresh anonymous
// conversations.
func randomName() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// DirectChannel serves authenticated customers: ticket handoff, one
// conversation per user keyed by normalized email, lazily created under the
// integrated integration.
type DirectChannel struct {
	Store    *store.Store
	Tickets  *ticket.Registry
	Notifier *notify.Notifier
}

func (c *DirectChannel) Resolve(req ConnectRequest) (*store.User, *store.Conversation, error) {
	userID, err := c.Tickets.Redeem(req.Ticket)
	if err != nil {
		return nil, nil, err
	}
	user, err := c.Store.UserByID(userID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve ticket user: %w", err)
	}
	if user.Email == nil {
		return nil, nil, ErrUnauthorized
	}

	integ, err := c.Store.IntegrationByChannelOrCreate(store.ChannelIntegrated)
	if err != nil {
		return nil, nil, err
	}
	name := NormalizeName(*user.Email)
	conv, created, err := c.Store.ConversationByNameOrCreate(name, &integ.ID, &user.ID, true)
	if err != nil {
		return nil, nil, err
	}
	if created {
		c.Notifier.NewConversation(conv)
	}
	return user, conv, nil
}

// AdminChannel serves the internal agent UI: the conversation is named
// explicitly and must already exist, and the redeemed identity must carry
// admin privilege.
type AdminChannel struct {
	Store   *store.Store
	Tickets *ticket.Registry
}

func (c *AdminChannel) Resolve(req ConnectRequest) (*store.User, *store.Conversation, error) {
	if req.Conversation == "" {
		return nil, nil, ErrConversationNotFound
	}
	userID, err := c.Tickets.Redeem(req.Ticket)
	if err != nil {
		return nil, nil, err
	}
	user, err := c.Store.UserByID(userID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve ticket user: %w", err)
	}
	if !user.Profile.Admin {
		return nil, nil, ErrUnauthorized
	}

	conv, err := c.Store.ConversationByName(NormalizeName(req.Conversation))
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil, ErrConversationNotFound
		}
		return nil, nil, err
	}
	return user, conv, nil
}

// AnonymousChannel serves the embeddable web widget. No user identity; a
// valid web integration token gates access, and autopilot stays off for
// anonymous threads.
type AnonymousChannel struct {
	Store    *store.Store
	Notifier *notify.Notifier
}

func (c *AnonymousChannel) Resolve(req ConnectRequest) (*store.User, *store.Conversation, error) {
	integ, err := c.Store.IntegrationByWebToken(req.WebToken)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil, ErrInvalidIntegration
		}
		return nil, nil, err
	}

	name := req.Conversation
	if name == "" {
		name = randomName()
	}
	conv, created, err := c.Store.ConversationByNameOrCreate(name, &integ.ID, nil, false)
	if err != nil {
		return nil, nil, err
	}
	if created {
		c.Notifier.NewConversation(conv)
	}
	return nil, conv, nil
}
