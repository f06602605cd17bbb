package chat

import "github.com/autoserviceai/chatd/internal/store"

// Event kinds accepted from clients.
const (
	EventTyping          = "typing"
	EventChatMessage     = "chat_message"
	EventRequestPayment  = "request_payment"
	EventRequestDocument = "request_document"
)

// Event kinds emitted to the group / connection.
const (
	EventTypingEcho      = "typing_echo"
	EventChatMessageEcho = "chat_message_echo"
	EventLastMessages    = "last_messages"
)

// InboundEvent is the client→server envelope. Fields beyond Type are
// populated per event kind.
type InboundEvent struct {
	Type        string  `json:"type"`
	Typing      bool    `json:"typing,omitempty"`
	Message     *string `json:"message"`
	Documents   []int64 `json:"documents,omitempty"`
	Description string  `json:"description,omitempty"`
	Amount      int64   `json:"amount,omitempty"`
	Document    string  `json:"document,omitempty"`
}

// TypingEcho is relayed verbatim to the group, never persisted.
type TypingEcho struct {
	Type   string `json:"type"`
	Sender string `json:"sender"`
	Typing bool   `json:"typing"`
}

// MessageEcho carries one persisted message to every group member.
type MessageEcho struct {
	Type    string             `json:"type"`
	Sender  string             `json:"sender"`
	Message *store.MessageView `json:"message"`
}

// LastMessages is sent once, right after a successful connect. Conversation
// carries the group name so widget clients can resume a fresh thread.
type LastMessages struct {
	Type         string               `json:"type"`
	Conversation string               `json:"conversation"`
	Messages     []*store.MessageView `json:"messages"`
}
