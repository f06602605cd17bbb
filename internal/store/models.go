package store

import "time"

// Conversation lifecycle states.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusBlocked  = "blocked"
	StatusUrgent   = "urgent"
	StatusResolved = "resolved"
)

// Integration channels.
const (
	ChannelIntegrated = "integrated"
	ChannelWhatsApp   = "whatsapp"
	ChannelTelegram   = "telegram"
	ChannelWeb        = "web"
)

type User struct {
	ID           int64     `json:"id"`
	Email        *string   `json:"email"`
	Phone        *string   `json:"phone"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`

	Profile Profile `json:"profile"`
}

// Display returns the identity used as "sender" in broadcast frames:
// email when present, else phone, else "AI".
func (u *User) Display() string {
	if u.Email != nil && *u.Email != "" {
		return *u.Email
	}
	if u.Phone != nil && *u.Phone != "" {
		return *u.Phone
	}
	return "AI"
}

// Profile carries the per-user flags. Exactly one profile with AI=true
// designates the autopilot author identity.
type Profile struct {
	UserID int64 `json:"-"`
	Admin  bool  `json:"admin"`
	AI     bool  `json:"-"`
}

type Integration struct {
	ID            int64   `json:"id"`
	Channel       string  `json:"channel"`
	TelegramToken *string `json:"telegram_token"`
	WhatsAppToken *string `json:"whatsapp_token"`
	WebToken      *string `json:"web_token"`
}

// Conversation is a named thread of messages. The name is the sole key
// addressing its broadcast group; renaming is unsupported.
type Conversation struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	IntegrationID *int64    `json:"-"`
	UserID        *int64    `json:"-"`
	AssignedToID  *int64    `json:"assigned_to"`
	Status        string    `json:"status"`
	Archived      bool      `json:"archived"`
	Autopilot     bool      `json:"autopilot"`
	Score         float64   `json:"score"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Message is immutable after creation except for the read flag.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation"`
	FromUserID     int64     `json:"-"`
	Body           *string   `json:"message"`
	Image          *string   `json:"image"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
}

// Document is an uploaded or requested file. While staging is true it is
// not yet attached to a message.
type Document struct {
	ID             int64     `json:"id"`
	Name           *string   `json:"name"`
	File           *string   `json:"file"`
	Requirement    *string   `json:"requirement"`
	MessageID      *int64    `json:"message"`
	ConversationID int64     `json:"conversation"`
	Staging        bool      `json:"staging"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Payment struct {
	ID             int64      `json:"id"`
	MessageID      *int64     `json:"-"`
	ConversationID int64      `json:"-"`
	Description    string     `json:"description"`
	AmountCents    int64      `json:"amount_cents"`
	Paid           bool       `json:"paid"`
	DatePaid       *time.Time `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"-"`
}

// PaymentIntent maps a payment-gateway intent id back to a Payment.
type PaymentIntent struct {
	ID        int64
	IntentID  string
	PaymentID int64
}

// MessageView is the wire shape of a message with its relations resolved,
// used both by the REST message list and by broadcast fan-out.
type MessageView struct {
	ID           int64     `json:"id"`
	Conversation int64     `json:"conversation"`
	FromUser     *User     `json:"from_user"`
	Body         *string   `json:"message"`
	Read         bool      `json:"read"`
	Image        *string   `json:"image"`
	Document     *Document `json:"document"`
	Payment      *Payment  `json:"payment"`
	CreatedAt    time.Time `json:"created_at"`
}

// ConversationView is the REST shape of a conversation.
type ConversationView struct {
	ID          int64        `json:"id"`
	Integration *Integration `json:"integration"`
	User        *User        `json:"user"`
	Name        string       `json:"name"`
	Status      string       `json:"status"`
	Archived    bool         `json:"archived"`
	Autopilot   bool         `json:"autopilot"`
	AssignedTo  *int64       `json:"assigned_to"`
	LastMessage *MessageView `json:"last_message"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
