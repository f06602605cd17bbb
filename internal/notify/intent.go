package notify

import "time"

// Intent kinds, one per agent- or customer-facing event.
const (
	KindNewConversation        = "conversation.new"
	KindMessageReceived        = "message.received"
	KindDocumentUploaded       = "document.uploaded"
	KindDocumentRequested      = "document.requested"
	KindPaymentRequested       = "payment.requested"
	KindPaymentSucceeded       = "payment.succeeded"
	KindConversationAssigned   = "conversation.assigned"
	KindConversationUnassigned = "conversation.unassigned"
	KindConversationArchived   = "conversation.archived"
	KindAutopilotDeactivated   = "autopilot.deactivated"
	KindPasswordReset          = "password.reset"
)

// Intent is one queued notification. The real-time path only enqueues
// intents; the worker owns delivery, so sender latency and failures never
// touch the message path.
type Intent struct {
	Kind         string    `json:"kind"`
	Subject      string    `json:"subject"`
	Recipients   []string  `json:"recipients"`
	Body         string    `json:"body"`
	Conversation string    `json:"conversation,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
