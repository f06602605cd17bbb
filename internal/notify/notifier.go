// Package notify decouples best-effort side effects from the real-time
// message path: the core enqueues typed intents, a worker delivers them.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/autoserviceai/chatd/internal/store"
)

const queueSize = 256

// Sender delivers one intent. Errors are logged by the worker, never
// propagated to the enqueuer.
type Sender interface {
	Send(ctx context.Context, intent Intent) error
}

type Notifier struct {
	store   *store.Store
	senders []Sender
	queue   chan Intent
}

func NewNotifier(st *store.Store, senders ...Sender) *Notifier {
	return &Notifier{
		store:   st,
		senders: senders,
		queue:   make(chan Intent, queueSize),
	}
}

// Run drains the queue until ctx is done. Start it once, as a goroutine.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case intent := <-n.queue:
			for _, s := range n.senders {
				if err := s.Send(ctx, intent); err != nil {
					slog.Warn("notification delivery failed",
						"kind", intent.Kind, "recipients", len(intent.Recipients), "error", err)
				}
			}
		}
	}
}

// Pending reports queued, undelivered intents.
func (n *Notifier) Pending() int { return len(n.queue) }

func (n *Notifier) enqueue(intent Intent) {
	intent.CreatedAt = time.Now().UTC()
	if len(intent.Recipients) == 0 {
		return
	}
	select {
	case n.queue <- intent:
	default:
		slog.Warn("notification queue full, intent dropped", "kind", intent.Kind)
	}
}

func (n *Notifier) adminRecipients() []string {
	emails, err := n.store.AdminEmails()
	if err != nil {
		slog.Warn("resolving admin recipients failed", "error", err)
		return nil
	}
	return emails
}

func (n *Notifier) ownerEmail(conv *store.Conversation) string {
	if conv.UserID == nil {
		return ""
	}
	owner, err := n.store.UserByID(*conv.UserID)
	if err != nil || owner.Email == nil {
		return ""
	}
	return *owner.Email
}

func (n *Notifier) assigneeEmail(conv *store.Conversation) string {
	if conv.AssignedToID == nil {
		return ""
	}
	assignee, err := n.store.UserByID(*conv.AssignedToID)
	if err != nil || assignee.Email == nil {
		return ""
	}
	return *assignee.Email
}

// NewConversation tells every admin a first contact arrived.
func (n *Notifier) NewConversation(conv *store.Conversation) {
	n.enqueue(Intent{
		Kind:         KindNewConversation,
		Subject:      "New conversation started",
		Recipients:   n.adminRecipients(),
		Body:         fmt.Sprintf("Conversation %q was just opened.", conv.Name),
		Conversation: conv.Name,
	})
}

// MessageReceived routes the agent-facing new-message notification: all
// admins when unassigned, the owner when the assignee is the sender, the
// assignee otherwise.
func (n *Notifier) MessageReceived(conv *store.Conversation, msg *store.MessageView) {
	var recipients []string
	assignee := n.assigneeEmail(conv)
	switch {
	case assignee == "":
		recipients = n.adminRecipients()
	case conv.AssignedToID != nil && msg.FromUser.ID == *conv.AssignedToID:
		if owner := n.ownerEmail(conv); owner != "" {
			recipients = []string{owner}
		}
	default:
		recipients = []string{assignee}
	}
	body := ""
	if msg.Body != nil {
		body = *msg.Body
	}
	n.enqueue(Intent{
		Kind:         KindMessageReceived,
		Subject:      "New message received",
		Recipients:   recipients,
		Body:         fmt.Sprintf("%s: %s", msg.FromUser.Display(), body),
		Conversation: conv.Name,
	})
}

// DocumentUploaded goes to the owner, and the assignee when present.
func (n *Notifier) DocumentUploaded(conv *store.Conversation, doc *store.Document) {
	var recipients []string
	if owner := n.ownerEmail(conv); owner != "" {
		recipients = append(recipients, owner)
	}
	if assignee := n.assigneeEmail(conv); assignee != "" {
		recipients = append(recipients, assignee)
	}
	name := ""
	if doc.Name != nil {
		name = *doc.Name
	}
	n.enqueue(Intent{
		Kind:         KindDocumentUploaded,
		Subject:      "New document received",
		Recipients:   recipients,
		Body:         fmt.Sprintf("Document %q was uploaded to conversation %q.", name, conv.Name),
		Conversation: conv.Name,
	})
}

// DocumentRequested tells the conversation owner an agent asked for a file.
func (n *Notifier) DocumentRequested(conv *store.Conversation, doc *store.Document) {
	req := ""
	if doc.Requirement != nil {
		req = *doc.Requirement
	}
	var recipients []string
	if owner := n.ownerEmail(conv); owner != "" {
		recipients = []string{owner}
	}
	n.enqueue(Intent{
		Kind:         KindDocumentRequested,
		Subject:      "Document requested",
		Recipients:   recipients,
		Body:         fmt.Sprintf("Please provide: %s", req),
		Conversation: conv.Name,
	})
}

// PaymentRequested tells the conversation owner an agent requested payment.
func (n *Notifier) PaymentRequested(conv *store.Conversation, pay *store.Payment) {
	var recipients []string
	if owner := n.ownerEmail(conv); owner != "" {
		recipients = []string{owner}
	}
	n.enqueue(Intent{
		Kind:         KindPaymentRequested,
		Subject:      "Payment requested",
		Recipients:   recipients,
		Body:         fmt.Sprintf("%s — %d cents", pay.Description, pay.AmountCents),
		Conversation: conv.Name,
	})
}

// PaymentSucceeded confirms to the payer and tells the admins.
func (n *Notifier) PaymentSucceeded(conv *store.Conversation, pay *store.Payment) {
	if owner := n.ownerEmail(conv); owner != "" {
		n.enqueue(Intent{
			Kind:         KindPaymentSucceeded,
			Subject:      "Payment completed",
			Recipients:   []string{owner},
			Body:         fmt.Sprintf("Your payment of %d cents (%s) was received.", pay.AmountCents, pay.Description),
			Conversation: conv.Name,
		})
	}
	n.enqueue(Intent{
		Kind:         KindPaymentSucceeded,
		Subject:      "New payment received",
		Recipients:   n.adminRecipients(),
		Body:         fmt.Sprintf("Payment of %d cents received on conversation %q.", pay.AmountCents, conv.Name),
		Conversation: conv.Name,
	})
}

// AssignmentChanged notifies admins of (un)assignment.
func (n *Notifier) AssignmentChanged(conv *store.Conversation, assigned bool) {
	kind, subject := KindConversationAssigned, "Conversation assigned"
	if !assigned {
		kind, subject = KindConversationUnassigned, "Conversation unassigned"
	}
	n.enqueue(Intent{
		Kind:         kind,
		Subject:      subject,
		Recipients:   n.adminRecipients(),
		Body:         fmt.Sprintf("Conversation %q assignment changed.", conv.Name),
		Conversation: conv.Name,
	})
}

// ArchiveChanged notifies admins the archived flag flipped.
func (n *Notifier) ArchiveChanged(conv *store.Conversation) {
	n.enqueue(Intent{
		Kind:         KindConversationArchived,
		Subject:      "Conversation archive state changed",
		Recipients:   n.adminRecipients(),
		Body:         fmt.Sprintf("Conversation %q archived=%t.", conv.Name, conv.Archived),
		Conversation: conv.Name,
	})
}

// AutopilotDeactivated is the one-shot downgrade notice sent when the AI
// responder fails.
func (n *Notifier) AutopilotDeactivated(conv *store.Conversation) {
	n.enqueue(Intent{
		Kind:         KindAutopilotDeactivated,
		Subject:      "Autopilot deactivated",
		Recipients:   n.adminRecipients(),
		Body:         fmt.Sprintf("Autopilot was disabled on conversation %q after a responder failure.", conv.Name),
		Conversation: conv.Name,
	})
}

// PasswordReset emails a single-use reset link.
func (n *Notifier) PasswordReset(email, link string) {
	n.enqueue(Intent{
		Kind:       KindPasswordReset,
		Subject:    "Reset your password",
		Recipients: []string{email},
		Body:       fmt.Sprintf("Use this link to reset your password: %s", link),
	})
}
