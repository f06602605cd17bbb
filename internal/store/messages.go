package store

import (
	"fmt"
	"time"
)

const messageCols = "id, conversation_id, from_user, body, image, read, created_at"

func scanMessage(row interface{ Scan(...any) error }) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.ConversationID, &m.FromUserID, &m.Body, &m.Image, &m.Read, &m.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (s *Store) MessageByID(id int64) (*Message, error) {
	return scanMessage(s.db.QueryRow("SELECT "+messageCols+" FROM messages WHERE id = ?", id))
}

// CreateMessage persists a message. body may be nil for carrier messages
// that exist only to hold a document or payment.
func (s *Store) CreateMessage(conversationID, fromUserID int64, body *string, read bool) (*Message, error) {
	res, err := s.db.Exec(
		"INSERT INTO messages (conversation_id, from_user, body, read, created_at) VALUES (?, ?, ?, ?, ?)",
		conversationID, fromUserID, body, read, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, _ := res.LastInsertId()
	s.touchConversation(conversationID)
	return s.MessageByID(id)
}

func (s *Store) queryMessages(query string, args ...any) ([]Message, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// RecentMessages returns up to limit messages, newest first.
func (s *Store) RecentMessages(conversationID int64, limit int) ([]Message, error) {
	return s.queryMessages(
		"SELECT "+messageCols+" FROM messages WHERE conversation_id = ? ORDER BY created_at DESC, id DESC LIMIT ?",
		conversationID, limit)
}

// MessagesPage returns a page of messages, newest first.
func (s *Store) MessagesPage(conversationID int64, limit, offset int) ([]Message, error) {
	return s.queryMessages(
		"SELECT "+messageCols+" FROM messages WHERE conversation_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		conversationID, limit, offset)
}

// LastMessage returns the newest message of a conversation, or ErrNotFound.
func (s *Store) LastMessage(conversationID int64) (*Message, error) {
	return scanMessage(s.db.QueryRow(
		"SELECT "+messageCols+" FROM messages WHERE conversation_id = ? ORDER BY created_at DESC, id DESC LIMIT 1",
		conversationID))
}

func (s *Store) MessageCount(conversationID int64) (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM messages WHERE conversation_id = ?", conversationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

func (s *Store) MarkMessageRead(id int64) error {
	res, err := s.db.Exec("UPDATE messages SET read = TRUE WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MessageView resolves the broadcast/REST shape of one message: sender with
// profile, plus attached document and payment when present.
func (s *Store) MessageView(m *Message) (*MessageView, error) {
	u, err := s.UserByID(m.FromUserID)
	if err != nil {
		return nil, fmt.Errorf("message sender: %w", err)
	}
	v := &MessageView{
		ID: m.ID, Conversation: m.ConversationID, FromUser: u,
		Body: m.Body, Read: m.Read, Image: m.Image, CreatedAt: m.CreatedAt,
	}
	doc, err := s.DocumentByMessage(m.ID)
	if err != nil && err != ErrNotFound {
		return nil, err
	}
	v.Document = doc
	pay, err := s.PaymentByMessage(m.ID)
	if err != nil && err != ErrNotFound {
		return nil, err
	}
	v.Payment = pay
	return v, nil
}

// MessageViews resolves the wire shape for a slice, preserving order.
func (s *Store) MessageViews(msgs []Message) ([]*MessageView, error) {
	out := make([]*MessageView, 0, len(msgs))
	for i := range msgs {
		v, err := s.MessageView(&msgs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
