package store

import (
	"fmt"
	"time"
)

const conversationCols = "id, name, integration_id, user_id, assigned_to, status, archived, autopilot, score, created_at, updated_at"

func scanConversation(row interface{ Scan(...any) error }) (*Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.Name, &c.IntegrationID, &c.UserID, &c.AssignedToID,
		&c.Status, &c.Archived, &c.Autopilot, &c.Score, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) ConversationByID(id int64) (*Conversation, error) {
	return scanConversation(s.db.QueryRow("SELECT "+conversationCols+" FROM conversations WHERE id = ?", id))
}

func (s *Store) ConversationByName(name string) (*Conversation, error) {
	return scanConversation(s.db.QueryRow("SELECT "+conversationCols+" FROM conversations WHERE name = ?", name))
}

// CreateConversation inserts a conversation. autopilot starts enabled;
// anonymous web conversations disable it at the call site.
func (s *Store) CreateConversation(name string, integrationID, userID *int64, autopilot bool) (*Conversation, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		"INSERT INTO conversations (name, integration_id, user_id, autopilot, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		name, integrationID, userID, autopilot, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.ConversationByID(id)
}

// ConversationByNameOrCreate resolves the conversation for (name,
// integration), creating it on first contact. The second return reports
// whether a new row was created.
func (s *Store) ConversationByNameOrCreate(name string, integrationID, userID *int64, autopilot bool) (*Conversation, bool, error) {
	var row = s.db.QueryRow("SELECT "+conversationCols+" FROM conversations WHERE name = ? AND integration_id IS ?", name, integrationID)
	c, err := scanConversation(row)
	if err == nil {
		return c, false, nil
	}
	if err != ErrNotFound {
		return nil, false, err
	}
	c, err = s.CreateConversation(name, integrationID, userID, autopilot)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

func (s *Store) Conversations(archived bool) ([]Conversation, error) {
	rows, err := s.db.Query("SELECT "+conversationCols+" FROM conversations WHERE archived = ? ORDER BY updated_at DESC", archived)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *Store) touchConversation(id int64) {
	s.db.Exec("UPDATE conversations SET updated_at = ? WHERE id = ?", time.Now().UTC(), id)
}

func (s *Store) UpdateConversation(c *Conversation) error {
	res, err := s.db.Exec(
		"UPDATE conversations SET status = ?, archived = ?, autopilot = ?, score = ?, assigned_to = ?, updated_at = ? WHERE id = ?",
		c.Status, c.Archived, c.Autopilot, c.Score, c.AssignedToID, time.Now().UTC(), c.ID,
	)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteConversation(id int64) error {
	res, err := s.db.Exec("DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetArchived(id int64, archived bool) error {
	res, err := s.db.Exec("UPDATE conversations SET archived = ?, updated_at = ? WHERE id = ?", archived, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update archived: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAutopilot durably flips the autopilot flag. The off transition is the
// permanent downgrade taken when the AI responder fails.
func (s *Store) SetAutopilot(id int64, enabled bool) error {
	res, err := s.db.Exec("UPDATE conversations SET autopilot = ?, updated_at = ? WHERE id = ?", enabled, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update autopilot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetAssignee(id int64, userID *int64) error {
	res, err := s.db.Exec("UPDATE conversations SET assigned_to = ?, updated_at = ? WHERE id = ?", userID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update assignee: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ConversationByUser returns the direct conversation owned by a user.
func (s *Store) ConversationByUser(userID int64) (*Conversation, error) {
	return scanConversation(s.db.QueryRow("SELECT "+conversationCols+" FROM conversations WHERE user_id = ? ORDER BY id LIMIT 1", userID))
}

// ConversationView resolves the REST shape with integration, owner and
// last message loaded.
func (s *Store) ConversationView(c *Conversation) (*ConversationView, error) {
	v := &ConversationView{
		ID: c.ID, Name: c.Name, Status: c.Status, Archived: c.Archived,
		Autopilot: c.Autopilot, AssignedTo: c.AssignedToID,
		CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
	if c.IntegrationID != nil {
		integ, err := s.IntegrationByID(*c.IntegrationID)
		if err != nil && err != ErrNotFound {
			return nil, err
		}
		v.Integration = integ
	}
	if c.UserID != nil {
		u, err := s.UserByID(*c.UserID)
		if err != nil && err != ErrNotFound {
			return nil, err
		}
		v.User = u
	}
	last, err := s.LastMessage(c.ID)
	if err != nil && err != ErrNotFound {
		return nil, err
	}
	if last != nil {
		mv, err := s.MessageView(last)
		if err != nil {
			return nil, err
		}
		v.LastMessage = mv
	}
	return v, nil
}
