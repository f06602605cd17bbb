package store

import (
	"fmt"
	"time"
)

const documentCols = "id, name, file, requirement, message_id, conversation_id, staging, created_at, updated_at"

func scanDocument(row interface{ Scan(...any) error }) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.Name, &d.File, &d.Requirement, &d.MessageID, &d.ConversationID,
		&d.Staging, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

func (s *Store) DocumentByID(id int64) (*Document, error) {
	return scanDocument(s.db.QueryRow("SELECT "+documentCols+" FROM documents WHERE id = ?", id))
}

// StagedDocument looks a staged document up within one conversation.
// Stale or foreign ids come back ErrNotFound and callers skip them.
func (s *Store) StagedDocument(id, conversationID int64) (*Document, error) {
	return scanDocument(s.db.QueryRow(
		"SELECT "+documentCols+" FROM documents WHERE id = ? AND conversation_id = ? AND staging = TRUE",
		id, conversationID))
}

func (s *Store) DocumentByMessage(messageID int64) (*Document, error) {
	return scanDocument(s.db.QueryRow("SELECT "+documentCols+" FROM documents WHERE message_id = ?", messageID))
}

func (s *Store) CreateDocument(d *Document) error {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		"INSERT INTO documents (name, file, requirement, message_id, conversation_id, staging, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		d.Name, d.File, d.Requirement, d.MessageID, d.ConversationID, d.Staging, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	d.ID, _ = res.LastInsertId()
	d.CreatedAt, d.UpdatedAt = now, now
	return nil
}

// AttachDocument commits a staged document to a message.
func (s *Store) AttachDocument(id, messageID int64) error {
	res, err := s.db.Exec(
		"UPDATE documents SET message_id = ?, staging = FALSE, updated_at = ? WHERE id = ?",
		messageID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("attach document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DocumentsByConversation(conversationID int64) ([]Document, error) {
	return s.queryDocuments("SELECT "+documentCols+" FROM documents WHERE conversation_id = ? ORDER BY created_at DESC", conversationID)
}

func (s *Store) AllDocuments() ([]Document, error) {
	return s.queryDocuments("SELECT " + documentCols + " FROM documents ORDER BY created_at DESC")
}

func (s *Store) queryDocuments(query string, args ...any) ([]Document, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// PurgeStagedDocuments deletes staging documents older than the cutoff and
// returns how many were removed. Run from the maintenance sweeper.
func (s *Store) PurgeStagedDocuments(olderThan time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM documents WHERE staging = TRUE AND created_at < ?", olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge staged documents: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
