package store

import (
	"fmt"
	"time"
)

const paymentCols = "id, message_id, conversation_id, description, amount_cents, paid, date_paid, created_at, updated_at"

func scanPayment(row interface{ Scan(...any) error }) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.MessageID, &p.ConversationID, &p.Description, &p.AmountCents,
		&p.Paid, &p.DatePaid, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) PaymentByID(id int64) (*Payment, error) {
	return scanPayment(s.db.QueryRow("SELECT "+paymentCols+" FROM payments WHERE id = ?", id))
}

func (s *Store) PaymentByMessage(messageID int64) (*Payment, error) {
	return scanPayment(s.db.QueryRow("SELECT "+paymentCols+" FROM payments WHERE message_id = ?", messageID))
}

func (s *Store) CreatePayment(p *Payment) error {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		"INSERT INTO payments (message_id, conversation_id, description, amount_cents, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		p.MessageID, p.ConversationID, p.Description, p.AmountCents, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

func (s *Store) UpdatePayment(p *Payment) error {
	res, err := s.db.Exec(
		"UPDATE payments SET description = ?, amount_cents = ?, updated_at = ? WHERE id = ?",
		p.Description, p.AmountCents, time.Now().UTC(), p.ID)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeletePayment(id int64) error {
	res, err := s.db.Exec("DELETE FROM payments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPaymentPaid records a successful gateway charge.
func (s *Store) MarkPaymentPaid(id int64, when time.Time) error {
	res, err := s.db.Exec(
		"UPDATE payments SET paid = TRUE, date_paid = ?, updated_at = ? WHERE id = ?",
		when.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark payment paid: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) PaymentsByConversation(conversationID int64) ([]Payment, error) {
	return s.queryPayments("SELECT "+paymentCols+" FROM payments WHERE conversation_id = ? ORDER BY created_at DESC", conversationID)
}

func (s *Store) AllPayments() ([]Payment, error) {
	return s.queryPayments("SELECT " + paymentCols + " FROM payments ORDER BY created_at DESC")
}

func (s *Store) queryPayments(query string, args ...any) ([]Payment, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// CreatePaymentIntent records the gateway intent id issued for a payment.
func (s *Store) CreatePaymentIntent(paymentID int64, intentID string) error {
	if _, err := s.db.Exec("INSERT INTO payment_intents (intent_id, payment_id) VALUES (?, ?)", intentID, paymentID); err != nil {
		return fmt.Errorf("insert payment intent: %w", err)
	}
	return nil
}

// PaymentByIntent maps a gateway intent id back to its payment.
func (s *Store) PaymentByIntent(intentID string) (*Payment, error) {
	var paymentID int64
	err := s.db.QueryRow("SELECT payment_id FROM payment_intents WHERE intent_id = ?", intentID).Scan(&paymentID)
	if err != nil {
		return nil, notFound(err)
	}
	return s.PaymentByID(paymentID)
}
