package store

import "fmt"

const integrationCols = "id, channel, telegram_token, whatsapp_token, web_token"

func scanIntegration(row interface{ Scan(...any) error }) (*Integration, error) {
	var in Integration
	err := row.Scan(&in.ID, &in.Channel, &in.TelegramToken, &in.WhatsAppToken, &in.WebToken)
	if err != nil {
		return nil, notFound(err)
	}
	return &in, nil
}

func (s *Store) IntegrationByID(id int64) (*Integration, error) {
	return scanIntegration(s.db.QueryRow("SELECT "+integrationCols+" FROM integrations WHERE id = ?", id))
}

func (s *Store) IntegrationByChannel(channel string) (*Integration, error) {
	return scanIntegration(s.db.QueryRow("SELECT "+integrationCols+" FROM integrations WHERE channel = ? LIMIT 1", channel))
}

// IntegrationByChannelOrCreate resolves the integration bound to a channel,
// creating a bare one on first use.
func (s *Store) IntegrationByChannelOrCreate(channel string) (*Integration, error) {
	in, err := s.IntegrationByChannel(channel)
	if err == nil {
		return in, nil
	}
	if err != ErrNotFound {
		return nil, err
	}
	res, err := s.db.Exec("INSERT INTO integrations (channel) VALUES (?)", channel)
	if err != nil {
		return nil, fmt.Errorf("insert integration: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.IntegrationByID(id)
}

// IntegrationByWebToken authenticates an anonymous widget connection.
func (s *Store) IntegrationByWebToken(token string) (*Integration, error) {
	return scanIntegration(s.db.QueryRow(
		"SELECT "+integrationCols+" FROM integrations WHERE channel = ? AND web_token = ?", ChannelWeb, token))
}

func (s *Store) SetIntegrationTokens(id int64, telegram, whatsapp, web *string) error {
	res, err := s.db.Exec(
		"UPDATE integrations SET telegram_token = ?, whatsapp_token = ?, web_token = ? WHERE id = ?",
		telegram, whatsapp, web, id)
	if err != nil {
		return fmt.Errorf("update integration: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
