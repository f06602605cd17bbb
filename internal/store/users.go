package store

import (
	"fmt"
	"time"
)

const userCols = "id, email, phone, first_name, last_name, password_hash, created_at"

func (s *Store) scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Phone, &u.FirstName, &u.LastName, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	err = s.db.QueryRow("SELECT user_id, admin, ai FROM profiles WHERE user_id = ?", u.ID).
		Scan(&u.Profile.UserID, &u.Profile.Admin, &u.Profile.AI)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", notFound(err))
	}
	return &u, nil
}

// CreateUser inserts a user together with its profile row. Every user gets
// a profile; there is no path that creates one without the other.
func (s *Store) CreateUser(email, phone *string, firstName, lastName, passwordHash string) (*User, error) {
	res, err := s.db.Exec(
		"INSERT INTO users (email, phone, first_name, last_name, password_hash, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		email, phone, firstName, lastName, passwordHash, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, _ := res.LastInsertId()
	if _, err := s.db.Exec("INSERT INTO profiles (user_id) VALUES (?)", id); err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	return s.UserByID(id)
}

func (s *Store) UserByID(id int64) (*User, error) {
	return s.scanUser(s.db.QueryRow("SELECT "+userCols+" FROM users WHERE id = ?", id))
}

func (s *Store) UserByEmail(email string) (*User, error) {
	return s.scanUser(s.db.QueryRow("SELECT "+userCols+" FROM users WHERE email = ?", email))
}

// UserByPhoneOrCreate resolves the user owning a phone number, creating a
// bare phone-only user (no email, no password) on first contact.
func (s *Store) UserByPhoneOrCreate(phone string) (*User, error) {
	u, err := s.scanUser(s.db.QueryRow("SELECT "+userCols+" FROM users WHERE phone = ?", phone))
	if err == nil {
		return u, nil
	}
	if err != ErrNotFound {
		return nil, err
	}
	return s.CreateUser(nil, &phone, "", "", "")
}

func (s *Store) SetPassword(userID int64, passwordHash string) error {
	res, err := s.db.Exec("UPDATE users SET password_hash = ? WHERE id = ?", passwordHash, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetAdmin(userID int64, admin bool) error {
	res, err := s.db.Exec("UPDATE profiles SET admin = ? WHERE user_id = ?", admin, userID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetAI(userID int64, ai bool) error {
	res, err := s.db.Exec("UPDATE profiles SET ai = ? WHERE user_id = ?", ai, userID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AIUser returns the single user whose profile carries AI=true: the author
// identity for autopilot replies.
func (s *Store) AIUser() (*User, error) {
	return s.scanUser(s.db.QueryRow(
		"SELECT " + userCols + " FROM users WHERE id = (SELECT user_id FROM profiles WHERE ai = TRUE LIMIT 1)"))
}

// EnsureSentinels guarantees the two designated identities exist: the
// "anonymous" author used for web-widget messages and the AI author used
// for autopilot replies.
func (s *Store) EnsureSentinels() (anon, ai *User, err error) {
	anonEmail := "anonymous"
	anon, err = s.UserByEmail(anonEmail)
	if err == ErrNotFound {
		anon, err = s.CreateUser(&anonEmail, nil, "", "", "")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("ensure anonymous user: %w", err)
	}

	ai, err = s.AIUser()
	if err == ErrNotFound {
		ai, err = s.CreateUser(nil, nil, "", "", "")
		if err == nil {
			if err = s.SetAI(ai.ID, true); err == nil {
				ai, err = s.UserByID(ai.ID)
			}
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("ensure AI user: %w", err)
	}
	return anon, ai, nil
}

// AdminEmails lists the notification recipients for admin-facing events.
func (s *Store) AdminEmails() ([]string, error) {
	rows, err := s.db.Query(
		"SELECT u.email FROM users u JOIN profiles p ON p.user_id = u.id WHERE p.admin = TRUE AND u.email IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("query admins: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan admin email: %w", err)
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}
