package db

import (
	"context"
	"database/sql"
	"fmt"

	"rdolist/cardtree"
	"rdolist/models"
)

type scanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, first_name, last_name, email, password_hash, secret_key,
	secret_code, code_sent_at, confirmed_at, active, created_at, updated_at`

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.SecretKey,
		&u.SecretCode, &u.CodeSentAt, &u.ConfirmedAt, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// CreateUser inserts u and fills in its id and timestamps.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (first_name, last_name, email, password_hash, secret_key,
			secret_code, code_sent_at, confirmed_at, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.FirstName, u.LastName, u.Email, u.PasswordHash, u.SecretKey,
		u.SecretCode, u.CodeSentAt, u.ConfirmedAt, u.Active, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID, err = res.LastInsertId()
	return err
}

func (s *Store) UserByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email))
}

func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE email = ?", email).Scan(&n)
	return n > 0, err
}

// UpdateUser writes every mutable column of u.
func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	u.UpdatedAt = s.now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET first_name = ?, last_name = ?, password_hash = ?, secret_key = ?,
			secret_code = ?, code_sent_at = ?, confirmed_at = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		u.FirstName, u.LastName, u.PasswordHash, u.SecretKey,
		u.SecretCode, u.CodeSentAt, u.ConfirmedAt, u.Active, u.UpdatedAt, u.ID)
	if err != nil {
		return fmt.Errorf("update user %d: %w", u.ID, err)
	}
	return requireAffected(res)
}

// DeleteUser removes the user with all owned todos and cards. Cards are
// removed leaf first so no parent ever disappears before its children.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		cards, err := s.ownerCards(ctx, tx, id, false)
		if err != nil {
			return err
		}
		forest := cardtree.New(cards)

		if _, err := tx.ExecContext(ctx, "DELETE FROM todos WHERE owner_id = ?", id); err != nil {
			return fmt.Errorf("delete todos of user %d: %w", id, err)
		}
		for _, root := range forest.Roots() {
			if err := deleteLevels(ctx, tx, forest.Levels(root)); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("delete user %d: %w", id, err)
		}
		return requireAffected(res)
	})
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
