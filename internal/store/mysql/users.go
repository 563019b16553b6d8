package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"campus-queue/internal/models"
)

const (
	queryGetRole = `SELECT role FROM user_roles WHERE uid = ?`
	querySetRole = `INSERT INTO user_roles (uid, role) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE role = VALUES(role)`
	queryIsBlocked     = `SELECT 1 FROM blocked_users WHERE email = ?`
	queryBlock         = `INSERT IGNORE INTO blocked_users (email) VALUES (?)`
	queryAccountByMail = `SELECT uid, email, password_hash, email_verified, created_at FROM accounts WHERE email = ?`
	queryInsertAccount = `INSERT INTO accounts (uid, email, password_hash, email_verified, created_at)
		VALUES (?, ?, ?, ?, ?)`
)

func (s *Store) GetRole(ctx context.Context, uid string) (string, error) {
	var role string
	err := s.DB.QueryRowContext(ctx, queryGetRole, uid).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get role: %w", err)
	}
	return role, nil
}

func (s *Store) SetRole(ctx context.Context, uid, role string) error {
	if _, err := s.DB.ExecContext(ctx, querySetRole, uid, role); err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	return nil
}

func (s *Store) IsBlocked(ctx context.Context, email string) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx, queryIsBlocked, strings.ToLower(strings.TrimSpace(email))).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check blocklist: %w", err)
	}
	return true, nil
}

func (s *Store) Block(ctx context.Context, email string) error {
	if _, err := s.DB.ExecContext(ctx, queryBlock, strings.ToLower(strings.TrimSpace(email))); err != nil {
		return fmt.Errorf("block user: %w", err)
	}
	return nil
}

func (s *Store) FindAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var a models.Account
	err := s.DB.QueryRowContext(ctx, queryAccountByMail, strings.ToLower(strings.TrimSpace(email))).
		Scan(&a.UID, &a.Email, &a.PasswordHash, &a.EmailVerified, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return &a, nil
}

func (s *Store) CreateAccount(ctx context.Context, a models.Account) error {
	_, err := s.DB.ExecContext(ctx, queryInsertAccount,
		a.UID, strings.ToLower(a.Email), a.PasswordHash, a.EmailVerified, a.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}
