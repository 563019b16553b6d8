package mysql

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS queues (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		server_email VARCHAR(255) NOT NULL,
		no_show_timeout_seconds INT NOT NULL DEFAULT 300,
		created_at DATETIME(6) NOT NULL,
		KEY idx_queues_created (created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS tokens (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		queue_id VARCHAR(64) NOT NULL,
		owner_id VARCHAR(128) NOT NULL,
		owner_email VARCHAR(255) NOT NULL DEFAULT '',
		priority INT NOT NULL,
		enqueued_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_tokens_owner (queue_id, owner_id),
		KEY idx_tokens_dispatch (queue_id, priority, enqueued_at, id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS current_serving (
		queue_id VARCHAR(64) NOT NULL PRIMARY KEY,
		token_id VARCHAR(64) NOT NULL,
		owner_id VARCHAR(128) NOT NULL,
		owner_email VARCHAR(255) NOT NULL DEFAULT '',
		priority INT NOT NULL,
		called_at DATETIME(6) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS no_shows (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		queue_id VARCHAR(64) NOT NULL,
		owner_id VARCHAR(128) NOT NULL,
		owner_email VARCHAR(255) NOT NULL DEFAULT '',
		called_at DATETIME(6) NULL,
		marked_at DATETIME(6) NOT NULL,
		reason VARCHAR(255) NOT NULL,
		KEY idx_no_shows_queue (queue_id, marked_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS user_roles (
		uid VARCHAR(128) NOT NULL PRIMARY KEY,
		role VARCHAR(32) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS blocked_users (
		email VARCHAR(255) NOT NULL PRIMARY KEY
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS accounts (
		uid VARCHAR(128) NOT NULL PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		email_verified TINYINT(1) NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_accounts_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates missing tables. It is safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
