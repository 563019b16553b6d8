// Package mysql is the production store.Store backed by MySQL. Queue scoped
// transactions start by locking the queue row with SELECT ... FOR UPDATE,
// which serializes concurrent writers on the same queue.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"

	"campus-queue/internal/models"
	"campus-queue/internal/store"
)

const errDuplicateEntry = 1062

var _ store.Store = (*Store)(nil)

// Store wraps the database connection.
type Store struct {
	DB *sql.DB
}

// Open connects to dsn and verifies the connection. Timestamps are always
// parsed and stored in UTC.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("database dsn is required")
	}
	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql store: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql store: %w", err)
	}
	return New(db), nil
}

// New wraps an existing connection.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

func (s *Store) Tx(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&txn{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// View runs fn in a READ ONLY transaction. InnoDB serves its plain SELECTs
// from a consistent snapshot without taking row locks.
func (s *Store) View(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin read-only transaction: %w", err)
	}
	if err := fn(&txn{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit read-only transaction: %w", err)
	}
	return nil
}

const (
	queueColumns = `id, name, server_email, no_show_timeout_seconds, created_at`
	tokenColumns = `id, queue_id, owner_id, owner_email, priority, enqueued_at`

	queryListQueues  = `SELECT ` + queueColumns + ` FROM queues ORDER BY created_at, id`
	queryGetQueue    = `SELECT ` + queueColumns + ` FROM queues WHERE id = ?`
	queryLockQueue   = queryGetQueue + ` FOR UPDATE`
	queryInsertQueue = `INSERT INTO queues (` + queueColumns + `) VALUES (?, ?, ?, ?, ?)`
	queryUpdateQueue = `UPDATE queues SET name = ?, server_email = ?, no_show_timeout_seconds = ? WHERE id = ?`

	queryNextToken = `SELECT ` + tokenColumns + ` FROM tokens WHERE queue_id = ?
		ORDER BY priority, enqueued_at, id LIMIT 1`
	queryGetToken     = `SELECT ` + tokenColumns + ` FROM tokens WHERE queue_id = ? AND id = ?`
	queryTokenByOwner = `SELECT ` + tokenColumns + ` FROM tokens WHERE queue_id = ? AND owner_id = ?`
	queryListTokens   = `SELECT ` + tokenColumns + ` FROM tokens WHERE queue_id = ?
		ORDER BY priority, enqueued_at, id`
	queryInsertToken = `INSERT INTO tokens (` + tokenColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	queryDeleteToken = `DELETE FROM tokens WHERE queue_id = ? AND id = ?`

	queryGetCurrent = `SELECT queue_id, token_id, owner_id, owner_email, priority, called_at
		FROM current_serving WHERE queue_id = ?`
	querySetCurrent = `INSERT INTO current_serving (queue_id, token_id, owner_id, owner_email, priority, called_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE token_id = VALUES(token_id), owner_id = VALUES(owner_id),
		owner_email = VALUES(owner_email), priority = VALUES(priority), called_at = VALUES(called_at)`
	queryClearCurrent = `DELETE FROM current_serving WHERE queue_id = ?`

	queryAppendNoShow = `INSERT INTO no_shows (id, queue_id, owner_id, owner_email, called_at, marked_at, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	queryListNoShows = `SELECT id, queue_id, owner_id, owner_email, called_at, marked_at, reason
		FROM no_shows WHERE queue_id = ? ORDER BY marked_at, id`
)

var cascadeDeletes = []string{
	`DELETE FROM tokens WHERE queue_id = ?`,
	`DELETE FROM current_serving WHERE queue_id = ?`,
	`DELETE FROM no_shows WHERE queue_id = ?`,
	`DELETE FROM queues WHERE id = ?`,
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQueue(row rowScanner) (*models.Queue, error) {
	var q models.Queue
	err := row.Scan(&q.ID, &q.Name, &q.ServerEmail, &q.NoShowTimeoutSeconds, &q.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func scanToken(row rowScanner) (*models.Token, error) {
	var t models.Token
	err := row.Scan(&t.ID, &t.QueueID, &t.OwnerID, &t.OwnerEmail, &t.Priority, &t.EnqueuedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) ListQueues(ctx context.Context) ([]models.Queue, error) {
	rows, err := s.DB.QueryContext(ctx, queryListQueues)
	if err != nil {
		return nil, fmt.Errorf("list queues: %w", err)
	}
	defer rows.Close()

	var out []models.Queue
	for rows.Next() {
		q, err := scanQueue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue: %w", err)
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func (s *Store) GetQueue(ctx context.Context, queueID string) (*models.Queue, error) {
	q, err := scanQueue(s.DB.QueryRowContext(ctx, queryGetQueue, queueID))
	if err != nil {
		return nil, fmt.Errorf("get queue %s: %w", queueID, err)
	}
	return q, nil
}

type txn struct {
	tx *sql.Tx
}

func (t *txn) LockQueue(ctx context.Context, queueID string) (*models.Queue, error) {
	q, err := scanQueue(t.tx.QueryRowContext(ctx, queryLockQueue, queueID))
	if err != nil {
		return nil, fmt.Errorf("lock queue %s: %w", queueID, err)
	}
	return q, nil
}

func (t *txn) GetQueue(ctx context.Context, queueID string) (*models.Queue, error) {
	q, err := scanQueue(t.tx.QueryRowContext(ctx, queryGetQueue, queueID))
	if err != nil {
		return nil, fmt.Errorf("get queue %s: %w", queueID, err)
	}
	return q, nil
}

func (t *txn) InsertQueue(ctx context.Context, q models.Queue) error {
	_, err := t.tx.ExecContext(ctx, queryInsertQueue, q.ID, q.Name, q.ServerEmail, q.NoShowTimeoutSeconds, q.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert queue: %w", err)
	}
	return nil
}

func (t *txn) UpdateQueue(ctx context.Context, q models.Queue) error {
	_, err := t.tx.ExecContext(ctx, queryUpdateQueue, q.Name, q.ServerEmail, q.NoShowTimeoutSeconds, q.ID)
	if err != nil {
		return fmt.Errorf("update queue %s: %w", q.ID, err)
	}
	return nil
}

func (t *txn) DeleteQueue(ctx context.Context, queueID string) error {
	for _, stmt := range cascadeDeletes {
		if _, err := t.tx.ExecContext(ctx, stmt, queueID); err != nil {
			return fmt.Errorf("delete queue %s: %w", queueID, err)
		}
	}
	return nil
}

func (t *txn) NextToken(ctx context.Context, queueID string) (*models.Token, error) {
	tok, err := scanToken(t.tx.QueryRowContext(ctx, queryNextToken, queueID))
	if err != nil {
		return nil, fmt.Errorf("next token: %w", err)
	}
	return tok, nil
}

func (t *txn) GetToken(ctx context.Context, queueID, tokenID string) (*models.Token, error) {
	tok, err := scanToken(t.tx.QueryRowContext(ctx, queryGetToken, queueID, tokenID))
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	return tok, nil
}

func (t *txn) FindTokenByOwner(ctx context.Context, queueID, ownerID string) (*models.Token, error) {
	tok, err := scanToken(t.tx.QueryRowContext(ctx, queryTokenByOwner, queueID, ownerID))
	if err != nil {
		return nil, fmt.Errorf("find token by owner: %w", err)
	}
	return tok, nil
}

func (t *txn) ListTokens(ctx context.Context, queueID string) ([]models.Token, error) {
	rows, err := t.tx.QueryContext(ctx, queryListTokens, queueID)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var out []models.Token
	for rows.Next() {
		tok, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		out = append(out, *tok)
	}
	return out, rows.Err()
}

func (t *txn) InsertToken(ctx context.Context, tok models.Token) error {
	_, err := t.tx.ExecContext(ctx, queryInsertToken,
		tok.ID, tok.QueueID, tok.OwnerID, tok.OwnerEmail, tok.Priority, tok.EnqueuedAt.UTC())
	if isDuplicate(err) {
		return store.ErrDuplicateToken
	}
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

func (t *txn) DeleteToken(ctx context.Context, queueID, tokenID string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, queryDeleteToken, queueID, tokenID)
	if err != nil {
		return false, fmt.Errorf("delete token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete token: %w", err)
	}
	return n > 0, nil
}

func (t *txn) GetCurrent(ctx context.Context, queueID string) (*models.CurrentServing, error) {
	var c models.CurrentServing
	err := t.tx.QueryRowContext(ctx, queryGetCurrent, queueID).
		Scan(&c.QueueID, &c.TokenID, &c.OwnerID, &c.OwnerEmail, &c.Priority, &c.CalledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get current: %w", err)
	}
	return &c, nil
}

func (t *txn) SetCurrent(ctx context.Context, c models.CurrentServing) error {
	_, err := t.tx.ExecContext(ctx, querySetCurrent,
		c.QueueID, c.TokenID, c.OwnerID, c.OwnerEmail, c.Priority, c.CalledAt.UTC())
	if err != nil {
		return fmt.Errorf("set current: %w", err)
	}
	return nil
}

func (t *txn) ClearCurrent(ctx context.Context, queueID string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, queryClearCurrent, queueID)
	if err != nil {
		return false, fmt.Errorf("clear current: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("clear current: %w", err)
	}
	return n > 0, nil
}

func (t *txn) AppendNoShow(ctx context.Context, r models.NoShowRecord) error {
	var calledAt sql.NullTime
	if r.CalledAt != nil {
		calledAt = sql.NullTime{Time: r.CalledAt.UTC(), Valid: true}
	}
	_, err := t.tx.ExecContext(ctx, queryAppendNoShow,
		r.ID, r.QueueID, r.OwnerID, r.OwnerEmail, calledAt, r.MarkedAt.UTC(), r.Reason)
	if err != nil {
		return fmt.Errorf("append no-show: %w", err)
	}
	return nil
}

func (t *txn) ListNoShows(ctx context.Context, queueID string) ([]models.NoShowRecord, error) {
	rows, err := t.tx.QueryContext(ctx, queryListNoShows, queueID)
	if err != nil {
		return nil, fmt.Errorf("list no-shows: %w", err)
	}
	defer rows.Close()

	var out []models.NoShowRecord
	for rows.Next() {
		var (
			r        models.NoShowRecord
			calledAt sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.QueueID, &r.OwnerID, &r.OwnerEmail, &calledAt, &r.MarkedAt, &r.Reason); err != nil {
			return nil, fmt.Errorf("scan no-show: %w", err)
		}
		if calledAt.Valid {
			at := calledAt.Time
			r.CalledAt = &at
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func isDuplicate(err error) bool {
	var myErr *mysqldriver.MySQLError
	return errors.As(err, &myErr) && myErr.Number == errDuplicateEntry
}
