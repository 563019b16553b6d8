// Package memory is an in-process implementation of store.Store. Each
// transaction works on a private copy of the data and replaces the shared
// state on success. Intended for tests and local development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"campus-queue/internal/models"
	"campus-queue/internal/store"
)

var _ store.Store = (*Store)(nil)

type data struct {
	queues  map[string]models.Queue
	tokens  map[string]map[string]models.Token // queueID -> tokenID -> token
	current map[string]models.CurrentServing
	noShows map[string][]models.NoShowRecord
}

func newData() *data {
	return &data{
		queues:  make(map[string]models.Queue),
		tokens:  make(map[string]map[string]models.Token),
		current: make(map[string]models.CurrentServing),
		noShows: make(map[string][]models.NoShowRecord),
	}
}

func (d *data) clone() *data {
	cp := newData()
	for k, v := range d.queues {
		cp.queues[k] = v
	}
	for qid, toks := range d.tokens {
		m := make(map[string]models.Token, len(toks))
		for k, v := range toks {
			m[k] = v
		}
		cp.tokens[qid] = m
	}
	for k, v := range d.current {
		cp.current[k] = v
	}
	for k, v := range d.noShows {
		cp.noShows[k] = append([]models.NoShowRecord(nil), v...)
	}
	return cp
}

// Store holds queues, tokens and the auxiliary user tables in memory.
// Safe for concurrent access.
type Store struct {
	mu   sync.RWMutex
	data *data

	usersMu  sync.RWMutex
	roles    map[string]string
	blocked  map[string]struct{}
	accounts map[string]models.Account // keyed by lowercased email
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		data:     newData(),
		roles:    make(map[string]string),
		blocked:  make(map[string]struct{}),
		accounts: make(map[string]models.Account),
	}
}

// Tx runs fn against a copy of the data. Transactions are serialized; the
// copy becomes the shared state only when fn returns nil.
func (s *Store) Tx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&txn{d: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

// View runs fn against a private copy that is always discarded. Views run
// concurrently with each other.
func (s *Store) View(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()
	return fn(&txn{d: work})
}

func (s *Store) ListQueues(_ context.Context) ([]models.Queue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Queue, 0, len(s.data.queues))
	for _, q := range s.data.queues {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetQueue(_ context.Context, queueID string) (*models.Queue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.data.queues[queueID]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

// ──────────────────────────────────────────────────
// Users: roles, blocklist, accounts
// ──────────────────────────────────────────────────

func (s *Store) GetRole(_ context.Context, uid string) (string, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	return s.roles[uid], nil
}

func (s *Store) SetRole(_ context.Context, uid, role string) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	s.roles[uid] = role
	return nil
}

// IsBlocked reports whether email is on the blocklist. Matching ignores case.
func (s *Store) IsBlocked(_ context.Context, email string) (bool, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	_, ok := s.blocked[strings.ToLower(strings.TrimSpace(email))]
	return ok, nil
}

// Block adds email to the blocklist.
func (s *Store) Block(email string) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	s.blocked[strings.ToLower(strings.TrimSpace(email))] = struct{}{}
}

// PutAccount adds or replaces a login account.
func (s *Store) PutAccount(a models.Account) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	s.accounts[strings.ToLower(a.Email)] = a
}

func (s *Store) FindAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	a, ok := s.accounts[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// ──────────────────────────────────────────────────
// Transaction
// ──────────────────────────────────────────────────

type txn struct {
	d *data
}

// LockQueue is a plain read; the store-wide lock already serializes Tx.
func (t *txn) LockQueue(ctx context.Context, queueID string) (*models.Queue, error) {
	return t.GetQueue(ctx, queueID)
}

func (t *txn) GetQueue(_ context.Context, queueID string) (*models.Queue, error) {
	q, ok := t.d.queues[queueID]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

func (t *txn) InsertQueue(_ context.Context, q models.Queue) error {
	t.d.queues[q.ID] = q
	return nil
}

func (t *txn) UpdateQueue(_ context.Context, q models.Queue) error {
	if _, ok := t.d.queues[q.ID]; ok {
		t.d.queues[q.ID] = q
	}
	return nil
}

func (t *txn) DeleteQueue(_ context.Context, queueID string) error {
	delete(t.d.queues, queueID)
	delete(t.d.tokens, queueID)
	delete(t.d.current, queueID)
	delete(t.d.noShows, queueID)
	return nil
}

func (t *txn) NextToken(_ context.Context, queueID string) (*models.Token, error) {
	var best *models.Token
	for _, tok := range t.d.tokens[queueID] {
		if best == nil || tok.Before(*best) {
			tok := tok
			best = &tok
		}
	}
	return best, nil
}

func (t *txn) GetToken(_ context.Context, queueID, tokenID string) (*models.Token, error) {
	tok, ok := t.d.tokens[queueID][tokenID]
	if !ok {
		return nil, nil
	}
	return &tok, nil
}

func (t *txn) FindTokenByOwner(_ context.Context, queueID, ownerID string) (*models.Token, error) {
	for _, tok := range t.d.tokens[queueID] {
		if tok.OwnerID == ownerID {
			tok := tok
			return &tok, nil
		}
	}
	return nil, nil
}

func (t *txn) ListTokens(_ context.Context, queueID string) ([]models.Token, error) {
	out := make([]models.Token, 0, len(t.d.tokens[queueID]))
	for _, tok := range t.d.tokens[queueID] {
		out = append(out, tok)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (t *txn) InsertToken(_ context.Context, tok models.Token) error {
	toks := t.d.tokens[tok.QueueID]
	if toks == nil {
		toks = make(map[string]models.Token)
		t.d.tokens[tok.QueueID] = toks
	}
	for _, existing := range toks {
		if existing.OwnerID == tok.OwnerID {
			return store.ErrDuplicateToken
		}
	}
	toks[tok.ID] = tok
	return nil
}

func (t *txn) DeleteToken(_ context.Context, queueID, tokenID string) (bool, error) {
	toks := t.d.tokens[queueID]
	if _, ok := toks[tokenID]; !ok {
		return false, nil
	}
	delete(toks, tokenID)
	return true, nil
}

func (t *txn) GetCurrent(_ context.Context, queueID string) (*models.CurrentServing, error) {
	c, ok := t.d.current[queueID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (t *txn) SetCurrent(_ context.Context, c models.CurrentServing) error {
	t.d.current[c.QueueID] = c
	return nil
}

func (t *txn) ClearCurrent(_ context.Context, queueID string) (bool, error) {
	_, ok := t.d.current[queueID]
	delete(t.d.current, queueID)
	return ok, nil
}

func (t *txn) AppendNoShow(_ context.Context, r models.NoShowRecord) error {
	t.d.noShows[r.QueueID] = append(t.d.noShows[r.QueueID], r)
	return nil
}

func (t *txn) ListNoShows(_ context.Context, queueID string) ([]models.NoShowRecord, error) {
	return append([]models.NoShowRecord(nil), t.d.noShows[queueID]...), nil
}
