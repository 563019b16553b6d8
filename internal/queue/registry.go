package queue

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"campus-queue/internal/apperror"
	"campus-queue/internal/models"
	"campus-queue/internal/ratelimit"
	"campus-queue/internal/store"
)

// RoleStore resolves and assigns user roles. GetRole returns "" for users
// without a stored role.
type RoleStore interface {
	GetRole(ctx context.Context, uid string) (string, error)
	SetRole(ctx context.Context, uid, role string) error
}

// CooldownChecker is the part of the rate limiter the registry needs.
type CooldownChecker interface {
	CheckAndRecord(ctx context.Context, actorID, op string, cooldown time.Duration) (ratelimit.Decision, error)
}

// Registry is the administrative CRUD surface for queue definitions.
type Registry struct {
	store          store.Store
	roles          RoleStore
	limiter        CooldownChecker
	defaultTimeout time.Duration
	createCooldown time.Duration
	opts           options
}

func NewRegistry(s store.Store, roles RoleStore, limiter CooldownChecker, defaultTimeout, createCooldown time.Duration, opts ...Option) *Registry {
	return &Registry{
		store:          s,
		roles:          roles,
		limiter:        limiter,
		defaultTimeout: defaultTimeout,
		createCooldown: createCooldown,
		opts:           buildOptions(opts),
	}
}

// Role returns the stored role for uid, or student when none is stored.
func (r *Registry) Role(ctx context.Context, uid string) (string, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return "", apperror.Unauthenticated("Sign in required")
	}
	role, err := r.roles.GetRole(ctx, uid)
	if err != nil {
		return "", apperror.Internal(err, "role lookup failed")
	}
	if role == "" {
		return models.RoleStudent, nil
	}
	return role, nil
}

func (r *Registry) requireAdmin(ctx context.Context, actor string) error {
	if strings.TrimSpace(actor) == "" {
		return apperror.Unauthenticated("Sign in required")
	}
	role, err := r.Role(ctx, actor)
	if err != nil {
		return err
	}
	if role != models.RoleAdmin {
		return ErrNotAdmin
	}
	return nil
}

// SetRole assigns role to target. Only admins may do this.
func (r *Registry) SetRole(ctx context.Context, actor, target, role string) error {
	if err := r.requireAdmin(ctx, actor); err != nil {
		return err
	}
	target = strings.TrimSpace(target)
	role = strings.ToLower(strings.TrimSpace(role))
	if target == "" {
		return apperror.InvalidArgument("Missing uid")
	}
	if !models.ValidRole(role) {
		return apperror.InvalidArgument("Invalid role")
	}
	if err := r.roles.SetRole(ctx, target, role); err != nil {
		return apperror.Internal(err, "role update failed")
	}
	r.opts.logger.Info("role updated",
		zap.String("actor", actor),
		zap.String("uid", target),
		zap.String("role", role))
	return nil
}

// Create stores a new queue. The caller must be an admin and outside the
// create-queue cooldown.
func (r *Registry) Create(ctx context.Context, actor string, req models.CreateQueueRequest) (models.Queue, error) {
	if err := r.requireAdmin(ctx, actor); err != nil {
		return models.Queue{}, err
	}

	name := strings.TrimSpace(req.Name)
	serverEmail := strings.ToLower(strings.TrimSpace(req.ServerEmail))
	if name == "" {
		return models.Queue{}, apperror.InvalidArgument("Missing name")
	}
	if serverEmail == "" || !strings.Contains(serverEmail, "@") {
		return models.Queue{}, apperror.InvalidArgument("Missing or invalid server_email")
	}
	if req.NoShowTimeoutSeconds < 0 {
		return models.Queue{}, apperror.InvalidArgument("no_show_timeout_seconds must be positive")
	}

	decision, err := r.limiter.CheckAndRecord(ctx, actor, ratelimit.OpCreateQueue, r.createCooldown)
	if err != nil {
		return models.Queue{}, err
	}
	if !decision.Allowed {
		return models.Queue{}, ratelimit.CooldownError(decision, "creating another queue")
	}

	timeout := req.NoShowTimeoutSeconds
	if timeout == 0 {
		timeout = int(r.defaultTimeout / time.Second)
	}
	q := models.Queue{
		ID:                   r.opts.newID(),
		Name:                 name,
		ServerEmail:          serverEmail,
		NoShowTimeoutSeconds: timeout,
		CreatedAt:            r.opts.now(),
	}
	err = r.store.Tx(ctx, func(tx store.Tx) error {
		return tx.InsertQueue(ctx, q)
	})
	if err != nil {
		return models.Queue{}, wrapStoreErr(err, "create queue")
	}

	r.opts.logger.Info("queue created",
		zap.String("queue_id", q.ID),
		zap.String("name", q.Name),
		zap.String("server_email", q.ServerEmail))
	return q, nil
}

// Update applies the non-empty fields of req to the queue.
func (r *Registry) Update(ctx context.Context, actor, queueID string, req models.UpdateQueueRequest) (models.Queue, error) {
	if err := r.requireAdmin(ctx, actor); err != nil {
		return models.Queue{}, err
	}

	name := strings.TrimSpace(req.Name)
	serverEmail := strings.ToLower(strings.TrimSpace(req.ServerEmail))
	if name == "" && serverEmail == "" && req.NoShowTimeoutSeconds == nil {
		return models.Queue{}, apperror.InvalidArgument("No fields to update")
	}
	if serverEmail != "" && !strings.Contains(serverEmail, "@") {
		return models.Queue{}, apperror.InvalidArgument("Invalid server_email")
	}
	if req.NoShowTimeoutSeconds != nil && *req.NoShowTimeoutSeconds <= 0 {
		return models.Queue{}, apperror.InvalidArgument("no_show_timeout_seconds must be positive")
	}

	var updated models.Queue
	err := r.store.Tx(ctx, func(tx store.Tx) error {
		q, err := tx.LockQueue(ctx, queueID)
		if err != nil {
			return err
		}
		if q == nil {
			return ErrQueueNotFound
		}
		if name != "" {
			q.Name = name
		}
		if serverEmail != "" {
			q.ServerEmail = serverEmail
		}
		if req.NoShowTimeoutSeconds != nil {
			q.NoShowTimeoutSeconds = *req.NoShowTimeoutSeconds
		}
		updated = *q
		return tx.UpdateQueue(ctx, updated)
	})
	if err != nil {
		return models.Queue{}, wrapStoreErr(err, "update queue")
	}

	r.opts.logger.Info("queue updated", zap.String("queue_id", queueID))
	return updated, nil
}

// Delete removes the queue together with its tokens, current slot and
// no-show records.
func (r *Registry) Delete(ctx context.Context, actor, queueID string) error {
	if err := r.requireAdmin(ctx, actor); err != nil {
		return err
	}
	err := r.store.Tx(ctx, func(tx store.Tx) error {
		q, err := tx.LockQueue(ctx, queueID)
		if err != nil {
			return err
		}
		if q == nil {
			return ErrQueueNotFound
		}
		return tx.DeleteQueue(ctx, queueID)
	})
	if err != nil {
		return wrapStoreErr(err, "delete queue")
	}
	r.opts.logger.Info("queue deleted", zap.String("queue_id", queueID), zap.String("actor", actor))
	return nil
}

func (r *Registry) Get(ctx context.Context, queueID string) (models.Queue, error) {
	q, err := r.store.GetQueue(ctx, queueID)
	if err != nil {
		return models.Queue{}, wrapStoreErr(err, "get queue")
	}
	if q == nil {
		return models.Queue{}, ErrQueueNotFound
	}
	return *q, nil
}

func (r *Registry) List(ctx context.Context) ([]models.Queue, error) {
	queues, err := r.store.ListQueues(ctx)
	if err != nil {
		return nil, wrapStoreErr(err, "list queues")
	}
	if queues == nil {
		queues = []models.Queue{}
	}
	return queues, nil
}

// RequireServer checks that email is the queue's assigned server. Admins
// pass for every queue.
func (r *Registry) RequireServer(ctx context.Context, queueID, uid, email string) (models.Queue, error) {
	q, err := r.Get(ctx, queueID)
	if err != nil {
		return models.Queue{}, err
	}
	if uid != "" {
		role, err := r.Role(ctx, uid)
		if err != nil {
			return models.Queue{}, err
		}
		if role == models.RoleAdmin {
			return q, nil
		}
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || email != strings.ToLower(q.ServerEmail) {
		return models.Queue{}, ErrNotAssigned
	}
	return q, nil
}
