package queue

import "campus-queue/internal/apperror"

var (
	ErrQueueNotFound  = apperror.NotFound("Queue not found")
	ErrTokenNotFound  = apperror.NotFound("Token not found")
	ErrNoCurrentToken = apperror.NotFound("No current token")

	ErrAlreadyQueued  = apperror.AlreadyExists("Already in queue")
	ErrAlreadyServing = apperror.AlreadyExists("Already being served")

	ErrNotAdmin    = apperror.PermissionDenied("Only admin can manage queues")
	ErrNotAssigned = apperror.PermissionDenied("You are not assigned to this queue")
)
