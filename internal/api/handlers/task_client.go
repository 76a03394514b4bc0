package handlers

import (
	"context"

	"github.com/hibiken/asynq"
)

// IAsynqClient is the part of *asynq.Client the handlers use.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}
