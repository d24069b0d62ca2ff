// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mail

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/samber/oops"

	"github.com/holomush/authkit/internal/auth"
)

// Queue settings for welcome mail tasks.
const (
	TaskWelcome   = "mail:welcome"
	QueueName     = "mail"
	WelcomeRetry  = 3
	workerWorkers = 2
)

// Enqueuer is the part of *asynq.Client the Queue uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Queue defers welcome mail to a Worker through asynq.
type Queue struct {
	client Enqueuer
}

// NewQueue creates a Queue.
func NewQueue(client Enqueuer) *Queue {
	return &Queue{client: client}
}

// NewWelcomeTask builds the asynq task for p.
func NewWelcomeTask(p WelcomePayload) (*asynq.Task, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, oops.Code("MAIL_ENQUEUE_FAILED").With("operation", "encode payload").Wrap(err)
	}
	return asynq.NewTask(TaskWelcome, body, asynq.Queue(QueueName), asynq.MaxRetry(WelcomeRetry)), nil
}

// UserSignedUp enqueues a welcome mail for user.
func (q *Queue) UserSignedUp(ctx context.Context, user auth.PublicUser) error {
	task, err := NewWelcomeTask(WelcomePayload{UserID: user.ID, Email: user.Email})
	if err != nil {
		return err
	}
	if _, err := q.client.EnqueueContext(ctx, task); err != nil {
		return oops.Code("MAIL_ENQUEUE_FAILED").
			With("task", TaskWelcome).
			With("user_id", user.ID).
			Wrap(err)
	}
	return nil
}

var _ auth.SignupNotifier = (*Queue)(nil)
