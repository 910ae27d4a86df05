// Package queue carries publish tasks from the scheduler to the publish
// worker. Delivery is at-least-once: handlers must tolerate duplicates.
package queue

import (
	"context"
	"errors"

	"github.com/ignite/social-scheduler/internal/domain"
)

// ErrClosed is returned by Dispatch after the dispatcher was closed.
var ErrClosed = errors.New("queue: dispatcher closed")

// ErrBusy is returned by Dispatch when no slot or backlog space is free.
var ErrBusy = errors.New("queue: dispatcher busy")

// Handler executes one publish task.
type Handler func(ctx context.Context, task domain.PublishTask) error

// Dispatcher hands a publish task to whatever executes it.
type Dispatcher interface {
	Dispatch(ctx context.Context, task domain.PublishTask) error
}
