package models

import "context"

// Work is a unit of cancellable background work submitted to a Scheduler.
type Work[T any] func(ctx context.Context) (T, error)

// Result carries the outcome of a Work invocation back through a Future.
type Result[T any] struct {
	Data T
	Err  error
}
