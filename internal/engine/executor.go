// Package engine defines the execution collaborator contract and an in-process
// paper implementation of it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/your-org/regime-switch-bot/internal/position"
	"github.com/your-org/regime-switch-bot/internal/risk"
)

// Executor is the capability surface of the execution collaborator.
// Every call may block on I/O and must honour ctx.
type Executor interface {
	CurrentStrategy(ctx context.Context) (string, error)
	SetStrategy(ctx context.Context, id string) error
	HasOpenPositions(ctx context.Context) (bool, error)
	CloseAllPositions(ctx context.Context) error
	PlaceOrder(ctx context.Context, intent risk.OrderIntent) (*Fill, error)
}

// Fill acknowledges an executed order.
type Fill struct {
	OrderID  string        `json:"order_id"`
	Symbol   string        `json:"symbol"`
	Side     position.Side `json:"side"`
	Price    float64       `json:"price"`
	Quantity float64       `json:"quantity"`
	Time     time.Time     `json:"time"`
}

// TradeSink receives closed trades.
type TradeSink interface {
	RecordTrade(t position.Trade) error
}

// ErrCollaborator is matched by every ExecutionCollaboratorError via errors.Is.
var ErrCollaborator = errors.New("execution collaborator failure")

// ExecutionCollaboratorError wraps a failed or timed-out collaborator call.
// The caller leaves its state unchanged and retries on the next tick.
type ExecutionCollaboratorError struct {
	Op  string
	Err error
}

func (e *ExecutionCollaboratorError) Error() string {
	return fmt.Sprintf("collaborator %s: %v", e.Op, e.Err)
}

func (e *ExecutionCollaboratorError) Unwrap() error { return e.Err }

// Is reports whether target is ErrCollaborator.
func (e *ExecutionCollaboratorError) Is(target error) bool {
	return target == ErrCollaborator
}

// Call runs fn with a deadline of timeout. fn keeps running in the background
// if it ignores ctx, but Call returns once the deadline passes.
func Call(ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) error) error {
	_, err := CallValue(ctx, timeout, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

type result[T any] struct {
	v   T
	err error
}

// CallValue is Call for collaborators that return a value. The value only
// travels through the result channel, so a call abandoned at the deadline
// never touches the caller's variables.
func CallValue[T any](ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan result[T], 1)
	go func() {
		v, err := fn(ctx)
		done <- result[T]{v: v, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil {
			return zero, &ExecutionCollaboratorError{Op: op, Err: r.err}
		}
		return r.v, nil
	case <-ctx.Done():
		return zero, &ExecutionCollaboratorError{Op: op, Err: ctx.Err()}
	}
}
