package authz

import (
	"context"
	"errors"
	"fmt"
)

// ErrInterrupted marks a decision that was cut short by the caller's context.
// The engine never converts an interrupted read into an allow or a deny; the
// boundary treats a failed decision as a non-grant.
var ErrInterrupted = errors.New("evaluation interrupted")

// readErr wraps a repository failure. When the context is already done the
// failure is reported as an interruption so callers can tell a timeout apart
// from a broken data store.
func readErr(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", op, ErrInterrupted)
	}
	return fmt.Errorf("%s: %w", op, err)
}
