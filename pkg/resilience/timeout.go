package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/errors"
)

// WithTimeout runs fn under a deadline of timeout; zero or less means no
// deadline. fn must return once its context is done. When the deadline is
// what stopped fn, the error carries apperrors.ErrTimeout with a 504 status
// and still matches context.DeadlineExceeded.
func WithTimeout(ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	bounded, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(bounded)
	if err == nil || ctx.Err() != nil || !errors.Is(bounded.Err(), context.DeadlineExceeded) {
		return err
	}
	appErr := apperrors.Newf(apperrors.ErrTimeout, http.StatusGatewayTimeout, "%s did not finish within %v", op, timeout)
	return fmt.Errorf("%w: %w", appErr, context.DeadlineExceeded)
}
