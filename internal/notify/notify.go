package notify

import (
	"context"

	"go.uber.org/multierr"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

type Notifier interface {
	Send(ctx context.Context, ev domain.AlertEvent) error
}

// Multi fans out to every sink and combines their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, ev domain.AlertEvent) error {
	var errs error
	for _, n := range m {
		if n == nil {
			continue
		}
		errs = multierr.Append(errs, n.Send(ctx, ev))
	}
	return errs
}
