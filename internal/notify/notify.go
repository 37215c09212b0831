// Package notify fans session transitions out to live dashboards and to
// downstream consumers.
package notify

import (
	"context"
	"errors"

	"parking-anpr/internal/domain/parking"
)

type Publisher interface {
	Publish(ctx context.Context, event parking.SessionEvent) error
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event parking.SessionEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
