// Package sweeper defines the expiry sweep contract.
package sweeper

import (
	"context"

	"github.com/danilovkiri/dk-go-maxrent/internal/models/modeldto"
)

// Releaser is the part of the rental engine the sweeper depends on.
type Releaser interface {
	ListExpired(ctx context.Context) ([]int64, error)
	Release(ctx context.Context, accountID int64) (*modeldto.Settlement, error)
}

// Sweeper is a periodic task releasing expired rentals.
type Sweeper interface {
	Start(ctx context.Context) error
	Stop()
	Tick(ctx context.Context) (modeldto.SweepReport, error)
}
