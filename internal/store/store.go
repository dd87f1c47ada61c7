package store

import (
	"context"
	"time"
)

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Calculations
	CreateCalculation(ctx context.Context, c *Calculation) error
	GetCalculation(ctx context.Context, id string) (*Calculation, error)
	ListCalculations(ctx context.Context, filter CalculationFilter) ([]*Calculation, error)
	DeleteCalculation(ctx context.Context, id string) error

	// Comparison sessions
	CreateComparison(ctx context.Context, c *ComparisonSession) error
	GetComparison(ctx context.Context, id string) (*ComparisonSession, error)
	ListComparisons(ctx context.Context, filter ComparisonFilter) ([]*ComparisonSession, error)
	DeleteComparison(ctx context.Context, id string) error

	// Bulk removal
	Clear(ctx context.Context) (Counts, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (Counts, error)

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
