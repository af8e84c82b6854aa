package store

import (
	"context"

	"github.com/bargehq/barge/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for barge entities.
type Store interface {
	// Stack operations
	CreateStack(ctx context.Context, stack *domain.Stack) error
	GetStack(ctx context.Context, id string) (*domain.Stack, error)
	GetStackByName(ctx context.Context, name string) (*domain.Stack, error)
	UpdateStack(ctx context.Context, stack *domain.Stack) error
	DeleteStack(ctx context.Context, id string) error
	ListStacks(ctx context.Context, opts ListOptions) ([]domain.Stack, error)

	// Service record operations
	CreateService(ctx context.Context, record *domain.ServiceRecord) error
	GetService(ctx context.Context, stackID, name string) (*domain.ServiceRecord, error)
	UpdateService(ctx context.Context, record *domain.ServiceRecord) error
	ListServices(ctx context.Context, stackID string) ([]domain.ServiceRecord, error)
	DeleteServices(ctx context.Context, stackID string) error

	// Event operations
	AppendEvent(ctx context.Context, event *domain.StackEvent) error
	ListEvents(ctx context.Context, stackID string, limit int, eventType *string) ([]domain.StackEvent, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
