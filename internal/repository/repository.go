package repository

import (
	"context"

	"svckit/internal/model"
)

// EventRepository defines data access for events using SQL queries only.
// No business logic here — strictly persistence operations.
type EventRepository interface {
	// Create inserts a new event row and returns the stored record
	// (including values set by database defaults).
	Create(ctx context.Context, ev *model.Event) (*model.Event, error)

	// FindByID returns an event by its ID.
	FindByID(ctx context.Context, id string) (*model.Event, error)

	// List returns a paginated list of events and the total row count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Event], error)

	// Delete removes an event by ID. It returns nil when the row was
	// deleted or did not exist.
	Delete(ctx context.Context, id string) error
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}
