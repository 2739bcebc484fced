package incidentlog

import (
	"context"
	"errors"
)

// ErrRecordNotFound is returned when no incident with the given ID exists.
var ErrRecordNotFound = errors.New("incident record not found")

// ListOptions controls history pagination.
type ListOptions struct {
	// Limit caps the number of records returned. Defaults to 50.
	Limit int

	// Cursor is the ID of the last record from the previous page.
	Cursor string

	// OnlyResolved restricts the listing to closed incidents.
	OnlyResolved bool
}

// ListResult is one page of incident history.
type ListResult struct {
	Items      []*Record
	NextCursor string
}

// Repository defines the interface for incident history persistence.
type Repository interface {
	// Upsert stores the latest state of an incident.
	Upsert(ctx context.Context, rec Record) error

	// Get retrieves one incident by ID.
	Get(ctx context.Context, id string) (*Record, error)

	// List retrieves incidents ordered by start time, newest first.
	List(ctx context.Context, opts ListOptions) (*ListResult, error)
}
