package repository

import (
	"context"
	"time"

	"github.com/parkwise/parking-service/internal/domain"
)

// SpaceFilter narrows space listings
type SpaceFilter struct {
	Status domain.SpaceStatus
	ZoneID string
	Limit  int
	Offset int
}

// SpaceRepository provides access to parking spaces
type SpaceRepository interface {
	// GetByID retrieves a space by its ID
	GetByID(ctx context.Context, id string) (*domain.Space, error)

	// GetForUpdate retrieves a space and locks its row for the enclosing
	// transaction. Only meaningful inside WithinTx.
	GetForUpdate(ctx context.Context, id string) (*domain.Space, error)

	// Update persists the space's status and held-ticket reference
	Update(ctx context.Context, space *domain.Space) error

	// List retrieves spaces matching the filter
	List(ctx context.Context, filter SpaceFilter) ([]*domain.Space, error)
}

// TicketRepository provides access to parking tickets
type TicketRepository interface {
	// Create inserts a new ticket
	Create(ctx context.Context, ticket *domain.Ticket) error

	// GetByID retrieves a ticket by its ID
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)

	// GetForUpdate retrieves a ticket and locks its row for the enclosing
	// transaction. Only meaningful inside WithinTx.
	GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error)

	// Update persists all mutable ticket fields
	Update(ctx context.Context, ticket *domain.Ticket) error

	// FindActiveByPlate returns the active ticket for a plate, or nil when
	// the plate has no active ticket
	FindActiveByPlate(ctx context.Context, plate string) (*domain.Ticket, error)

	// ListByUser returns every ticket created by a user, newest first
	ListByUser(ctx context.Context, userID string) ([]*domain.Ticket, error)

	// ListNoShowCandidates returns RESERVED tickets that never checked in and
	// whose commitment window has passed at now. Tickets with no reservation
	// start are included so the sweep can log them.
	ListNoShowCandidates(ctx context.Context, now time.Time, limit int) ([]*domain.Ticket, error)

	// ListOverstayed returns PAID tickets whose grace period started before cutoff
	ListOverstayed(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Ticket, error)

	// ListStaleHolds returns PENDING_PAYMENT tickets that never checked in
	// and were created before cutoff
	ListStaleHolds(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Ticket, error)
}

// Store is the transactional store adapter spanning both entities. All
// lifecycle transitions read preconditions and write effects inside one
// WithinTx call; partial application across Space and Ticket is prevented by
// the transaction boundary, not by retries.
type Store interface {
	Spaces() SpaceRepository
	Tickets() TicketRepository

	// WithinTx runs fn inside a single transaction. The Store passed to fn
	// operates on that transaction; nested calls reuse it.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
