package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/parkwise/parking-service/internal/domain"
)

// MemoryStore is an in-memory Store for tests and local development. A single
// mutex serializes transactions, which makes WithinTx trivially atomic; a
// failed transaction restores the pre-transaction snapshot.
type MemoryStore struct {
	mu      sync.Mutex
	spaces  map[string]*domain.Space
	tickets map[string]*domain.Ticket
	inTx    bool
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		spaces:  make(map[string]*domain.Space),
		tickets: make(map[string]*domain.Ticket),
	}
}

// SeedSpace inserts a space directly, bypassing transaction bookkeeping
func (s *MemoryStore) SeedSpace(space *domain.Space) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spaces[space.ID] = copySpace(space)
}

// SeedTicket inserts a ticket directly, bypassing transaction bookkeeping
func (s *MemoryStore) SeedTicket(ticket *domain.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[ticket.ID] = copyTicket(ticket)
}

// Spaces returns the space repository
func (s *MemoryStore) Spaces() SpaceRepository {
	return &memorySpaceRepo{store: s}
}

// Tickets returns the ticket repository
func (s *MemoryStore) Tickets() TicketRepository {
	return &memoryTicketRepo{store: s}
}

// WithinTx serializes fn against all other transactions and rolls the maps
// back when fn fails
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapSpaces := make(map[string]*domain.Space, len(s.spaces))
	for id, sp := range s.spaces {
		snapSpaces[id] = copySpace(sp)
	}
	snapTickets := make(map[string]*domain.Ticket, len(s.tickets))
	for id, t := range s.tickets {
		snapTickets[id] = copyTicket(t)
	}

	tx := &MemoryStore{spaces: s.spaces, tickets: s.tickets, inTx: true}
	if err := fn(ctx, tx); err != nil {
		s.spaces = snapSpaces
		s.tickets = snapTickets
		return err
	}
	return nil
}

type memorySpaceRepo struct {
	store *MemoryStore
}

func (r *memorySpaceRepo) locked(fn func() error) error {
	if r.store.inTx {
		return fn()
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return fn()
}

func (r *memorySpaceRepo) GetByID(ctx context.Context, id string) (*domain.Space, error) {
	var space *domain.Space
	err := r.locked(func() error {
		sp, ok := r.store.spaces[id]
		if !ok {
			return domain.ErrSpaceNotFound
		}
		space = copySpace(sp)
		return nil
	})
	return space, err
}

func (r *memorySpaceRepo) GetForUpdate(ctx context.Context, id string) (*domain.Space, error) {
	return r.GetByID(ctx, id)
}

func (r *memorySpaceRepo) Update(ctx context.Context, space *domain.Space) error {
	return r.locked(func() error {
		if _, ok := r.store.spaces[space.ID]; !ok {
			return domain.ErrSpaceNotFound
		}
		updated := copySpace(space)
		updated.UpdatedAt = time.Now()
		r.store.spaces[space.ID] = updated
		return nil
	})
}

func (r *memorySpaceRepo) List(ctx context.Context, filter SpaceFilter) ([]*domain.Space, error) {
	spaces := []*domain.Space{}
	err := r.locked(func() error {
		for _, sp := range r.store.spaces {
			if filter.Status != "" && sp.Status != filter.Status {
				continue
			}
			if filter.ZoneID != "" && sp.ZoneID != filter.ZoneID {
				continue
			}
			spaces = append(spaces, copySpace(sp))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(spaces, func(i, j int) bool { return spaces[i].Code < spaces[j].Code })
	if filter.Offset > 0 {
		if filter.Offset >= len(spaces) {
			return []*domain.Space{}, nil
		}
		spaces = spaces[filter.Offset:]
	}
	if filter.Limit > 0 && len(spaces) > filter.Limit {
		spaces = spaces[:filter.Limit]
	}
	return spaces, nil
}

type memoryTicketRepo struct {
	store *MemoryStore
}

func (r *memoryTicketRepo) locked(fn func() error) error {
	if r.store.inTx {
		return fn()
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return fn()
}

func (r *memoryTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	return r.locked(func() error {
		for _, t := range r.store.tickets {
			if t.VehiclePlate == ticket.VehiclePlate && t.Status.IsActive() {
				return domain.ErrPlateAlreadyActive
			}
		}
		r.store.tickets[ticket.ID] = copyTicket(ticket)
		return nil
	})
}

func (r *memoryTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	err := r.locked(func() error {
		t, ok := r.store.tickets[id]
		if !ok {
			return domain.ErrTicketNotFound
		}
		ticket = copyTicket(t)
		return nil
	})
	return ticket, err
}

func (r *memoryTicketRepo) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryTicketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	return r.locked(func() error {
		if _, ok := r.store.tickets[ticket.ID]; !ok {
			return domain.ErrTicketNotFound
		}
		updated := copyTicket(ticket)
		updated.UpdatedAt = time.Now()
		r.store.tickets[ticket.ID] = updated
		return nil
	})
}

func (r *memoryTicketRepo) FindActiveByPlate(ctx context.Context, plate string) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	err := r.locked(func() error {
		for _, t := range r.store.tickets {
			if t.VehiclePlate == plate && t.Status.IsActive() {
				ticket = copyTicket(t)
				return nil
			}
		}
		return nil
	})
	return ticket, err
}

func (r *memoryTicketRepo) ListByUser(ctx context.Context, userID string) ([]*domain.Ticket, error) {
	tickets, err := r.listMatching(0, func(t *domain.Ticket) bool {
		return t.UserID == userID
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
	})
	return tickets, nil
}

func (r *memoryTicketRepo) ListNoShowCandidates(ctx context.Context, now time.Time, limit int) ([]*domain.Ticket, error) {
	return r.listMatching(limit, func(t *domain.Ticket) bool {
		if t.Status != domain.TicketStatusReserved || t.CheckinAt != nil {
			return false
		}
		deadline, ok := t.NoShowDeadline()
		return !ok || now.After(deadline)
	})
}

func (r *memoryTicketRepo) ListOverstayed(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Ticket, error) {
	return r.listMatching(limit, func(t *domain.Ticket) bool {
		return t.Status == domain.TicketStatusPaid &&
			t.GraceStartedAt != nil && t.GraceStartedAt.Before(cutoff)
	})
}

func (r *memoryTicketRepo) ListStaleHolds(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Ticket, error) {
	return r.listMatching(limit, func(t *domain.Ticket) bool {
		return t.Status == domain.TicketStatusPendingPayment &&
			t.CheckinAt == nil && t.CreatedAt.Before(cutoff)
	})
}

func (r *memoryTicketRepo) listMatching(limit int, match func(*domain.Ticket) bool) ([]*domain.Ticket, error) {
	tickets := []*domain.Ticket{}
	err := r.locked(func() error {
		for _, t := range r.store.tickets {
			if !match(t) {
				continue
			}
			tickets = append(tickets, copyTicket(t))
			if limit > 0 && len(tickets) >= limit {
				return nil
			}
		}
		return nil
	})
	return tickets, err
}

func copySpace(s *domain.Space) *domain.Space {
	c := *s
	if s.CurrentTicketID != nil {
		id := *s.CurrentTicketID
		c.CurrentTicketID = &id
	}
	return &c
}

func copyTicket(t *domain.Ticket) *domain.Ticket {
	c := *t
	c.ReservationStartedAt = copyTime(t.ReservationStartedAt)
	c.CheckinAt = copyTime(t.CheckinAt)
	c.CheckoutAt = copyTime(t.CheckoutAt)
	c.GraceStartedAt = copyTime(t.GraceStartedAt)
	if t.TotalFee != nil {
		fee := *t.TotalFee
		c.TotalFee = &fee
	}
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

var _ Store = (*MemoryStore)(nil)
