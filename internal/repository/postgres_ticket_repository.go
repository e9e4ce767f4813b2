package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/parkwise/parking-service/internal/domain"
	"github.com/parkwise/parking-service/pkg/telemetry"
)

// PostgresTicketRepository implements TicketRepository using PostgreSQL
type PostgresTicketRepository struct {
	db querier
}

const ticketColumns = `
	id, space_id, vehicle_plate, status, commitment_minutes,
	amount_paid, amount_due, reservation_started_at, checkin_at, checkout_at,
	total_fee, grace_started_at, cancel_reason, user_id, created_at, updated_at`

// activePlateConstraint is the partial unique index enforcing at most one
// active ticket per vehicle plate.
const activePlateConstraint = "tickets_active_plate_key"

// Create inserts a new ticket
func (r *PostgresTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("ticket_id", ticket.ID),
		attribute.String("space_id", ticket.SpaceID),
		attribute.String("vehicle_plate", ticket.VehiclePlate),
	)

	query := `
		INSERT INTO tickets (
			id, space_id, vehicle_plate, status, commitment_minutes,
			amount_paid, amount_due, reservation_started_at, checkin_at, checkout_at,
			total_fee, grace_started_at, cancel_reason, user_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16
		)
	`
	_, err := r.db.Exec(ctx, query,
		ticket.ID,
		ticket.SpaceID,
		ticket.VehiclePlate,
		ticket.Status.String(),
		ticket.CommitmentMinutes,
		ticket.AmountPaid,
		ticket.AmountDue,
		ticket.ReservationStartedAt,
		ticket.CheckinAt,
		ticket.CheckoutAt,
		ticket.TotalFee,
		ticket.GraceStartedAt,
		nullString(ticket.CancelReason),
		ticket.UserID,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, activePlateConstraint) {
			span.SetStatus(codes.Error, "plate conflict")
			return domain.ErrPlateAlreadyActive
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create ticket: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID retrieves a ticket by its ID
func (r *PostgresTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.get_by_id")
	defer span.End()
	span.SetAttributes(attribute.String("ticket_id", id))

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetForUpdate retrieves a ticket and locks its row for the enclosing transaction
func (r *PostgresTicketRepository) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.get_for_update")
	defer span.End()
	span.SetAttributes(attribute.String("ticket_id", id))

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *PostgresTicketRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	row := r.db.QueryRow(ctx, query, args...)
	ticket, err := scanTicketRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return ticket, nil
}

// Update persists all mutable ticket fields
func (r *PostgresTicketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.update")
	defer span.End()
	span.SetAttributes(
		attribute.String("ticket_id", ticket.ID),
		attribute.String("status", ticket.Status.String()),
	)

	query := `
		UPDATE tickets
		SET status = $2,
			amount_paid = $3,
			amount_due = $4,
			reservation_started_at = $5,
			checkin_at = $6,
			checkout_at = $7,
			total_fee = $8,
			grace_started_at = $9,
			cancel_reason = $10,
			updated_at = now()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query,
		ticket.ID,
		ticket.Status.String(),
		ticket.AmountPaid,
		ticket.AmountDue,
		ticket.ReservationStartedAt,
		ticket.CheckinAt,
		ticket.CheckoutAt,
		ticket.TotalFee,
		ticket.GraceStartedAt,
		nullString(ticket.CancelReason),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to update ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTicketNotFound
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// FindActiveByPlate returns the active ticket for a plate, or nil when none exists
func (r *PostgresTicketRepository) FindActiveByPlate(ctx context.Context, plate string) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.find_active_by_plate")
	defer span.End()
	span.SetAttributes(attribute.String("vehicle_plate", plate))

	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE vehicle_plate = $1
		  AND status = ANY($2)
		LIMIT 1
	`
	row := r.db.QueryRow(ctx, query, plate, activeStatusStrings())
	ticket, err := scanTicketRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active ticket by plate: %w", err)
	}
	return ticket, nil
}

// ListByUser returns every ticket created by a user, newest first
func (r *PostgresTicketRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.list_by_user")
	defer span.End()

	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	tickets, err := r.list(ctx, query, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("count", len(tickets)))
	span.SetStatus(codes.Ok, "")
	return tickets, nil
}

// ListNoShowCandidates returns RESERVED tickets that never checked in and
// whose commitment window passed at now. Tickets with a missing reservation
// start are included so the sweep can log and skip them.
func (r *PostgresTicketRepository) ListNoShowCandidates(ctx context.Context, now time.Time, limit int) ([]*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.list_no_show_candidates")
	defer span.End()

	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE status = $1
		  AND checkin_at IS NULL
		  AND (reservation_started_at IS NULL
			OR reservation_started_at + commitment_minutes * interval '1 minute' < $2)
		ORDER BY created_at
		LIMIT $3
	`
	tickets, err := r.list(ctx, query, domain.TicketStatusReserved.String(), now, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("count", len(tickets)))
	span.SetStatus(codes.Ok, "")
	return tickets, nil
}

// ListOverstayed returns PAID tickets whose grace period started before cutoff
func (r *PostgresTicketRepository) ListOverstayed(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.list_overstayed")
	defer span.End()

	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE status = $1
		  AND grace_started_at < $2
		ORDER BY grace_started_at
		LIMIT $3
	`
	tickets, err := r.list(ctx, query, domain.TicketStatusPaid.String(), cutoff, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("count", len(tickets)))
	span.SetStatus(codes.Ok, "")
	return tickets, nil
}

// ListStaleHolds returns PENDING_PAYMENT tickets that never checked in and
// were created before cutoff
func (r *PostgresTicketRepository) ListStaleHolds(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.list_stale_holds")
	defer span.End()

	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE status = $1
		  AND checkin_at IS NULL
		  AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`
	tickets, err := r.list(ctx, query, domain.TicketStatusPendingPayment.String(), cutoff, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("count", len(tickets)))
	span.SetStatus(codes.Ok, "")
	return tickets, nil
}

func (r *PostgresTicketRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Ticket, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	tickets := []*domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicketRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tickets: %w", err)
	}
	return tickets, nil
}

// scanner matches both pgx.Row and pgx.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanTicketRow(row scanner) (*domain.Ticket, error) {
	ticket := &domain.Ticket{}
	var (
		status       string
		cancelReason *string
	)
	err := row.Scan(
		&ticket.ID,
		&ticket.SpaceID,
		&ticket.VehiclePlate,
		&status,
		&ticket.CommitmentMinutes,
		&ticket.AmountPaid,
		&ticket.AmountDue,
		&ticket.ReservationStartedAt,
		&ticket.CheckinAt,
		&ticket.CheckoutAt,
		&ticket.TotalFee,
		&ticket.GraceStartedAt,
		&cancelReason,
		&ticket.UserID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	ticket.Status = domain.TicketStatus(status)
	if cancelReason != nil {
		ticket.CancelReason = *cancelReason
	}
	return ticket, nil
}

func activeStatusStrings() []string {
	statuses := make([]string, 0, len(domain.ActiveTicketStatuses))
	for _, s := range domain.ActiveTicketStatuses {
		statuses = append(statuses, s.String())
	}
	return statuses
}

// nullString converts an empty string to a nil pointer
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

var _ TicketRepository = (*PostgresTicketRepository)(nil)
