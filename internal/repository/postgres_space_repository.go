package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/parkwise/parking-service/internal/domain"
	"github.com/parkwise/parking-service/pkg/telemetry"
)

// PostgresSpaceRepository implements SpaceRepository using PostgreSQL
type PostgresSpaceRepository struct {
	db querier
}

const spaceColumns = `id, code, zone_id, status, current_ticket_id, created_at, updated_at`

// GetByID retrieves a space by its ID
func (r *PostgresSpaceRepository) GetByID(ctx context.Context, id string) (*domain.Space, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.space.get_by_id")
	defer span.End()
	span.SetAttributes(attribute.String("space_id", id))

	query := `SELECT ` + spaceColumns + ` FROM spaces WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetForUpdate retrieves a space and locks its row for the enclosing transaction
func (r *PostgresSpaceRepository) GetForUpdate(ctx context.Context, id string) (*domain.Space, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.space.get_for_update")
	defer span.End()
	span.SetAttributes(attribute.String("space_id", id))

	query := `SELECT ` + spaceColumns + ` FROM spaces WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *PostgresSpaceRepository) getOne(ctx context.Context, query, id string) (*domain.Space, error) {
	space := &domain.Space{}
	var status string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&space.ID,
		&space.Code,
		&space.ZoneID,
		&status,
		&space.CurrentTicketID,
		&space.CreatedAt,
		&space.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSpaceNotFound
		}
		return nil, fmt.Errorf("failed to get space: %w", err)
	}
	space.Status = domain.SpaceStatus(status)
	return space, nil
}

// Update persists the space's status and held-ticket reference
func (r *PostgresSpaceRepository) Update(ctx context.Context, space *domain.Space) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.space.update")
	defer span.End()
	span.SetAttributes(
		attribute.String("space_id", space.ID),
		attribute.String("status", string(space.Status)),
	)

	query := `
		UPDATE spaces
		SET status = $2, current_ticket_id = $3, updated_at = now()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, space.ID, string(space.Status), space.CurrentTicketID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to update space: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSpaceNotFound
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// List retrieves spaces matching the filter
func (r *PostgresSpaceRepository) List(ctx context.Context, filter SpaceFilter) ([]*domain.Space, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.space.list")
	defer span.End()

	query := `SELECT ` + spaceColumns + ` FROM spaces WHERE 1=1`
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.ZoneID != "" {
		args = append(args, filter.ZoneID)
		query += fmt.Sprintf(" AND zone_id = $%d", len(args))
	}
	query += " ORDER BY code"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}
	defer rows.Close()

	spaces := []*domain.Space{}
	for rows.Next() {
		space := &domain.Space{}
		var status string
		if err := rows.Scan(
			&space.ID,
			&space.Code,
			&space.ZoneID,
			&status,
			&space.CurrentTicketID,
			&space.CreatedAt,
			&space.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan space: %w", err)
		}
		space.Status = domain.SpaceStatus(status)
		spaces = append(spaces, space)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read spaces: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(spaces)))
	span.SetStatus(codes.Ok, "")
	return spaces, nil
}

var _ SpaceRepository = (*PostgresSpaceRepository)(nil)
