package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/parkwise/parking-service/internal/domain"
	"github.com/parkwise/parking-service/internal/dto"
	"github.com/parkwise/parking-service/internal/metrics"
	"github.com/parkwise/parking-service/internal/pricing"
	"github.com/parkwise/parking-service/internal/repository"
	"github.com/parkwise/parking-service/pkg/logger"
	"github.com/parkwise/parking-service/pkg/telemetry"
)

// ParkingService defines the ticket lifecycle business logic
type ParkingService interface {
	// Reserve creates an unpaid reservation hold on an available space
	Reserve(ctx context.Context, userID string, req *dto.ReserveRequest) (*dto.ReserveResponse, error)

	// ConfirmReservationPayment confirms the up-front reservation fee and
	// starts the commitment clock
	ConfirmReservationPayment(ctx context.Context, ticketID string) (*dto.TicketResponse, error)

	// CheckIn records the vehicle entering its reserved space
	CheckIn(ctx context.Context, ticketID string, req *dto.CheckInRequest) (*dto.TicketResponse, error)

	// CheckOut computes the total parking fee and either bills the balance
	// or, when the pre-paid fee covers the stay, settles immediately
	CheckOut(ctx context.Context, ticketID string) (*dto.CheckOutResponse, error)

	// ConfirmExitPayment confirms the exit balance payment and starts the
	// grace window for vacating the space
	ConfirmExitPayment(ctx context.Context, ticketID string) (*dto.TicketResponse, error)

	// ConfirmVacant handles the sensor reporting a space empty. A signal for
	// a space not awaiting vacating is ignored, not an error.
	ConfirmVacant(ctx context.Context, spaceID string) (*dto.VacantResponse, error)

	// MarkNoShow forfeits a RESERVED ticket whose commitment window has
	// elapsed without a check-in and releases its space. The window is
	// re-verified inside the transaction, so a payment or check-in that
	// lands between a sweep's scan and this call wins.
	MarkNoShow(ctx context.Context, ticketID, reason string) error

	// ExpireStaleHold forfeits a PENDING_PAYMENT hold created before cutoff
	// whose reservation fee never arrived. The hold's age and status are
	// re-verified inside the transaction, so a payment webhook that lands
	// between the sweep's scan and this call wins.
	ExpireStaleHold(ctx context.Context, ticketID string, cutoff time.Time, reason string) error

	// RevertOverstay returns a paid ticket whose grace window opened before
	// cutoff to PARKED so the continued stay is billed from the original
	// check-in. The grace window is re-verified inside the transaction.
	RevertOverstay(ctx context.Context, ticketID string, cutoff time.Time) error

	// GetTicket retrieves a ticket by ID. When callerID is non-empty the
	// ticket must belong to that user; a foreign ticket reads as not found.
	GetTicket(ctx context.Context, ticketID, callerID string) (*dto.TicketResponse, error)

	// ListMyTickets retrieves every ticket belonging to a user, newest first
	ListMyTickets(ctx context.Context, userID string) ([]*dto.TicketResponse, error)

	// ListSpaces retrieves spaces matching the query
	ListSpaces(ctx context.Context, query *dto.SpaceListQuery) ([]*dto.SpaceResponse, error)
}

// parkingService implements ParkingService
type parkingService struct {
	store     repository.Store
	publisher EventPublisher
	log       *logger.Logger
}

// NewParkingService creates a new parking service
func NewParkingService(store repository.Store, publisher EventPublisher, log *logger.Logger) ParkingService {
	if publisher == nil {
		publisher = NewNoOpEventPublisher()
	}
	if log == nil {
		log = logger.Get()
	}
	return &parkingService{
		store:     store,
		publisher: publisher,
		log:       log,
	}
}

// Reserve creates an unpaid reservation hold on an available space
func (s *parkingService) Reserve(ctx context.Context, userID string, req *dto.ReserveRequest) (*dto.ReserveResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.parking.reserve")
	defer span.End()

	if req == nil || req.SpaceID == "" {
		span.SetStatus(codes.Error, "invalid space_id")
		return nil, domain.ErrInvalidSpaceID
	}
	plate := domain.NormalizePlate(req.VehiclePlate)
	if plate == "" {
		span.SetStatus(codes.Error, "invalid vehicle_plate")
		return nil, domain.ErrInvalidPlate
	}
	fee, err := pricing.ReservationFee(req.CommitmentMinutes)
	if err != nil {
		span.SetStatus(codes.Error, "invalid commitment")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("space_id", req.SpaceID),
		attribute.String("vehicle_plate", plate),
		attribute.Int("commitment_minutes", req.CommitmentMinutes),
	)

	var resp *dto.ReserveResponse
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		space, err := tx.Spaces().GetForUpdate(ctx, req.SpaceID)
		if err != nil {
			return err
		}
		if space.Status != domain.SpaceStatusAvailable {
			return domain.ErrSpaceUnavailable
		}

		if active, err := tx.Tickets().FindActiveByPlate(ctx, plate); err != nil {
			return err
		} else if active != nil {
			return domain.ErrPlateAlreadyActive
		}

		now := time.Now().UTC()
		ticket := &domain.Ticket{
			ID:                uuid.New().String(),
			SpaceID:           space.ID,
			VehiclePlate:      plate,
			Status:            domain.TicketStatusPendingPayment,
			CommitmentMinutes: req.CommitmentMinutes,
			AmountDue:         fee,
			UserID:            userID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := tx.Tickets().Create(ctx, ticket); err != nil {
			return err
		}

		space.Hold(ticket.ID, domain.SpaceStatusReserved)
		if err := tx.Spaces().Update(ctx, space); err != nil {
			return err
		}

		resp = &dto.ReserveResponse{
			TicketID:     ticket.ID,
			SpaceCode:    space.Code,
			VehiclePlate: ticket.VehiclePlate,
			Status:       ticket.Status.String(),
			AmountDue:    ticket.AmountDue,
		}
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, span, "reserve", err)
		return nil, err
	}

	if metrics.TicketsReserved != nil {
		metrics.TicketsReserved.Inc(ctx)
	}
	if metrics.ActiveTickets != nil {
		metrics.ActiveTickets.Add(ctx, 1)
	}
	s.publishAfterCommit(ctx, domain.TicketEventReserved, resp.TicketID)
	return resp, nil
}

// ConfirmReservationPayment confirms the reservation fee payment
func (s *parkingService) ConfirmReservationPayment(ctx context.Context, ticketID string) (*dto.TicketResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.parking.confirm_reservation_payment")
	defer span.End()

	if ticketID == "" {
		return nil, domain.ErrInvalidTicketID
	}
	span.SetAttributes(attribute.String("ticket_id", ticketID))

	var resp *dto.TicketResponse
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		ticket, err := tx.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket.CheckinAt != nil {
			// post-checkout billing also sits in PENDING_PAYMENT; that leg
			// belongs to ConfirmExitPayment
			return domain.ErrInvalidTransition
		}
		next, err := domain.NextStatus(ticket.Status, domain.EventReservationPaid)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		ticket.Status = next
		ticket.AmountPaid += ticket.AmountDue
		ticket.AmountDue = 0
		ticket.ReservationStartedAt = &now
		ticket.UpdatedAt = now
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}

		resp = toTicketResponse(ticket)
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, span, "confirm_reservation_payment", err)
		return nil, err
	}

	if metrics.ReservationsPaid != nil {
		metrics.ReservationsPaid.Inc(ctx)
	}
	s.publishAfterCommit(ctx, domain.TicketEventReservationPaid, ticketID)
	return resp, nil
}

// CheckIn records the vehicle entering its reserved space
func (s *parkingService) CheckIn(ctx context.Context, ticketID string, req *dto.CheckInRequest) (*dto.TicketResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.parking.check_in")
	defer span.End()

	if ticketID == "" {
		return nil, domain.ErrInvalidTicketID
	}
	if req == nil || domain.NormalizePlate(req.VehiclePlate) == "" {
		return nil, domain.ErrInvalidPlate
	}
	plate := domain.NormalizePlate(req.VehiclePlate)

	span.SetAttributes(
		attribute.String("ticket_id", ticketID),
		attribute.String("vehicle_plate", plate),
	)

	var resp *dto.TicketResponse
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		ticket, err := tx.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket.VehiclePlate != plate {
			return domain.ErrPlateMismatch
		}
		next, err := domain.NextStatus(ticket.Status, domain.EventCheckIn)
		if err != nil {
			return err
		}

		space, err := tx.Spaces().GetForUpdate(ctx, ticket.SpaceID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		ticket.Status = next
		ticket.CheckinAt = &now
		ticket.UpdatedAt = now
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}

		space.Hold(ticket.ID, domain.SpaceStatusOccupied)
		if err := tx.Spaces().Update(ctx, space); err != nil {
			return err
		}

		resp = toTicketResponse(ticket)
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, span, "check_in", err)
		return nil, err
	}

	if metrics.CheckIns != nil {
		metrics.CheckIns.Inc(ctx)
	}
	s.publishAfterCommit(ctx, domain.TicketEventCheckedIn, ticketID)
	return resp, nil
}

// CheckOut computes the total fee for the stay. The pre-paid reservation fee
// counts toward the total; when it covers the whole stay the ticket settles
// in the same transaction without a second payment round-trip.
func (s *parkingService) CheckOut(ctx context.Context, ticketID string) (*dto.CheckOutResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.parking.check_out")
	defer span.End()

	if ticketID == "" {
		return nil, domain.ErrInvalidTicketID
	}
	span.SetAttributes(attribute.String("ticket_id", ticketID))

	var resp *dto.CheckOutResponse
	var settled bool
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		ticket, err := tx.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		next, err := domain.NextStatus(ticket.Status, domain.EventCheckOut)
		if err != nil {
			return err
		}
		if ticket.CheckinAt == nil {
			return domain.ErrNotCheckedIn
		}

		now := time.Now().UTC()
		total := pricing.TotalParkingFee(*ticket.CheckinAt, now)
		due := total - ticket.AmountPaid
		if due < 0 {
			due = 0
		}

		ticket.Status = next
		ticket.CheckoutAt = &now
		ticket.TotalFee = &total
		ticket.AmountDue = due
		ticket.UpdatedAt = now

		if due == 0 {
			// Pre-paid fee covers the stay, settle without a payment step
			paid, err := domain.NextStatus(ticket.Status, domain.EventExitPaid)
			if err != nil {
				return err
			}
			ticket.Status = paid
			ticket.GraceStartedAt = &now
			settled = true
		}

		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}

		if settled {
			space, err := tx.Spaces().GetForUpdate(ctx, ticket.SpaceID)
			if err != nil {
				return err
			}
			space.Hold(ticket.ID, domain.SpaceStatusPendingVacate)
			if err := tx.Spaces().Update(ctx, space); err != nil {
				return err
			}
		}

		resp = &dto.CheckOutResponse{
			TicketID:        ticket.ID,
			Status:          ticket.Status.String(),
			TotalParkingFee: total,
			AmountPaid:      ticket.AmountPaid,
			AmountDue:       due,
		}

		if metrics.ParkingDuration != nil {
			metrics.ParkingDuration.Record(ctx, now.Sub(*ticket.CheckinAt).Minutes())
		}
		if metrics.ParkingFee != nil {
			metrics.ParkingFee.Record(ctx, total)
		}
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, span, "check_out", err)
		return nil, err
	}

	if metrics.CheckOuts != nil {
		metrics.CheckOuts.Inc(ctx)
	}
	s.publishAfterCommit(ctx, domain.TicketEventCheckedOut, ticketID)
	if settled {
		if metrics.ExitPayments != nil {
			metrics.ExitPayments.Inc(ctx)
		}
		s.publishAfterCommit(ctx, domain.TicketEventExitPaid, ticketID)
	}
	return resp, nil
}

// ConfirmExitPayment confirms the exit balance payment
func (s *parkingService) ConfirmExitPayment(ctx context.Context, ticketID string) (*dto.TicketResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.parking.confirm_exit_payment")
	defer span.End()

	if ticketID == "" {
		return nil, domain.ErrInvalidTicketID
	}
	span.SetAttributes(attribute.String("ticket_id", ticketID))

	var resp *dto.TicketResponse
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		ticket, err := tx.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		// exit billing only; an unpaid pre-check-in hold is not payable here
		if ticket.CheckinAt == nil {
			return domain.ErrNotCheckedIn
		}
		next, err := domain.NextStatus(ticket.Status, domain.EventExitPaid)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		ticket.Status = next
		ticket.AmountPaid += ticket.AmountDue
		ticket.AmountDue = 0
		ticket.GraceStartedAt = &now
		ticket.UpdatedAt = now
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}

		space, err := tx.Spaces().GetForUpdate(ctx, ticket.SpaceID)
		if err != nil {
			return err
		}
		space.Hold(ticket.ID, domain.SpaceStatusPendingVacate)
		if err := tx.Spaces().Update(ctx, space); err != nil {
			return err
		}

		resp = toTicketResponse(ticket)
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, span, "confirm_exit_payment", err)
		return nil, err
	}

	if metrics.ExitPayments != nil {
		metrics.ExitPayments.Inc(ctx)
	}
	s.publishAfterCommit(ctx, domain.TicketEventExitPaid, ticketID)
	return resp, nil
}

// ConfirmVacant handles the sensor reporting a space empty
func (s *parkingService) ConfirmVacant(ctx context.Context, spaceID string) (*dto.VacantResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.parking.confirm_vacant")
	defer span.End()

	if spaceID == "" {
		return nil, domain.ErrInvalidSpaceID
	}
	span.SetAttributes(attribute.String("space_id", spaceID))

	var resp *dto.VacantResponse
	var completedTicketID string
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		space, err := tx.Spaces().GetForUpdate(ctx, spaceID)
		if err != nil {
			return err
		}

		// Sensors fire on any departure; only a paid ticket waiting to
		// vacate completes here. Everything else is a benign signal.
		if space.Status != domain.SpaceStatusPendingVacate || space.CurrentTicketID == nil {
			resp = &dto.VacantResponse{
				SpaceID: space.ID,
				Ignored: true,
				Message: "space is not awaiting vacating",
			}
			return nil
		}

		ticket, err := tx.Tickets().GetForUpdate(ctx, *space.CurrentTicketID)
		if err != nil {
			return err
		}
		next, err := domain.NextStatus(ticket.Status, domain.EventVacated)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		ticket.Status = next
		ticket.UpdatedAt = now
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}

		space.Release()
		if err := tx.Spaces().Update(ctx, space); err != nil {
			return err
		}

		completedTicketID = ticket.ID
		resp = &dto.VacantResponse{
			SpaceID: space.ID,
			Message: "space released",
		}
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, span, "confirm_vacant", err)
		return nil, err
	}

	if completedTicketID != "" {
		if metrics.TicketsCompleted != nil {
			metrics.TicketsCompleted.Inc(ctx)
		}
		if metrics.ActiveTickets != nil {
			metrics.ActiveTickets.Add(ctx, -1)
		}
		s.publishAfterCommit(ctx, domain.TicketEventCompleted, completedTicketID)
	}
	return resp, nil
}

// MarkNoShow forfeits a reservation that never checked in. The conditions
// the sweep scanned for are re-verified under the row lock: the ticket must
// still be RESERVED, not checked in, and past its commitment deadline.
// A payment that restarted the reservation clock in the meantime pushes the
// deadline forward and the forfeit is refused.
func (s *parkingService) MarkNoShow(ctx context.Context, ticketID, reason string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.parking.mark_no_show")
	defer span.End()

	if ticketID == "" {
		return domain.ErrInvalidTicketID
	}
	span.SetAttributes(attribute.String("ticket_id", ticketID))

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		ticket, err := tx.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket.Status != domain.TicketStatusReserved || ticket.CheckinAt != nil {
			return domain.ErrInvalidTransition
		}
		now := time.Now().UTC()
		deadline, ok := ticket.NoShowDeadline()
		if !ok || now.Before(deadline) {
			return domain.ErrInvalidTransition
		}
		next, err := domain.NextStatus(ticket.Status, domain.EventNoShowTimeout)
		if err != nil {
			return err
		}

		ticket.Status = next
		ticket.CancelReason = reason
		ticket.UpdatedAt = now
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}

		space, err := tx.Spaces().GetForUpdate(ctx, ticket.SpaceID)
		if err != nil {
			return err
		}
		space.Release()
		return tx.Spaces().Update(ctx, space)
	})
	if err != nil {
		s.recordFailure(ctx, span, "mark_no_show", err)
		return err
	}

	if metrics.NoShows != nil {
		metrics.NoShows.Inc(ctx)
	}
	if metrics.ActiveTickets != nil {
		metrics.ActiveTickets.Add(ctx, -1)
	}
	s.publishAfterCommit(ctx, domain.TicketEventNoShow, ticketID)
	return nil
}

// ExpireStaleHold forfeits a hold whose reservation fee never arrived. The
// conditions the sweep scanned for are re-verified under the row lock: the
// ticket must still be PENDING_PAYMENT, not checked in, and older than
// cutoff. A reservation payment that landed in the meantime moved the ticket
// to RESERVED and the expiry is refused.
func (s *parkingService) ExpireStaleHold(ctx context.Context, ticketID string, cutoff time.Time, reason string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.parking.expire_stale_hold")
	defer span.End()

	if ticketID == "" {
		return domain.ErrInvalidTicketID
	}
	span.SetAttributes(attribute.String("ticket_id", ticketID))

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		ticket, err := tx.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket.Status != domain.TicketStatusPendingPayment || ticket.CheckinAt != nil {
			return domain.ErrInvalidTransition
		}
		if !ticket.CreatedAt.Before(cutoff) {
			return domain.ErrInvalidTransition
		}
		next, err := domain.NextStatus(ticket.Status, domain.EventNoShowTimeout)
		if err != nil {
			return err
		}

		ticket.Status = next
		ticket.CancelReason = reason
		ticket.UpdatedAt = time.Now().UTC()
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}

		space, err := tx.Spaces().GetForUpdate(ctx, ticket.SpaceID)
		if err != nil {
			return err
		}
		space.Release()
		return tx.Spaces().Update(ctx, space)
	})
	if err != nil {
		s.recordFailure(ctx, span, "expire_stale_hold", err)
		return err
	}

	if metrics.StaleHoldsExpired != nil {
		metrics.StaleHoldsExpired.Inc(ctx)
	}
	if metrics.ActiveTickets != nil {
		metrics.ActiveTickets.Add(ctx, -1)
	}
	s.publishAfterCommit(ctx, domain.TicketEventHoldExpired, ticketID)
	return nil
}

// RevertOverstay returns a paid ticket that never vacated to PARKED. The
// check-in timestamp is untouched, so the next check-out bills the entire
// stay and credits everything already paid. The grace window is re-verified
// under the row lock so a vacate confirmation or a regressed grace clock
// between the sweep's scan and this call refuses the revert.
func (s *parkingService) RevertOverstay(ctx context.Context, ticketID string, cutoff time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "service.parking.revert_overstay")
	defer span.End()

	if ticketID == "" {
		return domain.ErrInvalidTicketID
	}
	span.SetAttributes(attribute.String("ticket_id", ticketID))

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		ticket, err := tx.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket.Status != domain.TicketStatusPaid || ticket.GraceStartedAt == nil ||
			!ticket.GraceStartedAt.Before(cutoff) {
			return domain.ErrInvalidTransition
		}
		next, err := domain.NextStatus(ticket.Status, domain.EventGraceExpired)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		ticket.Status = next
		ticket.CheckoutAt = nil
		ticket.TotalFee = nil
		ticket.GraceStartedAt = nil
		ticket.UpdatedAt = now
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}

		space, err := tx.Spaces().GetForUpdate(ctx, ticket.SpaceID)
		if err != nil {
			return err
		}
		space.Hold(ticket.ID, domain.SpaceStatusOccupied)
		return tx.Spaces().Update(ctx, space)
	})
	if err != nil {
		s.recordFailure(ctx, span, "revert_overstay", err)
		return err
	}

	if metrics.OverstayReverts != nil {
		metrics.OverstayReverts.Inc(ctx)
	}
	s.publishAfterCommit(ctx, domain.TicketEventOverstayReverted, ticketID)
	return nil
}

// GetTicket retrieves a ticket by ID. A ticket belonging to another user
// reads as not found rather than forbidden, so ticket IDs leak nothing.
func (s *parkingService) GetTicket(ctx context.Context, ticketID, callerID string) (*dto.TicketResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.parking.get_ticket")
	defer span.End()

	if ticketID == "" {
		return nil, domain.ErrInvalidTicketID
	}
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if callerID != "" && ticket.UserID != callerID {
		return nil, domain.ErrTicketNotFound
	}
	return toTicketResponse(ticket), nil
}

// ListMyTickets retrieves every ticket belonging to a user, newest first
func (s *parkingService) ListMyTickets(ctx context.Context, userID string) ([]*dto.TicketResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.parking.list_my_tickets")
	defer span.End()

	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}
	span.SetAttributes(attribute.String("user_id", userID))

	tickets, err := s.store.Tickets().ListByUser(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	resp := make([]*dto.TicketResponse, 0, len(tickets))
	for _, ticket := range tickets {
		resp = append(resp, toTicketResponse(ticket))
	}
	return resp, nil
}

// ListSpaces retrieves spaces matching the query
func (s *parkingService) ListSpaces(ctx context.Context, query *dto.SpaceListQuery) ([]*dto.SpaceResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.parking.list_spaces")
	defer span.End()

	filter := repository.SpaceFilter{}
	if query != nil {
		filter.Status = domain.SpaceStatus(query.Status)
		filter.ZoneID = query.ZoneID
		filter.Limit = query.Limit
		filter.Offset = query.Offset
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, domain.ErrInvalidSpaceID
	}

	spaces, err := s.store.Spaces().List(ctx, filter)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	out := make([]*dto.SpaceResponse, 0, len(spaces))
	for _, sp := range spaces {
		out = append(out, &dto.SpaceResponse{
			ID:              sp.ID,
			Code:            sp.Code,
			ZoneID:          sp.ZoneID,
			Status:          string(sp.Status),
			CurrentTicketID: sp.CurrentTicketID,
		})
	}
	return out, nil
}

// publishAfterCommit publishes an event for a committed transition. Publish
// failures are logged and swallowed; the state change already committed.
func (s *parkingService) publishAfterCommit(ctx context.Context, eventType domain.TicketEventType, ticketID string) {
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		s.log.Warn("failed to load ticket for event publish",
			zap.String("ticket_id", ticketID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
		return
	}
	if err := s.publisher.PublishTicketEvent(ctx, eventType, ticket); err != nil {
		s.log.Warn("failed to publish ticket event",
			zap.String("ticket_id", ticketID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}

func (s *parkingService) recordFailure(ctx context.Context, span trace.Span, op string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if metrics.LifecycleFailures != nil {
		metrics.LifecycleFailures.Inc(ctx, attribute.String("operation", op))
	}
}

func toTicketResponse(t *domain.Ticket) *dto.TicketResponse {
	return &dto.TicketResponse{
		ID:                   t.ID,
		SpaceID:              t.SpaceID,
		VehiclePlate:         t.VehiclePlate,
		Status:               t.Status.String(),
		CommitmentMinutes:    t.CommitmentMinutes,
		AmountPaid:           t.AmountPaid,
		AmountDue:            t.AmountDue,
		ReservationStartedAt: t.ReservationStartedAt,
		CheckinAt:            t.CheckinAt,
		CheckoutAt:           t.CheckoutAt,
		TotalFee:             t.TotalFee,
		CancelReason:         t.CancelReason,
		CreatedAt:            t.CreatedAt,
	}
}
