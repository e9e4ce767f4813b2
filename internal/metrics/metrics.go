package metrics

import (
	"sync"

	"github.com/parkwise/parking-service/pkg/telemetry"
)

var (
	// Lifecycle counters
	TicketsReserved    *telemetry.Counter
	ReservationsPaid   *telemetry.Counter
	CheckIns           *telemetry.Counter
	CheckOuts          *telemetry.Counter
	ExitPayments       *telemetry.Counter
	TicketsCompleted   *telemetry.Counter
	NoShows            *telemetry.Counter
	OverstayReverts    *telemetry.Counter
	StaleHoldsExpired  *telemetry.Counter
	LifecycleFailures  *telemetry.Counter

	// Histograms
	ParkingDuration *telemetry.Histogram
	ParkingFee      *telemetry.Histogram

	// Gauges
	ActiveTickets *telemetry.UpDownCounter

	initOnce sync.Once
	initErr  error
)

// Init initializes all parking metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	var err error

	TicketsReserved, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "parking_reservations_total",
		Description: "Total number of space reservations created",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ReservationsPaid, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "parking_reservation_payments_total",
		Description: "Total number of reservation fees confirmed",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	CheckIns, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "parking_checkins_total",
		Description: "Total number of vehicle check-ins",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	CheckOuts, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "parking_checkouts_total",
		Description: "Total number of vehicle check-outs",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ExitPayments, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "parking_exit_payments_total",
		Description: "Total number of exit balance payments confirmed",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	TicketsCompleted, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "parking_tickets_completed_total",
		Description: "Total number of tickets completed after the space was vacated",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	NoShows, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "parking_no_shows_total",
		Description: "Total number of reservations forfeited without check-in",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	OverstayReverts, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "parking_overstay_reverts_total",
		Description: "Total number of paid tickets reverted to parked after the grace window",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	StaleHoldsExpired, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "parking_stale_holds_expired_total",
		Description: "Total number of unpaid reservation holds released by the sweep",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	LifecycleFailures, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "parking_lifecycle_failures_total",
		Description: "Total number of lifecycle operations that returned an error",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ParkingDuration, err = telemetry.NewHistogram(telemetry.MetricOpts{
		Name:        "parking_stay_duration_minutes",
		Description: "Parked duration from check-in to check-out",
		Unit:        "min",
	})
	if err != nil {
		return err
	}

	ParkingFee, err = telemetry.NewHistogram(telemetry.MetricOpts{
		Name:        "parking_total_fee",
		Description: "Total parking fee computed at check-out",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ActiveTickets, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "parking_active_tickets",
		Description: "Number of tickets currently holding a space",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	return nil
}
