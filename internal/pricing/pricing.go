// Package pricing maps parked durations to fees under the tiered schedule.
// Pure functions only; callers decide what to do with the amounts.
package pricing

import (
	"time"

	"github.com/parkwise/parking-service/internal/domain"
)

// Reservation fee per supported pre-paid commitment
var reservationFees = map[int]float64{
	30: 15.00,
	60: 30.00,
}

// ReservationFee returns the up-front fee for a pre-paid duration commitment.
// Only 30 and 60 minute commitments are sold.
func ReservationFee(commitmentMinutes int) (float64, error) {
	fee, ok := reservationFees[commitmentMinutes]
	if !ok {
		return 0, domain.ErrInvalidCommitment
	}
	return fee, nil
}

// stepSchedule holds the fixed price per elapsed-minute bracket. Stays longer
// than the last bracket are billed by extendedBlock on top of its price.
var stepSchedule = []struct {
	uptoMinutes int
	fee         float64
}{
	{30, 15},
	{60, 30},
	{90, 40},
	{120, 50},
	{150, 60},
	{180, 70},
	{240, 75},
	{300, 80},
	{360, 85},
}

const (
	extendedBlockMinutes = 120
	extendedBlockFee     = 5
)

// TotalParkingFee returns the total fee for a stay between checkin and
// checkout. Elapsed time is rounded up to whole minutes; zero or negative
// stays cost nothing. The schedule is monotone non-decreasing in minutes.
func TotalParkingFee(checkin, checkout time.Time) float64 {
	minutes := ceilMinutes(checkout.Sub(checkin))
	if minutes <= 0 {
		return 0
	}

	for _, step := range stepSchedule {
		if minutes <= step.uptoMinutes {
			return step.fee
		}
	}

	last := stepSchedule[len(stepSchedule)-1]
	over := minutes - last.uptoMinutes
	blocks := (over + extendedBlockMinutes - 1) / extendedBlockMinutes
	return last.fee + float64(blocks)*extendedBlockFee
}

func ceilMinutes(d time.Duration) int {
	minutes := d / time.Minute
	if d%time.Minute > 0 {
		minutes++
	}
	return int(minutes)
}
