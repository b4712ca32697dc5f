package channel

import (
	"time"

	"github.com/holiman/uint256"

	"paychan/types"
	"paychan/utils"
)

// ComputeStats aggregates the payment history of a channel snapshot. A
// channel with no payments yields zero values across the board rather than
// dividing by zero.
func ComputeStats(ch *types.Channel, now time.Time) *types.ChannelStats {
	stats := &types.ChannelStats{
		ChannelID:       ch.ID,
		TotalVolume:     uint256.NewInt(0),
		AveragePayment:  uint256.NewInt(0),
		LargestPayment:  uint256.NewInt(0),
		SmallestPayment: uint256.NewInt(0),
		TopupCount:      ch.TopupsPerformed,
	}
	if len(ch.History) == 0 {
		return stats
	}

	stats.PaymentCount = len(ch.History)
	stats.SmallestPayment = new(uint256.Int).Set(ch.History[0].Amount)
	for _, rec := range ch.History {
		stats.TotalVolume.Add(stats.TotalVolume, rec.Amount)
		if rec.Amount.Cmp(stats.LargestPayment) > 0 {
			stats.LargestPayment = new(uint256.Int).Set(rec.Amount)
		}
		if rec.Amount.Cmp(stats.SmallestPayment) < 0 {
			stats.SmallestPayment = new(uint256.Int).Set(rec.Amount)
		}
	}
	stats.AveragePayment = new(uint256.Int).Div(stats.TotalVolume, uint256.NewInt(uint64(stats.PaymentCount)))

	ageHours := utils.HoursBetween(ch.CreatedAt, now)
	if ageHours > 0 {
		stats.PaymentsPerHour = float64(stats.PaymentCount) / ageHours
	} else {
		stats.PaymentsPerHour = float64(stats.PaymentCount)
	}
	return stats
}
