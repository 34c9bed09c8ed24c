package publicapi

import (
	"github.com/walking-football-hub/wfh-backend/internal/programs"
)

// StatsResponse is the /apiStatsLite payload.
type StatsResponse struct {
	TotalPrograms        int     `json:"totalPrograms"`
	AvgRatingAllPrograms float64 `json:"avgRatingAllPrograms"`
}

// ComputeStats derives the participation-weighted average rating across all
// programs: sum(avg_i * count_i) / sum(count_i), zero when no ratings exist
// anywhere, rounded to two decimals.
func ComputeStats(items []programs.Program) StatsResponse {
	totalRatings := 0
	weightedSum := 0.0

	for _, p := range items {
		totalRatings += p.RatingCount
		weightedSum += p.RatingAvg * float64(p.RatingCount)
	}

	avg := 0.0
	if totalRatings > 0 {
		avg = programs.Round2(weightedSum / float64(totalRatings))
	}

	return StatsResponse{
		TotalPrograms:        len(items),
		AvgRatingAllPrograms: avg,
	}
}
