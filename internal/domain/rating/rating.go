// Package rating keeps driver ratings stable against a handful of early reviews by
// blending the observed scores with a prior.
package rating

import (
	"fmt"
	"math"

	"github.com/thairide/service-booking/internal/platform/domain"
)

const (
	MinScore = 1
	MaxScore = 5
)

// Params configures the smoothing prior.
type Params struct {
	PriorMean  float64
	MinReviews int
}

// Aggregate folds score into a driver's (rating, count) and returns the new pair.
//
//	newRating = round10((PriorMean*MinReviews + rating*count + score) / (MinReviews + count + 1))
func Aggregate(p Params, rating float64, count int, score int) (float64, int, error) {
	if score < MinScore || score > MaxScore {
		return 0, 0, domain.NewValidationError(fmt.Sprintf("score must be between %d and %d", MinScore, MaxScore))
	}
	if count < 0 {
		return 0, 0, domain.NewValidationError("rating count must not be negative")
	}

	totalSum := rating*float64(count) + float64(score)
	totalCount := count + 1
	smoothed := (p.PriorMean*float64(p.MinReviews) + totalSum) / float64(p.MinReviews+totalCount)
	return Round10(smoothed), totalCount, nil
}

// Round10 rounds to one decimal place, halves away from zero.
func Round10(x float64) float64 {
	return math.Round(x*10) / 10
}
