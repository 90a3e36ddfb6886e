package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thairide/service-booking/internal/platform/domain"
)

var defaultParams = Params{PriorMean: 4.0, MinReviews: 5}

func TestAggregate_FirstReview(t *testing.T) {
	got, count, err := Aggregate(defaultParams, 4.0, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, 4.2, got)
	assert.Equal(t, 1, count)
}

func TestAggregate_Sequence(t *testing.T) {
	r, n := 4.0, 0
	for _, score := range []int{1, 1, 1} {
		var err error
		r, n, err = Aggregate(defaultParams, r, n, score)
		require.NoError(t, err)
	}
	// The prior holds the rating at 3.5 while the stored rating already includes it.
	assert.Equal(t, 3, n)
	assert.Equal(t, 3.5, r)
}

func TestAggregate_NoPrior(t *testing.T) {
	got, count, err := Aggregate(Params{PriorMean: 4.0, MinReviews: 0}, 0, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)
	assert.Equal(t, 1, count)
}

func TestAggregate_RejectsBadInput(t *testing.T) {
	for _, score := range []int{0, 6, -1} {
		_, _, err := Aggregate(defaultParams, 4.0, 0, score)
		require.Error(t, err)
		assert.True(t, domain.IsKind(err, domain.KindValidation))
	}

	_, _, err := Aggregate(defaultParams, 4.0, -1, 3)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestRound10(t *testing.T) {
	assert.Equal(t, 4.2, Round10(25.0/6.0))
	assert.Equal(t, 4.5, Round10(4.45))
	assert.Equal(t, 1.0, Round10(0.96))
}
