package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeRangeValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, TimeRange{}.Validate())
	assert.NoError(t, Since(day(3)).Validate())
	assert.NoError(t, Between(day(1), day(1)).Validate())
	assert.ErrorIs(t, Between(day(2), day(1)).Validate(), ErrInvalidRange)
}

func TestTimeRangeContains(t *testing.T) {
	t.Parallel()

	r := Between(day(1), day(3))
	assert.True(t, r.Contains(day(1)))
	assert.True(t, r.Contains(day(3)))
	assert.False(t, r.Contains(day(0)))
	assert.False(t, r.Contains(day(3).Add(time.Second)))

	assert.True(t, TimeRange{}.Contains(day(100)))
	assert.True(t, TimeRange{}.IsZero())
	assert.True(t, Since(day(2)).Contains(day(50)))
	assert.False(t, Since(day(2)).Contains(day(1)))
}

func TestTimeRangeUTC(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("EST", -5*60*60)
	r := Between(time.Date(2024, 1, 1, 9, 30, 0, 0, loc), time.Time{}).UTC()
	assert.Equal(t, time.UTC, r.From.Location())
	assert.Equal(t, 14, r.From.Hour())
	assert.True(t, r.To.IsZero())
}
