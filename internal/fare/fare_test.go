package fare

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-anpr/internal/domain/parking"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func TestLinearPolicy(t *testing.T) {
	c := NewCalculator(Linear{Base: 20, RatePerMinute: 1})

	minutes, amount, err := c.Calculate(t0, t0.Add(45*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 45, minutes)
	assert.Equal(t, 65.0, amount)

	_, amount, err = c.Calculate(t0, t0)
	require.NoError(t, err)
	assert.Equal(t, 20.0, amount)
}

func TestTieredPolicyBoundary(t *testing.T) {
	c := NewCalculator(Tiered{FreeMinutes: 30, FlatFee: 1000})

	_, amount, err := c.Calculate(t0, t0.Add(29*time.Minute+59*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 0.0, amount)

	_, amount, err = c.Calculate(t0, t0.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1000.0, amount)
}

func TestDurationMinutesFloors(t *testing.T) {
	m, err := DurationMinutes(t0, t0.Add(59*time.Second))
	require.NoError(t, err)
	assert.EqualValues(t, 0, m)

	m, err = DurationMinutes(t0, t0.Add(2*time.Hour+30*time.Second))
	require.NoError(t, err)
	assert.EqualValues(t, 120, m)
}

func TestNegativeDurationRejected(t *testing.T) {
	c := NewCalculator(Linear{Base: 20, RatePerMinute: 1})
	_, _, err := c.Calculate(t0, t0.Add(-time.Second))
	assert.ErrorIs(t, err, parking.ErrInvalidDuration)
}

func TestNewPolicy(t *testing.T) {
	p, err := NewPolicy(Config{Policy: "Tiered", FreeMinutes: 30, FlatFee: 1000})
	require.NoError(t, err)
	assert.Equal(t, PolicyTiered, p.Name())

	p, err = NewPolicy(Config{Base: 20, RatePerMinute: 1})
	require.NoError(t, err)
	assert.Equal(t, PolicyLinear, p.Name())

	_, err = NewPolicy(Config{Policy: "hourly"})
	assert.Error(t, err)

	_, err = NewPolicy(Config{Policy: PolicyLinear, RatePerMinute: -1})
	assert.Error(t, err)
}
