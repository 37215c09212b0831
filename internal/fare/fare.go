// Package fare turns a parked duration into a monetary amount.
//
// Two policies exist side by side because the facility has charged both
// ways: a linear per-minute tariff and a free grace period followed by a
// flat fee. The active policy is picked from configuration at startup.
package fare

import (
	"fmt"
	"math"
	"strings"
	"time"

	"parking-anpr/internal/domain/parking"
)

const (
	PolicyLinear = "linear"
	PolicyTiered = "tiered"
)

type Policy interface {
	Name() string
	Amount(durationMinutes int64) float64
}

type Linear struct {
	Base          float64
	RatePerMinute float64
}

func (Linear) Name() string { return PolicyLinear }

func (p Linear) Amount(minutes int64) float64 {
	return round2(p.Base + p.RatePerMinute*float64(minutes))
}

// Tiered charges nothing below FreeMinutes and FlatFee from FreeMinutes on.
type Tiered struct {
	FreeMinutes int64
	FlatFee     float64
}

func (Tiered) Name() string { return PolicyTiered }

func (p Tiered) Amount(minutes int64) float64 {
	if minutes < p.FreeMinutes {
		return 0
	}
	return round2(p.FlatFee)
}

type Config struct {
	Policy        string
	Base          float64
	RatePerMinute float64
	FreeMinutes   int64
	FlatFee       float64
}

func NewPolicy(cfg Config) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Policy)) {
	case PolicyLinear, "":
		if cfg.Base < 0 || cfg.RatePerMinute < 0 {
			return nil, fmt.Errorf("linear fare: base and rate must not be negative")
		}
		return Linear{Base: cfg.Base, RatePerMinute: cfg.RatePerMinute}, nil
	case PolicyTiered:
		if cfg.FreeMinutes < 0 || cfg.FlatFee < 0 {
			return nil, fmt.Errorf("tiered fare: free minutes and flat fee must not be negative")
		}
		return Tiered{FreeMinutes: cfg.FreeMinutes, FlatFee: cfg.FlatFee}, nil
	default:
		return nil, fmt.Errorf("unknown fare policy %q", cfg.Policy)
	}
}

// DurationMinutes returns whole elapsed minutes, rounded down.
func DurationMinutes(entry, exit time.Time) (int64, error) {
	d := exit.Sub(entry)
	if d < 0 {
		return 0, fmt.Errorf("%w: exit %s before entry %s", parking.ErrInvalidDuration,
			exit.Format(time.RFC3339), entry.Format(time.RFC3339))
	}
	return int64(d / time.Minute), nil
}

type Calculator struct {
	policy Policy
}

func NewCalculator(policy Policy) *Calculator {
	return &Calculator{policy: policy}
}

func (c *Calculator) Policy() Policy { return c.policy }

func (c *Calculator) Calculate(entry, exit time.Time) (int64, float64, error) {
	minutes, err := DurationMinutes(entry, exit)
	if err != nil {
		return 0, 0, err
	}
	return minutes, c.policy.Amount(minutes), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
