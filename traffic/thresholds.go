package traffic

import (
	"context"
	"errors"
	"fmt"
)

// ThresholdsKey is the config table key holding the bucket list.
const ThresholdsKey = "thresholds"

var ErrInvalidThresholds = errors.New("invalid thresholds")

// Threshold holds the sensitivity parameters for one distance bucket.
type Threshold struct {
	MinKm       float64 `json:"min_km"`
	MaxKm       float64 `json:"max_km"`
	FactorTotal float64 `json:"factor_total"`
	FactorStep  float64 `json:"factor_step"`
	DelayTotal  float64 `json:"delay_total"`
	DelayStep   float64 `json:"delay_step"`
}

// fallbackThreshold applies when no buckets are configured at all.
var fallbackThreshold = Threshold{FactorTotal: 2.0, FactorStep: 3.0, DelayTotal: 15, DelayStep: 5}

func DefaultThresholds() []Threshold {
	return []Threshold{
		{MinKm: 0, MaxKm: 2, FactorTotal: 3, FactorStep: 1, DelayTotal: 5, DelayStep: 1},
		{MinKm: 2, MaxKm: 5, FactorTotal: 2.5, FactorStep: 2, DelayTotal: 10, DelayStep: 2},
		{MinKm: 5, MaxKm: 20, FactorTotal: 2, FactorStep: 3, DelayTotal: 15, DelayStep: 5},
		{MinKm: 20, MaxKm: 50, FactorTotal: 1.5, FactorStep: 4, DelayTotal: 30, DelayStep: 10},
	}
}

// Lookup returns the bucket for distanceKm. Buckets are [min, max) except the
// last one, which also includes its upper bound. Distances past every bucket
// use the last bucket.
func Lookup(thresholds []Threshold, distanceKm float64) Threshold {
	if len(thresholds) == 0 {
		return fallbackThreshold
	}
	last := len(thresholds) - 1
	for i, t := range thresholds {
		if distanceKm < t.MinKm {
			continue
		}
		if distanceKm < t.MaxKm || (i == last && distanceKm <= t.MaxKm) {
			return t
		}
	}
	return thresholds[last]
}

func ValidateThresholds(thresholds []Threshold) error {
	if len(thresholds) == 0 {
		return fmt.Errorf("%w: at least one bucket is required", ErrInvalidThresholds)
	}
	for i, t := range thresholds {
		switch {
		case t.MinKm < 0 || t.MaxKm <= t.MinKm:
			return fmt.Errorf("%w: bucket %d has range %g-%g km", ErrInvalidThresholds, i, t.MinKm, t.MaxKm)
		case t.FactorTotal < 1 || t.FactorStep < 1:
			return fmt.Errorf("%w: bucket %d factors must be >= 1", ErrInvalidThresholds, i)
		case t.DelayTotal < 0 || t.DelayStep < 0:
			return fmt.Errorf("%w: bucket %d delays must be >= 0", ErrInvalidThresholds, i)
		}
		if i > 0 && t.MinKm != thresholds[i-1].MaxKm {
			return fmt.Errorf("%w: bucket %d starts at %g km, previous ends at %g km",
				ErrInvalidThresholds, i, t.MinKm, thresholds[i-1].MaxKm)
		}
	}
	return nil
}

// ConfigStore is the key -> JSON value table thresholds are kept in.
type ConfigStore interface {
	GetConfig(ctx context.Context, name string, dest any) (bool, error)
	SetConfig(ctx context.Context, name string, value any) error
}

type ThresholdRepository struct {
	store ConfigStore
}

func NewThresholdRepository(store ConfigStore) *ThresholdRepository {
	return &ThresholdRepository{store: store}
}

// Load returns the configured buckets, seeding the defaults on first access.
func (r *ThresholdRepository) Load(ctx context.Context) ([]Threshold, error) {
	var thresholds []Threshold
	found, err := r.store.GetConfig(ctx, ThresholdsKey, &thresholds)
	if err != nil {
		return nil, fmt.Errorf("load thresholds: %w", err)
	}
	if found && len(thresholds) > 0 {
		return thresholds, nil
	}
	defaults := DefaultThresholds()
	if err := r.store.SetConfig(ctx, ThresholdsKey, defaults); err != nil {
		return nil, fmt.Errorf("seed default thresholds: %w", err)
	}
	return defaults, nil
}

// Save replaces the whole bucket list.
func (r *ThresholdRepository) Save(ctx context.Context, thresholds []Threshold) error {
	if err := ValidateThresholds(thresholds); err != nil {
		return err
	}
	if err := r.store.SetConfig(ctx, ThresholdsKey, thresholds); err != nil {
		return fmt.Errorf("save thresholds: %w", err)
	}
	return nil
}

func (r *ThresholdRepository) Reset(ctx context.Context) ([]Threshold, error) {
	defaults := DefaultThresholds()
	if err := r.store.SetConfig(ctx, ThresholdsKey, defaults); err != nil {
		return nil, fmt.Errorf("reset thresholds: %w", err)
	}
	return defaults, nil
}
