package scoring

import (
	"fmt"
	"math"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
)

// Variant selects how a category turns finding counts into a 0-100 score.
type Variant string

const (
	// VariantBucketed maps the open-finding count into fixed score bands.
	VariantBucketed Variant = "bucketed"
	// VariantLinear deducts per finding and credits permits/certifications.
	VariantLinear Variant = "linear"
)

// Bucket is one band of the bucketed variant: open counts up to MaxOpen
// (inclusive) score Score. Buckets are ordered by MaxOpen ascending; counts
// past the last bucket get the config floor score.
type Bucket struct {
	MaxOpen int `json:"max_open"`
	Score   int `json:"score"`
}

// LinearParams drives the linear-deduction variant. Every active finding
// costs FindingPenalty; findings still open at the source cost OpenPenalty on
// top. Recent permits and valid certifications earn capped bonuses.
type LinearParams struct {
	BasePoints     int `json:"base_points"`
	FindingPenalty int `json:"finding_penalty"`
	OpenPenalty    int `json:"open_penalty"`
	PermitBonus    int `json:"permit_bonus"`
	PermitBonusMax int `json:"permit_bonus_max"`
	CertBonus      int `json:"cert_bonus"`
	CertBonusMax   int `json:"cert_bonus_max"`
}

// RiskThresholds maps an overall score to a risk level. A score at or above
// Excellent is EXCELLENT, at or above Good is GOOD, at or above Caution is
// CAUTION, anything lower is CRITICAL.
type RiskThresholds struct {
	Excellent int `json:"excellent"`
	Good      int `json:"good"`
	Caution   int `json:"caution"`
}

// Config is the complete scoring policy for one municipality. It is plain
// data: JSON-serializable so operators can override it per municipality in
// the scoring_configs table without a deploy.
type Config struct {
	Municipality domain.Municipality `json:"municipality"`

	// Weights must cover every scored category and sum to 1.0.
	Weights map[domain.Category]float64 `json:"weights"`

	// Variants overrides the variant per category; absent categories use
	// DefaultVariant.
	DefaultVariant Variant                     `json:"default_variant"`
	Variants       map[domain.Category]Variant `json:"variants,omitempty"`

	Buckets    []Bucket `json:"buckets"`
	FloorScore int      `json:"floor_score"` // past the last bucket

	Linear LinearParams `json:"linear"`

	// PermitWindowDays bounds how old a permit may be and still earn a bonus.
	PermitWindowDays int `json:"permit_window_days"`

	Risk RiskThresholds `json:"risk"`
}

// VariantFor returns the effective variant for a category.
func (c *Config) VariantFor(cat domain.Category) Variant {
	if v, ok := c.Variants[cat]; ok {
		return v
	}
	return c.DefaultVariant
}

// WeightFor returns the category weight, 0 for unscored categories.
func (c *Config) WeightFor(cat domain.Category) float64 {
	return c.Weights[cat]
}

// Validate rejects configs that would produce scores outside [0,100] or a
// weighted sum that silently over/under-counts.
func (c *Config) Validate() error {
	if !c.Municipality.Valid() {
		return fmt.Errorf("unknown municipality %q", c.Municipality)
	}
	if len(c.Weights) == 0 {
		return fmt.Errorf("no category weights configured")
	}
	sum := 0.0
	for cat, w := range c.Weights {
		if !cat.Valid() {
			return fmt.Errorf("weight for unknown category %q", cat)
		}
		if w < 0 {
			return fmt.Errorf("negative weight %v for category %q", w, cat)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("category weights sum to %v, want 1.0", sum)
	}
	switch c.DefaultVariant {
	case VariantBucketed, VariantLinear:
	default:
		return fmt.Errorf("unknown default variant %q", c.DefaultVariant)
	}
	for cat, v := range c.Variants {
		if v != VariantBucketed && v != VariantLinear {
			return fmt.Errorf("unknown variant %q for category %q", v, cat)
		}
	}
	if len(c.Buckets) == 0 {
		return fmt.Errorf("no score buckets configured")
	}
	prev := -1
	for _, b := range c.Buckets {
		if b.MaxOpen <= prev {
			return fmt.Errorf("bucket bounds must be strictly ascending, got %d after %d", b.MaxOpen, prev)
		}
		if b.Score < 0 || b.Score > 100 {
			return fmt.Errorf("bucket score %d out of range", b.Score)
		}
		prev = b.MaxOpen
	}
	if c.FloorScore < 0 || c.FloorScore > 100 {
		return fmt.Errorf("floor score %d out of range", c.FloorScore)
	}
	if c.Linear.BasePoints < 0 || c.Linear.BasePoints > 100 {
		return fmt.Errorf("linear base points %d out of range", c.Linear.BasePoints)
	}
	if c.Risk.Excellent <= c.Risk.Good || c.Risk.Good <= c.Risk.Caution {
		return fmt.Errorf("risk thresholds must be strictly descending")
	}
	return nil
}

// defaultWeights is shared by both municipalities; overrides live in the
// scoring_configs table.
func defaultWeights() map[domain.Category]float64 {
	return map[domain.Category]float64{
		domain.CategoryHousing:      0.3,
		domain.CategoryConstruction: 0.3,
		domain.CategoryEquipment:    0.2,
		domain.CategoryElectrical:   0.2,
	}
}

func defaultBuckets() []Bucket {
	return []Bucket{
		{MaxOpen: 0, Score: 100},
		{MaxOpen: 5, Score: 85},
		{MaxOpen: 15, Score: 70},
		{MaxOpen: 30, Score: 50},
	}
}

func defaultRisk() RiskThresholds {
	return RiskThresholds{Excellent: 90, Good: 75, Caution: 60}
}

// DefaultNYC scores every category on open-count buckets.
func DefaultNYC() *Config {
	return &Config{
		Municipality:   domain.MunicipalityNYC,
		Weights:        defaultWeights(),
		DefaultVariant: VariantBucketed,
		Buckets:        defaultBuckets(),
		FloorScore:     25,
		Linear: LinearParams{
			BasePoints:     100,
			FindingPenalty: 10,
			OpenPenalty:    5,
			PermitBonus:    1,
			PermitBonusMax: 5,
			CertBonus:      2,
			CertBonusMax:   10,
		},
		PermitWindowDays: 365,
		Risk:             defaultRisk(),
	}
}

// DefaultPhiladelphia scores every category with linear deductions: resolved
// findings keep costing their base penalty, open ones cost extra, and recent
// permits and valid certifications claw back a few points.
func DefaultPhiladelphia() *Config {
	cfg := DefaultNYC()
	cfg.Municipality = domain.MunicipalityPhiladelphia
	cfg.DefaultVariant = VariantLinear
	return cfg
}

// DefaultConfig returns the compiled-in policy for a municipality.
func DefaultConfig(m domain.Municipality) (*Config, error) {
	switch m {
	case domain.MunicipalityNYC:
		return DefaultNYC(), nil
	case domain.MunicipalityPhiladelphia:
		return DefaultPhiladelphia(), nil
	default:
		return nil, fmt.Errorf("no scoring config for municipality %q", m)
	}
}
