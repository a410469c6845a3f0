package scoring

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
)

func TestDefaultConfigsValidate(t *testing.T) {
	for _, m := range []domain.Municipality{domain.MunicipalityNYC, domain.MunicipalityPhiladelphia} {
		cfg, err := DefaultConfig(m)
		require.NoError(t, err)
		assert.NoError(t, cfg.Validate(), "municipality %s", m)
	}

	_, err := DefaultConfig(domain.Municipality("chicago"))
	assert.Error(t, err)
}

func TestValidateRejectsBadWeights(t *testing.T) {
	cfg := DefaultNYC()
	cfg.Weights[domain.CategoryHousing] = 0.5
	assert.ErrorContains(t, cfg.Validate(), "sum")

	cfg = DefaultNYC()
	cfg.Weights[domain.Category("plumbing")] = 0.0
	assert.ErrorContains(t, cfg.Validate(), "unknown category")

	cfg = DefaultNYC()
	cfg.Weights = nil
	assert.ErrorContains(t, cfg.Validate(), "no category weights")
}

func TestValidateRejectsBadBuckets(t *testing.T) {
	cfg := DefaultNYC()
	cfg.Buckets = []Bucket{{MaxOpen: 5, Score: 85}, {MaxOpen: 5, Score: 70}}
	assert.ErrorContains(t, cfg.Validate(), "ascending")

	cfg = DefaultNYC()
	cfg.Buckets = nil
	assert.ErrorContains(t, cfg.Validate(), "buckets")

	cfg = DefaultNYC()
	cfg.Buckets[0].Score = 130
	assert.ErrorContains(t, cfg.Validate(), "out of range")
}

func TestValidateRejectsBadRiskOrder(t *testing.T) {
	cfg := DefaultNYC()
	cfg.Risk = RiskThresholds{Excellent: 60, Good: 75, Caution: 90}
	assert.ErrorContains(t, cfg.Validate(), "descending")
}

func TestVariantForFallsBackToDefault(t *testing.T) {
	cfg := DefaultNYC()
	cfg.Variants = map[domain.Category]Variant{domain.CategoryElectrical: VariantLinear}

	assert.Equal(t, VariantLinear, cfg.VariantFor(domain.CategoryElectrical))
	assert.Equal(t, VariantBucketed, cfg.VariantFor(domain.CategoryHousing))
}

// Configs travel through the scoring_configs table as JSONB, so the policy
// must survive a round trip intact.
func TestConfigJSONRoundTrip(t *testing.T) {
	cfg := DefaultPhiladelphia()
	cfg.Variants = map[domain.Category]Variant{domain.CategoryEquipment: VariantBucketed}

	raw, err := json.Marshal(cfg)
	require.NoError(t, err)

	var decoded Config
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.NoError(t, decoded.Validate())
	assert.Equal(t, cfg.Weights, decoded.Weights)
	assert.Equal(t, cfg.Linear, decoded.Linear)
	assert.Equal(t, VariantBucketed, decoded.VariantFor(domain.CategoryEquipment))
	assert.Equal(t, VariantLinear, decoded.VariantFor(domain.CategoryHousing))
}
