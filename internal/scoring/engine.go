// Package scoring computes compliance scores from stored source records.
// Everything here is pure: inputs and the clock instant come in as arguments,
// a snapshot comes out, and identical inputs always produce identical scores.
package scoring

import (
	"math"
	"time"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
)

// CategoryCounts aggregates one category's scoring inputs.
type CategoryCounts struct {
	Active        int // non-dismissed violation/equipment findings
	Open          int // subset not closed at the source (unknown counts as open)
	RecentPermits int // non-dismissed permits inside the permit window
	ValidCerts    int // non-dismissed certifications still valid
}

// Input is the pre-aggregated material for one property's score.
type Input struct {
	PropertyID string
	Counts     map[domain.Category]CategoryCounts
}

// BuildInput derives counts from records at instant now. Dismissed records
// contribute nothing anywhere; records in categories the config does not
// weight are ignored.
func BuildInput(propertyID string, records []domain.SourceRecord, now time.Time, cfg *Config) Input {
	counts := make(map[domain.Category]CategoryCounts, len(cfg.Weights))
	for cat := range cfg.Weights {
		counts[cat] = CategoryCounts{}
	}

	permitWindow := time.Duration(cfg.PermitWindowDays) * 24 * time.Hour

	for i := range records {
		r := &records[i]
		if !r.Active {
			continue
		}
		c, ok := counts[r.Category]
		if !ok {
			continue
		}
		switch r.Family {
		case domain.FamilyViolation, domain.FamilyEquipment:
			c.Active++
			if r.IsOpen() {
				c.Open++
			}
		case domain.FamilyPermit:
			if r.IssuedAt != nil && now.Sub(*r.IssuedAt) <= permitWindow && !r.IssuedAt.After(now) {
				c.RecentPermits++
			}
		case domain.FamilyCertification:
			if r.Status == domain.StatusOpen {
				c.ValidCerts++
			}
		}
		counts[r.Category] = c
	}

	return Input{PropertyID: propertyID, Counts: counts}
}

// Compute turns an input into a snapshot under the given policy. now becomes
// the snapshot's ComputedAt; Compute itself never reads the clock.
func Compute(cfg *Config, input Input, now time.Time) *domain.ScoreSnapshot {
	categories := make(map[domain.Category]domain.CategoryScore, len(cfg.Weights))
	overall := 0.0

	for cat := range cfg.Weights {
		counts := input.Counts[cat]
		score := categoryScore(cfg, cat, counts)
		categories[cat] = domain.CategoryScore{
			Score:         score,
			Active:        counts.Active,
			Open:          counts.Open,
			RecentPermits: counts.RecentPermits,
			ValidCerts:    counts.ValidCerts,
		}
		overall += cfg.Weights[cat] * float64(score)
	}

	rounded := clamp(int(math.Round(overall)))

	return &domain.ScoreSnapshot{
		PropertyID:   input.PropertyID,
		OverallScore: rounded,
		RiskLevel:    riskFor(rounded, cfg.Risk),
		Categories:   categories,
		ComputedAt:   now,
	}
}

func categoryScore(cfg *Config, cat domain.Category, counts CategoryCounts) int {
	switch cfg.VariantFor(cat) {
	case VariantLinear:
		return linearScore(cfg.Linear, counts)
	default:
		return bucketedScore(cfg.Buckets, cfg.FloorScore, counts.Open)
	}
}

func bucketedScore(buckets []Bucket, floor int, open int) int {
	for _, b := range buckets {
		if open <= b.MaxOpen {
			return b.Score
		}
	}
	return floor
}

func linearScore(p LinearParams, counts CategoryCounts) int {
	score := p.BasePoints
	score -= p.FindingPenalty * counts.Active
	score -= p.OpenPenalty * counts.Open
	score += capped(p.PermitBonus*counts.RecentPermits, p.PermitBonusMax)
	score += capped(p.CertBonus*counts.ValidCerts, p.CertBonusMax)
	return clamp(score)
}

func capped(v, max int) int {
	if v > max {
		return max
	}
	return v
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func riskFor(score int, t RiskThresholds) domain.RiskLevel {
	switch {
	case score >= t.Excellent:
		return domain.RiskExcellent
	case score >= t.Good:
		return domain.RiskGood
	case score >= t.Caution:
		return domain.RiskCaution
	default:
		return domain.RiskCritical
	}
}
