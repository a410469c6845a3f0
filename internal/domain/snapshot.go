package domain

import (
	"time"
)

// RiskLevel buckets an overall score for presentation and alerting.
type RiskLevel string

const (
	RiskExcellent RiskLevel = "EXCELLENT" // score >= 90
	RiskGood      RiskLevel = "GOOD"      // score >= 75
	RiskCaution   RiskLevel = "CAUTION"   // score >= 60
	RiskCritical  RiskLevel = "CRITICAL"  // below 60
)

// CategoryScore is one category's contribution to a snapshot.
type CategoryScore struct {
	Score         int `json:"score"`          // 0-100
	Active        int `json:"active"`         // non-dismissed findings
	Open          int `json:"open"`           // subset still open at the source
	RecentPermits int `json:"recent_permits"` // permit-family bonus inputs
	ValidCerts    int `json:"valid_certs"`    // certification-family bonus inputs
}

// ScoreSnapshot domain model (maps to the score_snapshots table).
// A derived cache of the current score, replaced whole on every recompute.
// It can always be rebuilt from source_records; it is never the source of truth.
type ScoreSnapshot struct {
	PropertyID   string                     `db:"property_id"` // UUID, PRIMARY KEY
	OverallScore int                        `db:"overall_score"`
	RiskLevel    RiskLevel                  `db:"risk_level"`
	Categories   map[Category]CategoryScore `db:"categories"` // JSONB
	ComputedAt   time.Time                  `db:"computed_at"`
}

// ToJSON converts to the HTTP response shape.
func (s *ScoreSnapshot) ToJSON() map[string]any {
	cats := make(map[string]CategoryScore, len(s.Categories))
	for c, cs := range s.Categories {
		cats[string(c)] = cs
	}
	return map[string]any{
		"property_id":   s.PropertyID,
		"overall_score": s.OverallScore,
		"risk_level":    string(s.RiskLevel),
		"categories":    cats,
		"computed_at":   s.ComputedAt,
	}
}
