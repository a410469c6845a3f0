// Package identity decides which query a dataset adapter should run for a
// property and which of the returned records actually belong to it. Municipal
// datasets disagree on identifiers, so matches range from exact building ids
// down to address strings, and weak matches need containment before they can
// be trusted.
package identity

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
)

// Strategy is a way of querying a dataset for one property, from the exact
// building id down to a plain address match.
type Strategy string

const (
	StrategyBuildingID Strategy = "building_id"
	StrategyParcel     Strategy = "parcel"
	StrategyBlockLot   Strategy = "block_lot"
	StrategyAddress    Strategy = "address"
)

// precedence orders strategies most reliable first.
var precedence = []Strategy{StrategyBuildingID, StrategyParcel, StrategyBlockLot, StrategyAddress}

// Query is a planned dataset lookup. Only the fields the strategy needs are
// populated; adapters translate them into source-specific parameters.
type Query struct {
	Strategy      Strategy
	BuildingID    string
	ParcelID      string
	AccountNumber string
	Block         string
	Lot           string
	Address       string
}

// Candidate is one fetched record as the resolver sees it: its position in
// the adapter's result slice and the strong identifier embedded in the source
// row, if any.
type Candidate struct {
	Index    int
	StrongID string
}

// Verdict is the outcome of filtering one batch.
type Verdict struct {
	// Accepted holds indexes into the candidate slice, in input order.
	Accepted []int
	// BackfillBuildingID is set when an accepted weak batch unanimously
	// carries a strong id the property is missing.
	BackfillBuildingID string
}

// Resolver plans queries and applies the batch contamination policy.
type Resolver struct {
	threshold int
	logger    *zap.Logger
}

// NewResolver creates a resolver. threshold is the largest weak batch
// accepted without strong-id confirmation.
func NewResolver(threshold int, logger *zap.Logger) *Resolver {
	if threshold <= 0 {
		threshold = 10
	}
	return &Resolver{threshold: threshold, logger: logger}
}

// Threshold returns the configured contamination threshold.
func (r *Resolver) Threshold() int { return r.threshold }

// Plan picks the strongest strategy that both the adapter supports and the
// property's known identifiers can satisfy. A nil query means the dataset
// cannot be queried for this property at all.
func (r *Resolver) Plan(p *domain.Property, supported []Strategy) *Query {
	for _, s := range precedence {
		if !contains(supported, s) {
			continue
		}
		if q := buildQuery(p, s); q != nil {
			return q
		}
	}
	return nil
}

func buildQuery(p *domain.Property, s Strategy) *Query {
	switch s {
	case StrategyBuildingID:
		if p.BuildingID.Valid {
			return &Query{Strategy: s, BuildingID: p.BuildingID.String}
		}
	case StrategyParcel:
		if p.ParcelID.Valid {
			return &Query{Strategy: s, ParcelID: p.ParcelID.String}
		}
		if p.AccountNumber.Valid {
			return &Query{Strategy: s, AccountNumber: p.AccountNumber.String}
		}
	case StrategyBlockLot:
		if p.Block.Valid && p.Lot.Valid {
			return &Query{Strategy: s, Block: p.Block.String, Lot: p.Lot.String}
		}
	case StrategyAddress:
		if p.Address != "" {
			return &Query{Strategy: s, Address: p.Address}
		}
	}
	return nil
}

// Filter validates one fetched batch against the property.
//
// Strong-id queries are trusted as-is. For weak queries: candidates whose
// embedded strong id matches the property are accepted outright and
// mismatches dropped; when no strong-id validation is possible the whole
// batch is accepted only while it stays at or under the contamination
// threshold, otherwise every candidate is rejected and the caller gets
// domain.ErrIdentityAmbiguous.
func (r *Resolver) Filter(p *domain.Property, q *Query, cands []Candidate) (*Verdict, error) {
	if q.Strategy == StrategyBuildingID {
		return &Verdict{Accepted: allIndexes(cands)}, nil
	}

	target := ""
	if p.BuildingID.Valid {
		target = p.BuildingID.String
	}

	anyStrong := false
	for _, c := range cands {
		if c.StrongID != "" {
			anyStrong = true
			break
		}
	}

	if target != "" && anyStrong {
		v := &Verdict{}
		for _, c := range cands {
			if c.StrongID == target {
				v.Accepted = append(v.Accepted, c.Index)
			}
		}
		if dropped := len(cands) - len(v.Accepted); dropped > 0 {
			r.logger.Warn("dropped weak-match records failing strong id validation",
				zap.String("property_id", p.PropertyID),
				zap.String("strategy", string(q.Strategy)),
				zap.Int("dropped", dropped),
			)
		}
		return v, nil
	}

	// No strong-id validation possible: contain the blast radius of a wrong
	// weak match by rejecting oversized batches whole.
	if len(cands) > r.threshold {
		r.logger.Warn("rejected weak-match batch over contamination threshold",
			zap.String("property_id", p.PropertyID),
			zap.String("strategy", string(q.Strategy)),
			zap.Int("candidates", len(cands)),
			zap.Int("threshold", r.threshold),
		)
		return &Verdict{}, fmt.Errorf("%w: %d candidates from %s query exceed threshold %d",
			domain.ErrIdentityAmbiguous, len(cands), q.Strategy, r.threshold)
	}

	v := &Verdict{Accepted: allIndexes(cands)}
	if target == "" {
		v.BackfillBuildingID = unanimousStrongID(cands)
	}
	return v, nil
}

// BackfillIdentifier applies a back-filled strong id to the in-memory
// property, keeping it consistent with the stored row. An existing id is
// never overwritten.
func BackfillIdentifier(p *domain.Property, buildingID string) {
	if buildingID == "" || p.BuildingID.Valid {
		return
	}
	p.BuildingID = sql.NullString{String: buildingID, Valid: true}
}

func unanimousStrongID(cands []Candidate) string {
	if len(cands) == 0 {
		return ""
	}
	id := cands[0].StrongID
	if id == "" {
		return ""
	}
	for _, c := range cands[1:] {
		if c.StrongID != id {
			return ""
		}
	}
	return id
}

func allIndexes(cands []Candidate) []int {
	if len(cands) == 0 {
		return nil
	}
	idx := make([]int, 0, len(cands))
	for _, c := range cands {
		idx = append(idx, c.Index)
	}
	return idx
}

func contains(ss []Strategy, s Strategy) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
