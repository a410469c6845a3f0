package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/propplyai/propply-ai-sub002/internal/config"
	"github.com/propplyai/propply-ai-sub002/internal/domain"
	"github.com/propplyai/propply-ai-sub002/internal/identity"
)

const (
	DatasetLIViolations     = "li_violations"
	DatasetLIPermits        = "li_permits"
	DatasetLICertifications = "li_certifications"
)

// cartoSpec declares one Philadelphia L&I dataset.
type cartoSpec struct {
	name       string
	table      string
	family     domain.SourceFamily
	strategies []identity.Strategy
	whereFor   func(q *identity.Query) string
	mapRow     func(row sourceRow) *NormalizedRecord
}

// CartoAdapter runs one Philadelphia dataset through the Carto SQL API.
// Philadelphia rows carry no building id, so weak-match batches rely entirely
// on the resolver's contamination policy.
type CartoAdapter struct {
	client   *CartoClient
	spec     cartoSpec
	pageSize int
	pageCap  int
}

func newCartoAdapter(client *CartoClient, cfg config.CartoConfig, spec cartoSpec) *CartoAdapter {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	pageCap := cfg.PageCap
	if pageCap <= 0 {
		pageCap = 10
	}
	return &CartoAdapter{client: client, spec: spec, pageSize: pageSize, pageCap: pageCap}
}

func (a *CartoAdapter) Dataset() string { return a.spec.name }

func (a *CartoAdapter) Family() domain.SourceFamily { return a.spec.family }

func (a *CartoAdapter) Municipality() domain.Municipality { return domain.MunicipalityPhiladelphia }

func (a *CartoAdapter) Strategies() []identity.Strategy { return a.spec.strategies }

func (a *CartoAdapter) Fetch(ctx context.Context, q *identity.Query, cur Cursor) (*FetchResult, error) {
	where := a.spec.whereFor(q)
	if where == "" {
		return nil, fmt.Errorf("dataset %s cannot serve %s queries", a.spec.name, q.Strategy)
	}

	offset := cur.Offset
	if offset < 0 {
		offset = 0
	}
	result := &FetchResult{}

	for page := 0; page < a.pageCap; page++ {
		sqlText := fmt.Sprintf("SELECT * FROM %s WHERE %s ORDER BY cartodb_id LIMIT %d OFFSET %d",
			a.spec.table, where, a.pageSize, offset)
		rows, err := a.client.Query(ctx, a.spec.name, sqlText)
		if err != nil {
			result.NextOffset = offset
			return result, err
		}
		for _, row := range rows {
			if rec := a.spec.mapRow(row); rec != nil {
				result.Records = append(result.Records, *rec)
			}
		}
		offset += len(rows)
		if len(rows) < a.pageSize {
			result.Exhausted = true
			return result, nil
		}
	}

	result.NextOffset = offset
	return result, nil
}

// NewPhiladelphiaAdapters builds the full Philadelphia dataset set.
func NewPhiladelphiaAdapters(client *CartoClient, cfg config.CartoConfig) []Adapter {
	return []Adapter{
		NewLIViolationsAdapter(client, cfg),
		NewLIPermitsAdapter(client, cfg),
		NewLICertificationsAdapter(client, cfg),
	}
}

func phillyWhere(q *identity.Query) string {
	switch q.Strategy {
	case identity.StrategyParcel:
		return "opa_account_num = " + soqlQuote(q.AccountNumber)
	case identity.StrategyAddress:
		return "address ILIKE " + soqlQuote(q.Address)
	}
	return ""
}

// liCategory buckets an L&I code title into a scoring category.
func liCategory(title string) domain.Category {
	t := strings.ToUpper(title)
	switch {
	case strings.Contains(t, "ELECTRIC"):
		return domain.CategoryElectrical
	case strings.Contains(t, "FIRE"), strings.Contains(t, "SPRINKLER"), strings.Contains(t, "ALARM"),
		strings.Contains(t, "STANDPIPE"), strings.Contains(t, "MECHANICAL"):
		return domain.CategoryEquipment
	case strings.Contains(t, "CONSTRUCT"), strings.Contains(t, "STRUCT"), strings.Contains(t, "ZONING"),
		strings.Contains(t, "PERMIT"), strings.Contains(t, "DEMOLI"), strings.Contains(t, "FACADE"):
		return domain.CategoryConstruction
	}
	return domain.CategoryHousing
}

// --- L&I code violations ---

var liViolationStatus = map[string]domain.RecordStatus{
	"OPEN":     domain.StatusOpen,
	"CLOSED":   domain.StatusClosed,
	"COMPLIED": domain.StatusClosed,
	"RESOLVED": domain.StatusClosed,
}

// NewLIViolationsAdapter maps L&I code violations. The violation code title
// decides the scoring category.
func NewLIViolationsAdapter(client *CartoClient, cfg config.CartoConfig) *CartoAdapter {
	return newCartoAdapter(client, cfg, cartoSpec{
		name:       DatasetLIViolations,
		table:      "violations",
		family:     domain.FamilyViolation,
		strategies: []identity.Strategy{identity.StrategyParcel, identity.StrategyAddress},
		whereFor:   phillyWhere,
		mapRow: func(row sourceRow) *NormalizedRecord {
			externalID := row.str("violationnumber")
			if externalID == "" {
				return nil
			}
			return &NormalizedRecord{
				Dataset:     DatasetLIViolations,
				Family:      domain.FamilyViolation,
				Category:    liCategory(row.str("violationcodetitle")),
				ExternalID:  externalID,
				Class:       row.strPtr("violationcode"),
				Severity:    row.strPtr("caseprioritydesc"),
				Status:      statusFrom(liViolationStatus, row.str("violationstatus")),
				IssuedAt:    row.timePtr("violationdate"),
				InspectedAt: row.timePtr("caseresolutiondate"),
				Description: row.strPtr("violationcodetitle"),
				Raw:         row.raw(),
			}
		},
	})
}

// --- L&I permits ---

var liPermitStatus = map[string]domain.RecordStatus{
	"ACTIVE":    domain.StatusOpen,
	"ISSUED":    domain.StatusClosed,
	"COMPLETED": domain.StatusClosed,
	"EXPIRED":   domain.StatusClosed,
}

// NewLIPermitsAdapter maps L&I building permits. Recent permits feed the
// linear variant's bonus.
func NewLIPermitsAdapter(client *CartoClient, cfg config.CartoConfig) *CartoAdapter {
	return newCartoAdapter(client, cfg, cartoSpec{
		name:       DatasetLIPermits,
		table:      "permits",
		family:     domain.FamilyPermit,
		strategies: []identity.Strategy{identity.StrategyParcel, identity.StrategyAddress},
		whereFor:   phillyWhere,
		mapRow: func(row sourceRow) *NormalizedRecord {
			externalID := row.str("permitnumber")
			if externalID == "" {
				return nil
			}
			return &NormalizedRecord{
				Dataset:     DatasetLIPermits,
				Family:      domain.FamilyPermit,
				Category:    liCategory(row.str("permittype")),
				ExternalID:  externalID,
				Class:       row.strPtr("permittype"),
				Status:      statusFrom(liPermitStatus, row.str("status")),
				IssuedAt:    row.timePtr("permitissuedate"),
				Description: row.strPtr("permitdescription"),
				Raw:         row.raw(),
			}
		},
	})
}

// --- L&I building certifications ---

// A current certification is an open (valid) record and earns the cert
// bonus; an expired one is closed and earns nothing.
var liCertificationStatus = map[string]domain.RecordStatus{
	"ACTIVE":   domain.StatusOpen,
	"CURRENT":  domain.StatusOpen,
	"EXPIRED":  domain.StatusClosed,
	"LAPSED":   domain.StatusClosed,
	"INACTIVE": domain.StatusClosed,
}

// NewLICertificationsAdapter maps L&I building certifications (fire alarm,
// sprinkler, facade and similar periodic certs).
func NewLICertificationsAdapter(client *CartoClient, cfg config.CartoConfig) *CartoAdapter {
	return newCartoAdapter(client, cfg, cartoSpec{
		name:       DatasetLICertifications,
		table:      "building_certs",
		family:     domain.FamilyCertification,
		strategies: []identity.Strategy{identity.StrategyParcel, identity.StrategyAddress},
		whereFor:   phillyWhere,
		mapRow: func(row sourceRow) *NormalizedRecord {
			externalID := row.str("buildingcertid")
			if externalID == "" {
				return nil
			}
			return &NormalizedRecord{
				Dataset:     DatasetLICertifications,
				Family:      domain.FamilyCertification,
				Category:    liCategory(row.str("certificationtype")),
				ExternalID:  externalID,
				Class:       row.strPtr("certificationtype"),
				Status:      statusFrom(liCertificationStatus, row.str("certificationstatus")),
				InspectedAt: row.timePtr("inspectiondate"),
				IssuedAt:    row.timePtr("certdate"),
				Description: row.strPtr("certificationtype"),
				Raw:         row.raw(),
			}
		},
	})
}
