package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/propplyai/propply-ai-sub002/internal/config"
	"github.com/propplyai/propply-ai-sub002/internal/domain"
	"github.com/propplyai/propply-ai-sub002/internal/identity"
)

// Internal dataset names. These are stable keys in source_records and
// sync_cursors; the Socrata resource ids behind them are adapter detail.
const (
	DatasetHPDViolations   = "hpd_violations"
	DatasetDOBViolations   = "dob_violations"
	DatasetECBViolations   = "ecb_violations"
	DatasetElevatorDevices = "elevator_devices"
	DatasetDOBPermits      = "dob_permits"
)

// socrataSpec declares one NYC dataset: where it lives, which identity
// strategies it answers, and how its rows translate.
type socrataSpec struct {
	name       string
	resource   string
	family     domain.SourceFamily
	strategies []identity.Strategy
	whereFor   func(q *identity.Query) string
	mapRow     func(row sourceRow) *NormalizedRecord
}

// SocrataAdapter runs one NYC dataset with offset pagination.
type SocrataAdapter struct {
	client   *SocrataClient
	spec     socrataSpec
	pageSize int
	pageCap  int
}

func newSocrataAdapter(client *SocrataClient, cfg config.SocrataConfig, spec socrataSpec) *SocrataAdapter {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	pageCap := cfg.PageCap
	if pageCap <= 0 {
		pageCap = 10
	}
	return &SocrataAdapter{client: client, spec: spec, pageSize: pageSize, pageCap: pageCap}
}

func (a *SocrataAdapter) Dataset() string { return a.spec.name }

func (a *SocrataAdapter) Family() domain.SourceFamily { return a.spec.family }

func (a *SocrataAdapter) Municipality() domain.Municipality { return domain.MunicipalityNYC }

func (a *SocrataAdapter) Strategies() []identity.Strategy { return a.spec.strategies }

// Fetch pages through the dataset from the cursor offset. Rows mapped before
// a mid-pagination failure are returned alongside the error.
func (a *SocrataAdapter) Fetch(ctx context.Context, q *identity.Query, cur Cursor) (*FetchResult, error) {
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
		rows, err := a.client.Fetch(ctx, a.spec.name, a.spec.resource, where, a.pageSize, offset)
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

	// page cap reached; the cursor resumes here next run
	result.NextOffset = offset
	return result, nil
}

// NewNYCAdapters builds the full NYC dataset set.
func NewNYCAdapters(client *SocrataClient, cfg config.SocrataConfig) []Adapter {
	return []Adapter{
		NewHPDViolationsAdapter(client, cfg),
		NewDOBViolationsAdapter(client, cfg),
		NewECBViolationsAdapter(client, cfg),
		NewElevatorDevicesAdapter(client, cfg),
		NewDOBPermitsAdapter(client, cfg),
	}
}

func statusFrom(table map[string]domain.RecordStatus, value string) domain.RecordStatus {
	if s, ok := table[strings.ToUpper(strings.TrimSpace(value))]; ok {
		return s
	}
	return domain.StatusUnknown
}

func binBlockLotWhere(binField string) func(q *identity.Query) string {
	return func(q *identity.Query) string {
		switch q.Strategy {
		case identity.StrategyBuildingID:
			return binField + " = " + soqlQuote(q.BuildingID)
		case identity.StrategyBlockLot:
			return "block = " + soqlQuote(q.Block) + " AND lot = " + soqlQuote(q.Lot)
		}
		return ""
	}
}

// --- HPD housing maintenance violations ---

var hpdViolationStatus = map[string]domain.RecordStatus{
	"OPEN":   domain.StatusOpen,
	"CLOSE":  domain.StatusClosed,
	"CLOSED": domain.StatusClosed,
}

// NewHPDViolationsAdapter maps HPD housing maintenance code violations.
// Class A/B/C is the hazard class and doubles as severity.
func NewHPDViolationsAdapter(client *SocrataClient, cfg config.SocrataConfig) *SocrataAdapter {
	return newSocrataAdapter(client, cfg, socrataSpec{
		name:       DatasetHPDViolations,
		resource:   "wvxf-dwi5",
		family:     domain.FamilyViolation,
		strategies: []identity.Strategy{identity.StrategyBuildingID, identity.StrategyBlockLot},
		whereFor:   binBlockLotWhere("bin"),
		mapRow: func(row sourceRow) *NormalizedRecord {
			externalID := row.str("violationid")
			if externalID == "" {
				return nil
			}
			return &NormalizedRecord{
				Dataset:     DatasetHPDViolations,
				Family:      domain.FamilyViolation,
				Category:    domain.CategoryHousing,
				ExternalID:  externalID,
				BuildingID:  row.str("bin"),
				Class:       row.strPtr("class"),
				Severity:    row.strPtr("class"),
				Status:      statusFrom(hpdViolationStatus, row.str("violationstatus")),
				IssuedAt:    row.timePtr("novissueddate"),
				InspectedAt: row.timePtr("inspectiondate"),
				Description: row.strPtr("novdescription"),
				Raw:         row.raw(),
			}
		},
	})
}

// --- DOB construction violations ---

// dobViolationStatus keys on the leading token of violation_category,
// e.g. "V*-DOB VIOLATION - ACTIVE" / "V-DOB VIOLATION - DISMISSED".
func dobViolationStatus(row sourceRow) domain.RecordStatus {
	category := strings.ToUpper(row.str("violation_category"))
	switch {
	case strings.Contains(category, "ACTIVE"):
		return domain.StatusOpen
	case strings.Contains(category, "DISMISSED"), strings.Contains(category, "RESOLVED"):
		return domain.StatusClosed
	case row.str("disposition_date") != "":
		return domain.StatusClosed
	}
	return domain.StatusUnknown
}

// NewDOBViolationsAdapter maps Department of Buildings violations.
func NewDOBViolationsAdapter(client *SocrataClient, cfg config.SocrataConfig) *SocrataAdapter {
	return newSocrataAdapter(client, cfg, socrataSpec{
		name:       DatasetDOBViolations,
		resource:   "3h2n-5cm9",
		family:     domain.FamilyViolation,
		strategies: []identity.Strategy{identity.StrategyBuildingID, identity.StrategyBlockLot},
		whereFor:   binBlockLotWhere("bin"),
		mapRow: func(row sourceRow) *NormalizedRecord {
			externalID := row.str("isn_dob_bis_viol")
			if externalID == "" {
				return nil
			}
			return &NormalizedRecord{
				Dataset:     DatasetDOBViolations,
				Family:      domain.FamilyViolation,
				Category:    domain.CategoryConstruction,
				ExternalID:  externalID,
				BuildingID:  row.str("bin"),
				Class:       row.strPtr("violation_type_code"),
				Status:      dobViolationStatus(row),
				IssuedAt:    row.timePtr("issue_date"),
				Description: row.strPtr("violation_type"),
				Raw:         row.raw(),
			}
		},
	})
}

// --- ECB (OATH) violations ---

var ecbViolationStatus = map[string]domain.RecordStatus{
	"ACTIVE":   domain.StatusOpen,
	"RESOLVE":  domain.StatusClosed,
	"RESOLVED": domain.StatusClosed,
}

func ecbCategory(row sourceRow) domain.Category {
	text := strings.ToUpper(row.str("violation_type") + " " + row.str("violation_description"))
	if strings.Contains(text, "ELECTRIC") {
		return domain.CategoryElectrical
	}
	return domain.CategoryConstruction
}

// NewECBViolationsAdapter maps ECB violations; electrical infractions land in
// the electrical category, the rest count as construction.
func NewECBViolationsAdapter(client *SocrataClient, cfg config.SocrataConfig) *SocrataAdapter {
	return newSocrataAdapter(client, cfg, socrataSpec{
		name:       DatasetECBViolations,
		resource:   "6bgk-3dad",
		family:     domain.FamilyViolation,
		strategies: []identity.Strategy{identity.StrategyBuildingID, identity.StrategyBlockLot},
		whereFor:   binBlockLotWhere("bin"),
		mapRow: func(row sourceRow) *NormalizedRecord {
			externalID := row.str("isn_dob_bis_extract")
			if externalID == "" {
				return nil
			}
			return &NormalizedRecord{
				Dataset:     DatasetECBViolations,
				Family:      domain.FamilyViolation,
				Category:    ecbCategory(row),
				ExternalID:  externalID,
				BuildingID:  row.str("bin"),
				Class:       row.strPtr("violation_type"),
				Severity:    row.strPtr("severity"),
				Status:      statusFrom(ecbViolationStatus, row.str("ecb_violation_status")),
				IssuedAt:    row.timePtr("issue_date"),
				InspectedAt: row.timePtr("hearing_date"),
				Description: row.strPtr("violation_description"),
				Raw:         row.raw(),
			}
		},
	})
}

// --- Elevator devices ---

// A healthy device is a closed record; anything out of service or defective
// is an open equipment finding.
var elevatorDeviceStatus = map[string]domain.RecordStatus{
	"ACTIVE":         domain.StatusClosed,
	"DISMANTLED":     domain.StatusClosed,
	"OUT OF SERVICE": domain.StatusOpen,
	"DEFECTIVE":      domain.StatusOpen,
	"EXPIRED":        domain.StatusOpen,
}

// NewElevatorDevicesAdapter maps DOB elevator device records. Elevators are
// only addressable by BIN.
func NewElevatorDevicesAdapter(client *SocrataClient, cfg config.SocrataConfig) *SocrataAdapter {
	return newSocrataAdapter(client, cfg, socrataSpec{
		name:       DatasetElevatorDevices,
		resource:   "e5aq-a4j2",
		family:     domain.FamilyEquipment,
		strategies: []identity.Strategy{identity.StrategyBuildingID},
		whereFor: func(q *identity.Query) string {
			if q.Strategy == identity.StrategyBuildingID {
				return "bin = " + soqlQuote(q.BuildingID)
			}
			return ""
		},
		mapRow: func(row sourceRow) *NormalizedRecord {
			externalID := row.str("device_number")
			if externalID == "" {
				return nil
			}
			return &NormalizedRecord{
				Dataset:     DatasetElevatorDevices,
				Family:      domain.FamilyEquipment,
				Category:    domain.CategoryEquipment,
				ExternalID:  externalID,
				BuildingID:  row.str("bin"),
				Class:       row.strPtr("device_type"),
				Status:      statusFrom(elevatorDeviceStatus, row.str("device_status")),
				InspectedAt: row.timePtr("status_date"),
				Description: row.strPtr("device_status_description"),
				Raw:         row.raw(),
			}
		},
	})
}

// --- DOB permits ---

var dobPermitStatus = map[string]domain.RecordStatus{
	"ISSUED":    domain.StatusClosed,
	"RE-ISSUED": domain.StatusClosed,
	"REVOKED":   domain.StatusClosed,
}

func dobPermitCategory(row sourceRow) domain.Category {
	if strings.EqualFold(row.str("permit_type"), "EW") ||
		strings.Contains(strings.ToUpper(row.str("permit_subtype")), "ELECTRIC") {
		return domain.CategoryElectrical
	}
	return domain.CategoryConstruction
}

// NewDOBPermitsAdapter maps DOB permit issuance rows. Permits never count as
// findings; recent ones earn linear-variant bonuses and everything is kept
// for listings. The permit dataset spells its BIN column "bin__".
func NewDOBPermitsAdapter(client *SocrataClient, cfg config.SocrataConfig) *SocrataAdapter {
	return newSocrataAdapter(client, cfg, socrataSpec{
		name:       DatasetDOBPermits,
		resource:   "ipu4-2q9a",
		family:     domain.FamilyPermit,
		strategies: []identity.Strategy{identity.StrategyBuildingID, identity.StrategyBlockLot},
		whereFor:   binBlockLotWhere("bin__"),
		mapRow: func(row sourceRow) *NormalizedRecord {
			externalID := row.str("permit_si_no")
			if externalID == "" {
				return nil
			}
			return &NormalizedRecord{
				Dataset:     DatasetDOBPermits,
				Family:      domain.FamilyPermit,
				Category:    dobPermitCategory(row),
				ExternalID:  externalID,
				BuildingID:  row.str("bin__"),
				Class:       row.strPtr("permit_type"),
				Status:      statusFrom(dobPermitStatus, row.str("permit_status")),
				IssuedAt:    row.timePtr("issuance_date"),
				Description: row.strPtr("job_type"),
				Raw:         row.raw(),
			}
		},
	})
}
