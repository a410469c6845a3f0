package domain

import (
	"database/sql"
	"time"
)

// Municipality identifies the data jurisdiction a property belongs to.
// Dataset coverage and scoring rules vary per municipality.
type Municipality string

const (
	MunicipalityNYC          Municipality = "nyc"
	MunicipalityPhiladelphia Municipality = "philadelphia"
)

// Valid reports whether the municipality is one this service knows datasets for.
func (m Municipality) Valid() bool {
	return m == MunicipalityNYC || m == MunicipalityPhiladelphia
}

// Property domain model (maps to the properties table).
// External identifiers are nullable: which ones exist depends on the
// municipality and on what has been resolved so far. building_id is the
// strong identifier; it may be back-filled after a successful weak-match sync.
type Property struct {
	PropertyID   string       `db:"property_id"` // UUID, PRIMARY KEY
	Address      string       `db:"address"`     // NOT NULL, normalized street address
	Municipality Municipality `db:"municipality"`

	// External identifiers (all nullable)
	BuildingID    sql.NullString `db:"building_id"`    // strong id (NYC BIN)
	ParcelID      sql.NullString `db:"parcel_id"`      // NYC BBL
	Block         sql.NullString `db:"block"`          // tax block
	Lot           sql.NullString `db:"lot"`            // tax lot
	AccountNumber sql.NullString `db:"account_number"` // Philadelphia OPA account

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ToJSON converts to the HTTP response shape.
func (p *Property) ToJSON() map[string]any {
	m := map[string]any{
		"property_id":  p.PropertyID,
		"address":      p.Address,
		"municipality": string(p.Municipality),
		"created_at":   p.CreatedAt,
		"updated_at":   p.UpdatedAt,
	}
	putNullable(m, "building_id", p.BuildingID)
	putNullable(m, "parcel_id", p.ParcelID)
	putNullable(m, "block", p.Block)
	putNullable(m, "lot", p.Lot)
	putNullable(m, "account_number", p.AccountNumber)
	return m
}

func putNullable(m map[string]any, key string, v sql.NullString) {
	if v.Valid {
		m[key] = v.String
	} else {
		m[key] = nil
	}
}
