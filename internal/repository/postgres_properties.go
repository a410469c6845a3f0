package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
)

// PostgresPropertiesRepository implements PropertiesRepository on Postgres.
type PostgresPropertiesRepository struct {
	db *sql.DB
}

func NewPostgresPropertiesRepository(db *sql.DB) *PostgresPropertiesRepository {
	return &PostgresPropertiesRepository{db: db}
}

var _ PropertiesRepository = (*PostgresPropertiesRepository)(nil)

// CreateProperty registers a property. Partial unique indexes on
// (municipality, building_id / parcel_id / account_number / block, lot)
// guarantee each external identifier belongs to at most one property.
func (r *PostgresPropertiesRepository) CreateProperty(ctx context.Context, property *domain.Property) (string, error) {
	query := `
		INSERT INTO properties (
			address, municipality,
			building_id, parcel_id, block, lot, account_number
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING property_id::text
	`

	args := []any{
		property.Address,
		string(property.Municipality),
		nullStringToAny(property.BuildingID),
		nullStringToAny(property.ParcelID),
		nullStringToAny(property.Block),
		nullStringToAny(property.Lot),
		nullStringToAny(property.AccountNumber),
	}

	var propertyID string
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&propertyID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return "", domain.ErrDuplicateIdentifier
		}
		return "", fmt.Errorf("failed to create property: %w", err)
	}

	return propertyID, nil
}

func (r *PostgresPropertiesRepository) GetProperty(ctx context.Context, propertyID string) (*domain.Property, error) {
	query := `
		SELECT
			property_id::text,
			address,
			municipality,
			building_id,
			parcel_id,
			block,
			lot,
			account_number,
			created_at,
			updated_at
		FROM properties
		WHERE property_id = $1
	`

	var property domain.Property
	var municipality string

	err := r.db.QueryRowContext(ctx, query, propertyID).Scan(
		&property.PropertyID,
		&property.Address,
		&municipality,
		&property.BuildingID,
		&property.ParcelID,
		&property.Block,
		&property.Lot,
		&property.AccountNumber,
		&property.CreatedAt,
		&property.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrPropertyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property: %w", err)
	}

	property.Municipality = domain.Municipality(municipality)
	return &property, nil
}

// BackfillBuildingID only fills an empty column; an existing building id is
// authoritative and never overwritten by sync.
func (r *PostgresPropertiesRepository) BackfillBuildingID(ctx context.Context, propertyID, buildingID string) error {
	query := `
		UPDATE properties
		SET building_id = $2, updated_at = NOW()
		WHERE property_id = $1 AND building_id IS NULL
	`

	_, err := r.db.ExecContext(ctx, query, propertyID, buildingID)
	if err != nil {
		return fmt.Errorf("failed to backfill building id: %w", err)
	}
	return nil
}

func (r *PostgresPropertiesRepository) ListPropertyIDs(ctx context.Context) ([]string, error) {
	query := `SELECT property_id::text FROM properties ORDER BY created_at, property_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan property id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate properties: %w", err)
	}

	return ids, nil
}

func nullStringToAny(ns sql.NullString) any {
	if ns.Valid {
		return ns.String
	}
	return nil
}
