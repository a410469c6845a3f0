package repository

import (
	"context"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
)

// PropertiesRepository manages registered properties and their external
// identifiers.
type PropertiesRepository interface {
	// CreateProperty registers a property and returns its generated id.
	// Returns domain.ErrDuplicateIdentifier when one of the external
	// identifiers is already claimed by another property in the same
	// municipality.
	CreateProperty(ctx context.Context, property *domain.Property) (string, error)

	// GetProperty looks a property up by id. Returns
	// domain.ErrPropertyNotFound when it does not exist.
	GetProperty(ctx context.Context, propertyID string) (*domain.Property, error)

	// BackfillBuildingID stores a building id discovered during sync.
	// It only fills the column when it is currently NULL; a property
	// that already carries a building id is left untouched.
	BackfillBuildingID(ctx context.Context, propertyID, buildingID string) error

	// ListPropertyIDs returns the ids of all registered properties,
	// oldest first. Used by the score rebuild tool.
	ListPropertyIDs(ctx context.Context) ([]string, error)
}
