package service

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
	"github.com/propplyai/propply-ai-sub002/internal/repository"
)

// PropertyService registers and reads properties.
type PropertyService interface {
	// RegisterProperty creates a property from caller-supplied identifiers.
	// Returns domain.ErrDuplicateIdentifier when another property in the
	// municipality already claims one of them.
	RegisterProperty(ctx context.Context, req RegisterPropertyRequest) (*domain.Property, error)

	// GetProperty returns one property by id.
	GetProperty(ctx context.Context, propertyID string) (*domain.Property, error)
}

type propertyService struct {
	propertiesRepo repository.PropertiesRepository
	logger         *zap.Logger
}

func NewPropertyService(propertiesRepo repository.PropertiesRepository, logger *zap.Logger) PropertyService {
	return &propertyService{
		propertiesRepo: propertiesRepo,
		logger:         logger,
	}
}

// RegisterPropertyRequest carries the external identifiers a caller knows.
// Everything beyond address and municipality is optional; sync back-fills the
// building id later when datasets agree on one.
type RegisterPropertyRequest struct {
	Address       string `json:"address"`
	Municipality  string `json:"municipality"`
	BuildingID    string `json:"building_id"`
	ParcelID      string `json:"parcel_id"`
	Block         string `json:"block"`
	Lot           string `json:"lot"`
	AccountNumber string `json:"account_number"`
}

// Validate rejects requests no adapter could ever plan a query for.
func (r *RegisterPropertyRequest) Validate() error {
	if r.Address == "" {
		return fmt.Errorf("address is required")
	}
	if !domain.Municipality(r.Municipality).Valid() {
		return fmt.Errorf("unknown municipality %q", r.Municipality)
	}
	if (r.Block == "") != (r.Lot == "") {
		return fmt.Errorf("block and lot must be provided together")
	}
	return nil
}

func (s *propertyService) RegisterProperty(ctx context.Context, req RegisterPropertyRequest) (*domain.Property, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	property := &domain.Property{
		Address:       req.Address,
		Municipality:  domain.Municipality(req.Municipality),
		BuildingID:    optional(req.BuildingID),
		ParcelID:      optional(req.ParcelID),
		Block:         optional(req.Block),
		Lot:           optional(req.Lot),
		AccountNumber: optional(req.AccountNumber),
	}

	propertyID, err := s.propertiesRepo.CreateProperty(ctx, property)
	if err != nil {
		return nil, err
	}

	s.logger.Info("registered property",
		zap.String("property_id", propertyID),
		zap.String("municipality", req.Municipality),
	)

	return s.propertiesRepo.GetProperty(ctx, propertyID)
}

func (s *propertyService) GetProperty(ctx context.Context, propertyID string) (*domain.Property, error) {
	return s.propertiesRepo.GetProperty(ctx, propertyID)
}

func optional(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
