package calculations

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/obinnaeke/tradelane-backend/pkg/db/models"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
	pkgerrors "github.com/obinnaeke/tradelane-backend/pkg/errors"
	"github.com/obinnaeke/tradelane-backend/pkg/pagination"
)

type limitEnforcer interface {
	Enforce(ctx context.Context, businessID uuid.UUID, feature enums.PlanFeature) error
}

// Service records quota-limited calculation usages. The calculator itself is
// an external collaborator; this core stores and counts its runs.
type Service interface {
	Record(ctx context.Context, input RecordInput) (*models.Calculation, error)
	ListForBusiness(ctx context.Context, params ListParams) (*List, error)
}

type service struct {
	repo   Repository
	limits limitEnforcer
}

// RecordInput captures one calculation run.
type RecordInput struct {
	BusinessID uuid.UUID
	Kind       string
	Input      json.RawMessage
	Result     json.RawMessage
}

// ListParams configures pagination for calculation history.
type ListParams struct {
	BusinessID uuid.UUID
	Kind       *string
	Limit      int
	Cursor     string
}

// List wraps returned calculations and the cursor for the next page.
type List struct {
	Items  []models.Calculation `json:"items"`
	Cursor string               `json:"cursor"`
}

// NewService wires a calculations service with the required dependencies.
func NewService(repo Repository, limits limitEnforcer) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "calculations repository required")
	}
	if limits == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "limit enforcer required")
	}
	return &service{repo: repo, limits: limits}, nil
}

func (s *service) Record(ctx context.Context, input RecordInput) (*models.Calculation, error) {
	if input.BusinessID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business id required")
	}
	if strings.TrimSpace(input.Kind) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "kind required")
	}

	// Fail closed: the row is only written when the ceiling has room.
	if err := s.limits.Enforce(ctx, input.BusinessID, enums.PlanFeatureCalculations); err != nil {
		return nil, err
	}

	calculation := &models.Calculation{
		BusinessID: input.BusinessID,
		Kind:       strings.TrimSpace(input.Kind),
		Input:      input.Input,
		Result:     input.Result,
	}
	if err := s.repo.Create(ctx, calculation); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record calculation")
	}
	return calculation, nil
}

func (s *service) ListForBusiness(ctx context.Context, params ListParams) (*List, error) {
	if params.BusinessID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business id required")
	}

	query := listParams{
		BusinessID: params.BusinessID,
		Kind:       params.Kind,
		Limit:      params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListForBusiness(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list calculations")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &List{Items: rows, Cursor: cursor}, nil
}
